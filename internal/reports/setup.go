package reports

import (
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/storage"
)

type Settings struct {
	Store storage.Store
}

var settings Settings

func Init(s Settings) {
	settings = s
	db.MustInit("reports", &Report{})
}
