package auth

import (
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/storage"
)

// Settings configures the auth module.
type Settings struct {
	SessionTTL    time.Duration
	SecureCookies bool
	Store         storage.Store
}

var settings = Settings{SessionTTL: 6 * time.Hour}

func Init(s Settings) {
	if s.SessionTTL <= 0 {
		s.SessionTTL = 6 * time.Hour
	}
	settings = s

	db.MustInit("app_auth", &User{}, &Session{})
}
