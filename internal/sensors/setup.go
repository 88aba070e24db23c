package sensors

import "github.com/cuencahub/hub-backend/internal/db"

func Init() {
	db.MustInit("sensors", &Device{}, &Reading{})
}
