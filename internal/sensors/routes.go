package sensors

import (
	"net/http"

	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// DeviceRoutes is mounted at /devices.
func DeviceRoutes(fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.With(middleware.OptionalSession(fetcher)).Get("/", ListDevices)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(fetcher))
		r.Post("/", CreateDevice)
		r.Patch("/{id}", UpdateDevice)
		r.Delete("/{id}", DeleteDevice)
		r.Post("/{id}/rotate-key", RotateKey)
	})

	return r
}

// IngestRoutes is mounted at /api/sensor. Ingest is throttled per process.
func IngestRoutes(perSecond float64, burst int) http.Handler {
	r := chi.NewRouter()

	r.With(middleware.RateLimit(rate.NewLimiter(rate.Limit(perSecond), burst))).Post("/ingest", IngestHandler)
	r.Get("/readings", ReadingsHandler)

	return r
}
