package reports

import (
	"net/http"

	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSession(fetcher))
		r.Get("/", ListReports)
		r.Get("/{id}", GetReport)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(fetcher))
		r.Post("/", CreateReport)
		r.Patch("/{id}", UpdateReport)
		r.Delete("/{id}", DeleteReport)
		r.Post("/{id}/evidence", UploadEvidence)
	})

	return r
}
