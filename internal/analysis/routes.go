package analysis

import (
	"net/http"

	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(fetcher))

	r.Route("/draw", func(r chi.Router) {
		r.Get("/", GetDrawHandler)
		r.Post("/start", StartDrawHandler)
		r.Post("/points", AddPointsHandler)
		r.Post("/clear", ClearDrawHandler)
	})

	r.Post("/water-quality", WaterQualityHandler)
	r.Post("/query", QueryHandler)
	r.Get("/runs", ListRunsHandler)
	r.Get("/runs/{id}", GetRunHandler)

	return r
}
