package projects

import (
	"net/http"

	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.Get("/", ListProjects)
	r.Get("/{id}", GetProject)
	r.Get("/{id}/members", ListMembers)
	r.Get("/{id}/comments", ListComments)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(fetcher))
		r.Post("/", CreateProject)
		r.Patch("/{id}", UpdateProject)
		r.Delete("/{id}", DeleteProject)
		r.Post("/{id}/join", JoinProject)
		r.Post("/{id}/leave", LeaveProject)
		r.Post("/{id}/comments", CreateComment)
		r.Delete("/{id}/comments/{comment_id}", DeleteComment)
	})

	return r
}
