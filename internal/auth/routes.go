package auth

import (
	"net/http"

	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessionFetcher := SessionInfo{}

	r.Post("/register", RegisterHandler)
	r.Post("/login", LoginHandler)
	r.Post("/logout", LogoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Get("/me", MeHandler)
		r.Post("/password", UpdatePasswordHandler)
		r.Patch("/profile", UpdateProfileHandler)
		r.Post("/avatar", UploadAvatarHandler)
	})

	return r
}
