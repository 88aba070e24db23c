package webhooks

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes is mounted at /webhooks. Callers authenticate by signature.
func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/gateway", GatewayWebhook)

	return r
}
