package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

// SummaryHandler answers anonymous callers too; only signed-in users get
// their own recent analyses.
func SummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	summary, err := Build(r.Context(), userID)
	if err != nil {
		slog.Error("dashboard summary failed", "component", "dashboard", "error", err)
		http.Error(w, "Failed to build dashboard summary", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func SetupRoutes(fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()
	r.With(middleware.OptionalSession(fetcher)).Get("/summary", SummaryHandler)
	return r
}
