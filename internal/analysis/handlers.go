package analysis

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cuencahub/hub-backend/internal/areaselect"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
)

const maxQueryUpload = 10 << 20

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

func StartDrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, draws.Start(userID))
}

// AddPointsHandler feeds display-order [lat, lng] clicks to the user's selector
// in order. Clicks after the polygon closes are ignored like any click outside
// draw mode.
func AddPointsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input struct {
		Points [][]float64 `json:"points"`
	}
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}
	if len(input.Points) == 0 {
		http.Error(w, "At least one point is required", http.StatusBadRequest)
		return
	}
	for _, p := range input.Points {
		if len(p) != 2 {
			http.Error(w, "Points must be [lat, lng] pairs", http.StatusBadRequest)
			return
		}
	}

	var st areaselect.State
	for _, p := range input.Points {
		st = draws.Add(userID, orb.Point{p[0], p[1]})
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func ClearDrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, draws.Clear(userID))
}

func GetDrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, draws.Get(userID))
}

func WaterQualityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input struct {
		Coordinates [][]float64 `json:"coordinates"`
		DateStart   string      `json:"date_start"`
		DateEnd     string      `json:"date_end"`
	}
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	var aoi areaselect.AreaOfInterest
	if len(input.Coordinates) > 0 {
		parsed, err := areaselect.ParseCoordinates(input.Coordinates)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		aoi = parsed
	} else {
		current, ok := draws.Current(userID)
		if !ok {
			http.Error(w, "Draw an area on the map first", http.StatusBadRequest)
			return
		}
		aoi = current
	}

	run, err := service.WaterQuality(r.Context(), userID, aoi, input.DateStart, input.DateEnd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, run)
}

func QueryHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxQueryUpload+1<<20)
	if err := r.ParseMultipartForm(maxQueryUpload); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	var upload *Upload
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		upload = &Upload{Name: header.Filename, Content: file}
	case !errors.Is(err, http.ErrMissingFile):
		http.Error(w, "Invalid file upload", http.StatusBadRequest)
		return
	}

	res, err := service.Ask(r.Context(), r.FormValue("question"), upload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 100)
	}

	runs, err := service.Runs(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to load analysis history", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []AnalysisRun{}
	}
	utils.WriteJSON(w, http.StatusOK, runs)
}

func GetRunHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	run, err := service.Run(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, ErrRunNotFound) {
		http.Error(w, "Analysis run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load analysis run", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, run)
}

// writeServiceError maps service errors to statuses. Upstream messages are
// passed through verbatim.
func writeServiceError(w http.ResponseWriter, err error) {
	var remote *APIError
	switch {
	case errors.Is(err, ErrInvalidDates), errors.Is(err, ErrNoArea), errors.Is(err, ErrEmptyQuestion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &remote):
		http.Error(w, remote.Message, http.StatusBadGateway)
	default:
		http.Error(w, "Analysis service unavailable", http.StatusBadGateway)
	}
}
