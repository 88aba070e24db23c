package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuencahub/hub-backend/internal/auth"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"github.com/cuencahub/hub-backend/internal/storage"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const maxUploadForm = 32 << 20

// ListReports filters by status, category and, for signed-in users, mine=true.
func ListReports(w http.ResponseWriter, r *http.Request) {
	q := db.DB.Model(&Report{}).Order("created_at DESC")
	query := r.URL.Query()

	if s := query.Get("status"); s != "" {
		if !Status(s).Valid() {
			http.Error(w, errStatus.Error(), http.StatusBadRequest)
			return
		}
		q = q.Where("status = ?", s)
	}
	if c := query.Get("category"); c != "" {
		if !Category(c).Valid() {
			http.Error(w, errCategory.Error(), http.StatusBadRequest)
			return
		}
		q = q.Where("category = ?", c)
	}
	if mine, _ := strconv.ParseBool(query.Get("mine")); mine {
		userID, ok := utils.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Sign in to list your reports", http.StatusUnauthorized)
			return
		}
		q = q.Where("reporter_id = ?", userID)
	}

	limit := 200
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	var reports []Report
	if err := q.Limit(limit).Find(&reports).Error; err != nil {
		http.Error(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}
	if err := attachReporterNames(reports); err != nil {
		http.Error(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []Report{}
	}
	utils.WriteJSON(w, http.StatusOK, reports)
}

func GetReport(w http.ResponseWriter, r *http.Request) {
	var report Report
	if err := db.DB.First(&report, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	one := []Report{report}
	if err := attachReporterNames(one); err != nil {
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, one[0])
}

func CreateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input reportInput
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == nil || input.Category == nil || input.Location == nil {
		http.Error(w, "Title, category and location are required", http.StatusBadRequest)
		return
	}

	report := Report{
		ID:           utils.GenerateUUID(),
		Severity:     SeverityMedium,
		Status:       StatusOpen,
		ReporterID:   userID,
		EvidenceURLs: pq.StringArray{},
	}
	if err := input.apply(&report); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := db.DB.Create(&report).Error; err != nil {
		http.Error(w, "Failed to create report", http.StatusInternalServerError)
		return
	}

	slog.Info("report filed", "component", "reports", "report_id", report.ID, "category", report.Category)
	utils.WriteJSON(w, http.StatusCreated, report)
}

func UpdateReport(w http.ResponseWriter, r *http.Request) {
	report, ok := loadOwned(w, r)
	if !ok {
		return
	}

	var input reportInput
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := input.apply(report); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := db.DB.Save(report).Error; err != nil {
		http.Error(w, "Failed to update report", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, report)
}

func DeleteReport(w http.ResponseWriter, r *http.Request) {
	report, ok := loadOwned(w, r)
	if !ok {
		return
	}

	if err := db.DB.Delete(report).Error; err != nil {
		http.Error(w, "Failed to delete report", http.StatusInternalServerError)
		return
	}
	removeEvidence(r, report.EvidenceURLs)
	w.WriteHeader(http.StatusNoContent)
}

// UploadEvidence stores every image in the multipart field "evidence" and
// appends the URLs to the report.
func UploadEvidence(w http.ResponseWriter, r *http.Request) {
	report, ok := loadOwned(w, r)
	if !ok {
		return
	}
	if settings.Store == nil {
		http.Error(w, "Uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadForm)
	if err := r.ParseMultipartForm(maxUploadForm); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["evidence"]
	if len(files) == 0 {
		http.Error(w, "Form field 'evidence' is required", http.StatusBadRequest)
		return
	}
	if len(report.EvidenceURLs)+len(files) > maxEvidence {
		http.Error(w, errTooMany.Error(), http.StatusBadRequest)
		return
	}

	var stored []storage.Object
	rollback := func() {
		for _, obj := range stored {
			_ = settings.Store.Delete(r.Context(), obj.Key)
		}
	}

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			rollback()
			http.Error(w, "Invalid file upload", http.StatusBadRequest)
			return
		}
		obj, err := settings.Store.PutImage(r.Context(), "evidence", f)
		f.Close()
		if err != nil {
			rollback()
			if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			slog.Error("evidence upload failed", "component", "reports", "report_id", report.ID, "error", err)
			http.Error(w, "Failed to store evidence", http.StatusInternalServerError)
			return
		}
		stored = append(stored, obj)
	}

	urls := make(pq.StringArray, 0, len(stored))
	for _, obj := range stored {
		urls = append(urls, obj.URL)
	}

	// Appended in SQL; the cap is re-checked against the current row.
	res := db.DB.Model(&Report{}).
		Where("id = ? AND COALESCE(cardinality(evidence_urls), 0) + ? <= ?", report.ID, len(urls), maxEvidence).
		Update("evidence_urls", gorm.Expr("array_cat(COALESCE(evidence_urls, '{}'::text[]), ?::text[])", urls))
	if res.Error != nil {
		rollback()
		http.Error(w, "Failed to update report", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		rollback()
		http.Error(w, errTooMany.Error(), http.StatusBadRequest)
		return
	}
	metrics.Uploads.WithLabelValues("evidence").Add(float64(len(stored)))

	if err := db.DB.First(report, "id = ?", report.ID).Error; err != nil {
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, report)
}

func loadOwned(w http.ResponseWriter, r *http.Request) (*Report, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	var report Report
	if err := db.DB.First(&report, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return nil, false
	}
	if report.ReporterID != userID {
		http.Error(w, "Only the reporter can modify this report", http.StatusForbidden)
		return nil, false
	}
	return &report, true
}

func removeEvidence(r *http.Request, urls []string) {
	fs, ok := settings.Store.(*storage.FileStore)
	if !ok {
		return
	}
	for _, u := range urls {
		if key, ok := fs.KeyFromURL(u); ok {
			if err := fs.Delete(r.Context(), key); err != nil {
				slog.Warn("failed to remove evidence", "component", "reports", "key", key, "error", err)
			}
		}
	}
}

func attachReporterNames(reports []Report) error {
	ids := make([]string, 0, len(reports))
	for _, rep := range reports {
		ids = append(ids, rep.ReporterID)
	}
	names, err := auth.Names(ids)
	if err != nil {
		return err
	}
	for i := range reports {
		reports[i].ReporterName = names[reports[i].ReporterID]
	}
	return nil
}
