package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuencahub/hub-backend/internal/areaselect"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/logging"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"github.com/cuencahub/hub-backend/internal/utils"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

var (
	ErrRunNotFound  = errors.New("analysis run not found")
	ErrInvalidDates = errors.New("dates must be YYYY-MM-DD with start on or before end")
	ErrNoArea       = errors.New("no area selected")
)

// Analyzer is the part of Client the service depends on.
type Analyzer interface {
	Analyze(ctx context.Context, in Request) (*Result, error)
	Query(ctx context.Context, question string, file *Upload) (*QueryResult, error)
}

// RunStore persists analysis history.
type RunStore interface {
	Save(ctx context.Context, run *AnalysisRun) error
	List(ctx context.Context, userID string, limit int) ([]AnalysisRun, error)
	Get(ctx context.Context, userID, id string) (*AnalysisRun, error)
	Recent(ctx context.Context, userID string, limit int) ([]AnalysisRun, error)
}

// Service runs water-quality analyses through the cache and records each run.
type Service struct {
	api    Analyzer
	cache  Cache
	ttl    time.Duration
	runs   RunStore
	now    func() time.Time
	logger *slog.Logger
}

// NewService wires the client, an optional cache and the run store.
func NewService(api Analyzer, cache Cache, ttl time.Duration, runs RunStore) *Service {
	return &Service{
		api:    api,
		cache:  cache,
		ttl:    ttl,
		runs:   runs,
		now:    time.Now,
		logger: logging.For("analysis"),
	}
}

// ValidateDates checks both dates parse as YYYY-MM-DD and start <= end.
func ValidateDates(start, end string) error {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return fmt.Errorf("%w: bad date_start %q", ErrInvalidDates, start)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return fmt.Errorf("%w: bad date_end %q", ErrInvalidDates, end)
	}
	if s.After(e) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidDates, start, end)
	}
	return nil
}

// WaterQuality analyses aoi over [start, end]. The returned run is stored in
// both outcomes; on upstream failure the error is returned alongside it.
func (s *Service) WaterQuality(ctx context.Context, userID string, aoi areaselect.AreaOfInterest, start, end string) (*AnalysisRun, error) {
	if aoi.Empty() {
		return nil, ErrNoArea
	}
	if err := ValidateDates(start, end); err != nil {
		return nil, err
	}

	req := Request{
		Coordinates:      aoi.Coordinates(),
		DateStart:        start,
		DateEnd:          end,
		IncludeDashboard: true,
	}
	area, err := aoi.MarshalGeoJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding area: %w", err)
	}

	run := &AnalysisRun{
		ID:        utils.GenerateUUID(),
		UserID:    userID,
		Area:      db.JSONB(area),
		AreaSqM:   aoi.AreaSqMeters(),
		DateStart: start,
		DateEnd:   end,
	}
	started := s.now()

	res, cached := s.lookup(ctx, req)
	var apiErr error
	if !cached {
		res, apiErr = s.api.Analyze(ctx, req)
	}
	run.Cached = cached
	run.DurationMs = s.now().Sub(started).Milliseconds()

	if apiErr != nil {
		run.Status = RunFailed
		run.ErrorMessage = apiErr.Error()
		var remote *APIError
		if errors.As(apiErr, &remote) {
			run.ErrorMessage = remote.Message
			run.UpstreamCode = remote.StatusCode
		}
		s.save(ctx, run)
		return run, apiErr
	}

	b, err := res.Payload()
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	run.Status = RunSucceeded
	run.Result = db.JSONB(b)

	if !cached {
		s.store(ctx, req, res)
	}
	s.save(ctx, run)
	return run, nil
}

// Ask forwards a free-text question.
func (s *Service) Ask(ctx context.Context, question string, file *Upload) (*QueryResult, error) {
	return s.api.Query(ctx, question, file)
}

func (s *Service) Runs(ctx context.Context, userID string, limit int) ([]AnalysisRun, error) {
	return s.runs.List(ctx, userID, limit)
}

func (s *Service) Run(ctx context.Context, userID, id string) (*AnalysisRun, error) {
	return s.runs.Get(ctx, userID, id)
}

func (s *Service) RecentRuns(ctx context.Context, userID string, limit int) ([]AnalysisRun, error) {
	return s.runs.Recent(ctx, userID, limit)
}

func (s *Service) lookup(ctx context.Context, req Request) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	res, ok, err := s.cache.Get(ctx, cacheKey(req))
	switch {
	case err != nil:
		metrics.AnalysisCache.WithLabelValues("error").Inc()
		s.logger.Warn("cache lookup failed", "error", err)
		return nil, false
	case ok:
		metrics.AnalysisCache.WithLabelValues("hit").Inc()
		return res, true
	default:
		metrics.AnalysisCache.WithLabelValues("miss").Inc()
		return nil, false
	}
}

func (s *Service) store(ctx context.Context, req Request, res *Result) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(req), res, s.ttl); err != nil {
		s.logger.Warn("cache store failed", "error", err)
	}
}

func (s *Service) save(ctx context.Context, run *AnalysisRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Save(ctx, run); err != nil {
		s.logger.Error("failed to record analysis run", "run_id", run.ID, "error", err)
	}
}

// GormRuns is the Postgres-backed RunStore.
type GormRuns struct{}

func (GormRuns) Save(ctx context.Context, run *AnalysisRun) error {
	return db.DB.WithContext(ctx).Create(run).Error
}

func (GormRuns) List(ctx context.Context, userID string, limit int) ([]AnalysisRun, error) {
	var runs []AnalysisRun
	err := db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (GormRuns) Get(ctx context.Context, userID, id string) (*AnalysisRun, error) {
	var run AnalysisRun
	err := db.DB.WithContext(ctx).First(&run, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Recent lists the user's latest runs without area or result payloads.
func (GormRuns) Recent(ctx context.Context, userID string, limit int) ([]AnalysisRun, error) {
	var runs []AnalysisRun
	err := db.DB.WithContext(ctx).
		Select("id", "user_id", "area_sq_m", "date_start", "date_end", "status", "cached", "created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
