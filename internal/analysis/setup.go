package analysis

import (
	"context"
	"time"

	"github.com/cuencahub/hub-backend/internal/areaselect"
	"github.com/cuencahub/hub-backend/internal/db"
)

type Settings struct {
	Client    Analyzer
	Cache     Cache
	CacheTTL  time.Duration
	Tolerance float64
	DrawIdle  time.Duration
}

var (
	service *Service
	draws   *areaselect.Sessions
)

func Init(s Settings) {
	db.MustInit("analysis", &AnalysisRun{})

	if s.DrawIdle <= 0 {
		s.DrawIdle = 2 * time.Hour
	}
	service = NewService(s.Client, s.Cache, s.CacheTTL, GormRuns{})
	draws = areaselect.NewSessions(s.DrawIdle, areaselect.WithTolerance(s.Tolerance))
}

// RecentRuns returns the user's latest runs without their payloads.
func RecentRuns(ctx context.Context, userID string, limit int) ([]AnalysisRun, error) {
	if service != nil {
		return service.RecentRuns(ctx, userID, limit)
	}
	return GormRuns{}.Recent(ctx, userID, limit)
}
