package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/cuencahub/hub-backend/internal/analysis"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/projects"
	"github.com/cuencahub/hub-backend/internal/reports"
	"github.com/cuencahub/hub-backend/internal/sensors"
	"gorm.io/gorm"
)

// Summary is the body of GET /dashboard/summary.
type Summary struct {
	Reports        ReportCounts           `json:"reports"`
	Devices        map[string]int64       `json:"devices_by_status"`
	Projects       map[string]int64       `json:"projects_by_status"`
	LatestReadings []LatestReading        `json:"latest_readings"`
	RecentRuns     []analysis.AnalysisRun `json:"recent_analyses"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

type ReportCounts struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByCategory map[string]int64 `json:"by_category"`
}

type LatestReading struct {
	DeviceName string `json:"device_name"`
	sensors.Reading
}

type groupCount struct {
	Key   string
	Count int64
}

const recentRunLimit = 10

// Build runs the summary queries against the shared database. Counts are
// public aggregates; recent analyses belong to userID and stay empty for
// anonymous callers.
func Build(ctx context.Context, userID string) (*Summary, error) {
	conn := db.DB.WithContext(ctx)
	s := &Summary{GeneratedAt: time.Now().UTC()}

	var err error
	if s.Reports.ByStatus, err = countBy(conn, &reports.Report{}, "status"); err != nil {
		return nil, fmt.Errorf("reports by status: %w", err)
	}
	if s.Reports.ByCategory, err = countBy(conn, &reports.Report{}, "category"); err != nil {
		return nil, fmt.Errorf("reports by category: %w", err)
	}
	s.Reports.Total = total(s.Reports.ByStatus)

	if s.Devices, err = countBy(conn, &sensors.Device{}, "status"); err != nil {
		return nil, fmt.Errorf("devices by status: %w", err)
	}
	if s.Projects, err = countBy(conn, &projects.Project{}, "status"); err != nil {
		return nil, fmt.Errorf("projects by status: %w", err)
	}

	if s.LatestReadings, err = latestReadings(conn); err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}

	if userID != "" {
		if s.RecentRuns, err = analysis.RecentRuns(ctx, userID, recentRunLimit); err != nil {
			return nil, fmt.Errorf("recent analyses: %w", err)
		}
	}
	if s.RecentRuns == nil {
		s.RecentRuns = []analysis.AnalysisRun{}
	}
	return s, nil
}

func countBy(conn *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	var rows []groupCount
	err := conn.Model(model).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toMap(rows), nil
}

func latestReadings(conn *gorm.DB) ([]LatestReading, error) {
	var out []LatestReading
	err := conn.Raw(`
		SELECT DISTINCT ON (r.device_id) r.*, d.name AS device_name
		FROM sensors.readings r
		JOIN sensors.devices d ON d.id = r.device_id
		ORDER BY r.device_id, r.recorded_at DESC
	`).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []LatestReading{}
	}
	return out, nil
}

func toMap(rows []groupCount) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Key] += r.Count
	}
	return m
}

func total(m map[string]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}
