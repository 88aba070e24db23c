package analysis

import (
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// AnalysisRun records one water-quality request and its outcome.
type AnalysisRun struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"index;not null" json:"user_id"`
	Area         db.JSONB  `json:"area"`
	AreaSqM      float64   `json:"area_sq_m"`
	DateStart    string    `json:"date_start"`
	DateEnd      string    `json:"date_end"`
	Status       RunStatus `gorm:"index" json:"status"`
	Cached       bool      `json:"cached"`
	Result       db.JSONB  `json:"result,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpstreamCode int       `json:"upstream_status,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (AnalysisRun) TableName() string { return "analysis.runs" }
