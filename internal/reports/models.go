package reports

import (
	"time"

	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/lib/pq"
)

type Category string

const (
	CategoryWaterQuality  Category = "water_quality"
	CategoryWaste         Category = "waste"
	CategoryDeforestation Category = "deforestation"
	CategoryWildlife      Category = "wildlife"
	CategoryOther         Category = "other"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusInReview Status = "in_review"
	StatusResolved Status = "resolved"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWaterQuality, CategoryWaste, CategoryDeforestation, CategoryWildlife, CategoryOther:
		return true
	}
	return false
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInReview, StatusResolved:
		return true
	}
	return false
}

// Report is a geolocated environmental incident filed by a user.
type Report struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"not null" json:"title"`
	Description    string         `json:"description"`
	Category       Category       `gorm:"index;not null" json:"category"`
	Severity       Severity       `gorm:"not null" json:"severity"`
	Status         Status         `gorm:"index;not null" json:"status"`
	utils.Location `gorm:"embedded"`
	EvidenceURLs   pq.StringArray `gorm:"type:text[]" json:"evidence_urls"`
	ReporterID     string         `gorm:"index;not null" json:"reporter_id"`
	ReporterName   string         `gorm:"-" json:"reporter_name"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Report) TableName() string { return "reports.reports" }
