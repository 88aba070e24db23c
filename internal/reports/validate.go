package reports

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/cuencahub/hub-backend/internal/utils"
)

const maxEvidence = 5

var (
	errTitle       = errors.New("Title must be between 3 and 160 characters")
	errDescription = errors.New("Description must be at most 5000 characters")
	errCategory    = errors.New("Category must be one of water_quality, waste, deforestation, wildlife, other")
	errSeverity    = errors.New("Severity must be low, medium or high")
	errStatus      = errors.New("Status must be open, in_review or resolved")
	errTooMany     = errors.New("A report can hold at most 5 evidence images")
)

type reportInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Category    *Category       `json:"category"`
	Severity    *Severity       `json:"severity"`
	Status      *Status         `json:"status"`
	Location    *utils.Location `json:"location"`
}

// apply validates the set fields and copies them onto rep.
func (in reportInput) apply(rep *Report) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if n := utf8.RuneCountInString(title); n < 3 || n > 160 {
			return errTitle
		}
		rep.Title = title
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if utf8.RuneCountInString(desc) > 5000 {
			return errDescription
		}
		rep.Description = desc
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return errCategory
		}
		rep.Category = *in.Category
	}
	if in.Severity != nil {
		if !in.Severity.Valid() {
			return errSeverity
		}
		rep.Severity = *in.Severity
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return errStatus
		}
		rep.Status = *in.Status
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return err
		}
		rep.Location = *in.Location
	}
	return nil
}
