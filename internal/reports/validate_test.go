package reports

import (
	"strings"
	"testing"

	"github.com/cuencahub/hub-backend/internal/utils"
)

func ptr[T any](v T) *T { return &v }

func TestApplyRejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name  string
		input reportInput
		want  error
	}{
		{"category", reportInput{Category: ptr(Category("flooding"))}, errCategory},
		{"severity", reportInput{Severity: ptr(Severity("critical"))}, errSeverity},
		{"status", reportInput{Status: ptr(Status("closed"))}, errStatus},
		{"title", reportInput{Title: ptr("  a ")}, errTitle},
		{"description", reportInput{Description: ptr(strings.Repeat("d", 5001))}, errDescription},
		{"location", reportInput{Location: &utils.Location{Latitude: 0, Longitude: 190}}, utils.ErrInvalidLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rep Report
			if err := tt.input.apply(&rep); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyCopiesValidFields(t *testing.T) {
	rep := Report{Severity: SeverityMedium, Status: StatusOpen}
	in := reportInput{
		Title:    ptr("  Espuma en el río Machángara "),
		Category: ptr(CategoryWaterQuality),
		Severity: ptr(SeverityHigh),
		Location: &utils.Location{Latitude: -2.87, Longitude: -78.98},
	}
	if err := in.apply(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Title != "Espuma en el río Machángara" {
		t.Errorf("title not trimmed: %q", rep.Title)
	}
	if rep.Severity != SeverityHigh || rep.Status != StatusOpen || rep.Category != CategoryWaterQuality {
		t.Errorf("unexpected report %+v", rep)
	}
	if rep.Longitude != -78.98 {
		t.Errorf("location not copied: %+v", rep.Location)
	}
}
