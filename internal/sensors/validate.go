package sensors

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	errNoReadings  = errors.New("at least one reading is required")
	errFutureTime  = errors.New("recorded_at is in the future")
	errDeviceName  = errors.New("Name must be between 2 and 80 characters")
	errDeviceKind  = errors.New("Kind must be between 2 and 40 characters")
	errBadStatus   = errors.New("Status must be active, inactive or maintenance")
	errBadTimeSpec = errors.New("times must be RFC 3339 or YYYY-MM-DD")
)

// Values is the readings object of an ingest payload.
type Values struct {
	PH              *float64 `json:"ph"`
	Temperature     *float64 `json:"temperature"`
	Turbidity       *float64 `json:"turbidity"`
	DissolvedOxygen *float64 `json:"dissolved_oxygen"`
	Conductivity    *float64 `json:"conductivity"`
}

type bounds struct {
	name     string
	min, max float64
}

// Physically plausible ranges; anything outside is a sensor fault.
var (
	phRange           = bounds{"ph", 0, 14}
	temperatureRange  = bounds{"temperature", -10, 60}
	turbidityRange    = bounds{"turbidity", 0, 4000}
	oxygenRange       = bounds{"dissolved_oxygen", 0, 25}
	conductivityRange = bounds{"conductivity", 0, 100000}
)

func (b bounds) check(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < b.min || *v > b.max {
		return fmt.Errorf("%s must be between %g and %g", b.name, b.min, b.max)
	}
	return nil
}

func (v Values) validate() error {
	if v.PH == nil && v.Temperature == nil && v.Turbidity == nil && v.DissolvedOxygen == nil && v.Conductivity == nil {
		return errNoReadings
	}
	for _, c := range []struct {
		b bounds
		v *float64
	}{
		{phRange, v.PH},
		{temperatureRange, v.Temperature},
		{turbidityRange, v.Turbidity},
		{oxygenRange, v.DissolvedOxygen},
		{conductivityRange, v.Conductivity},
	} {
		if err := c.b.check(c.v); err != nil {
			return err
		}
	}
	return nil
}

// recordedAt defaults to now and tolerates five minutes of device clock skew.
func recordedAt(at *time.Time, now time.Time) (time.Time, error) {
	if at == nil || at.IsZero() {
		return now.UTC(), nil
	}
	if at.After(now.Add(5 * time.Minute)) {
		return time.Time{}, errFutureTime
	}
	return at.UTC(), nil
}

// parseTimeParam accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseTimeParam(v string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, errBadTimeSpec
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func validateDevice(name, kind string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(name)); n < 2 || n > 80 {
		return errDeviceName
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(kind)); n < 2 || n > 40 {
		return errDeviceKind
	}
	return nil
}
