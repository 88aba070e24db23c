package analysis

import (
	"encoding/json"
	"errors"
)

// Request is the body accepted by the analysis service's water-quality endpoint.
// Coordinates are a closed ring in [lng, lat] order.
type Request struct {
	Coordinates      [][2]float64 `json:"coordinates"`
	DateStart        string       `json:"date_start"`
	DateEnd          string       `json:"date_end"`
	IncludeDashboard bool         `json:"include_dashboard"`
}

// Result is the indicator payload returned by the analysis service. Index
// values are opaque numbers to this service and are passed through as-is.
//
// Raw is the upstream body exactly as received. It is what gets stored and
// cached, so fields this struct does not know about survive.
type Result struct {
	Metadata           Acquisition    `json:"metadata"`
	Indicators         Indicators     `json:"indicators"`
	QualityControl     QualityControl `json:"quality_control"`
	DiagnosticImageURL string         `json:"diagnostic_image_url,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Payload returns the upstream body, or the re-encoded struct when the
// result was built locally.
func (r *Result) Payload() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(r)
}

// decodeResult parses an upstream body. Values of an unexpected JSON type
// leave their field zero instead of failing the whole analysis.
func decodeResult(raw []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, err
		}
	}
	res.Raw = append(json.RawMessage(nil), raw...)
	return &res, nil
}

// Acquisition describes the satellite scene used for the analysis.
type Acquisition struct {
	AcquisitionDate string  `json:"acquisition_date"`
	Satellite       string  `json:"satellite"`
	SceneID         string  `json:"scene_id,omitempty"`
	AreaKm2         float64 `json:"area_km2"`
	ProcessedAt     string  `json:"processed_at,omitempty"`
}

type Indicators struct {
	Eutrophication     Eutrophication     `json:"eutrophication"`
	FloatingVegetation FloatingVegetation `json:"floating_vegetation"`
	Turbidity          Turbidity          `json:"turbidity"`
	Cyanobacteria      Cyanobacteria      `json:"cyanobacteria"`
}

// Eutrophication is the NDCI-based trophic classification broken down by area.
type Eutrophication struct {
	MeanNDCI       float64     `json:"mean_ndci"`
	Classification []ClassArea `json:"classification"`
}

type ClassArea struct {
	Class   string  `json:"class"`
	AreaHa  float64 `json:"area_ha"`
	Percent float64 `json:"percent"`
}

// FloatingVegetation is the FAI-based floating vegetation coverage.
type FloatingVegetation struct {
	MeanFAI         float64 `json:"mean_fai"`
	CoveragePercent float64 `json:"coverage_percent"`
	AreaHa          float64 `json:"area_ha"`
	Status          string  `json:"status"`
}

// Turbidity is the NDTI-based turbidity index.
type Turbidity struct {
	NDTI  float64 `json:"ndti"`
	Level string  `json:"level"`
}

type Cyanobacteria struct {
	RiskAreaHa float64 `json:"risk_area_ha"`
	RiskLevel  string  `json:"risk_level"`
}

type QualityControl struct {
	CloudProbability float64 `json:"cloud_probability"`
	ValidPixels      float64 `json:"valid_pixels"`
}

// QueryResult is the free-text answer returned by the query endpoint.
type QueryResult struct {
	Answer            string   `json:"answer"`
	TraceabilityScore float64  `json:"traceability_score"`
	Sources           []string `json:"sources,omitempty"`
}
