package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResult = `{
  "metadata": {"acquisition_date": "2024-02-11", "satellite": "Sentinel-2B", "scene_id": "S2B_MSIL2A_20240211", "area_km2": 1.24},
  "indicators": {
    "eutrophication": {"mean_ndci": 0.12, "classification": [{"class": "mesotrophic", "area_ha": 80.5, "percent": 65}]},
    "floating_vegetation": {"mean_fai": 0.01, "coverage_percent": 3.2, "area_ha": 4, "status": "low"},
    "turbidity": {"ndti": 0.05, "level": "moderate"},
    "cyanobacteria": {"risk_area_ha": 1.5, "risk_level": "low"}
  },
  "quality_control": {"cloud_probability": 4.5, "valid_pixels": 12034},
  "diagnostic_image_url": "https://analysis.example/img/abc.png"
}`

func TestAnalyzeSendsRequestAndDecodesResult(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, sampleResult)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", 5*time.Second, 0)
	req := Request{
		Coordinates:      [][2]float64{{-79, -2.9}, {-78.9, -2.9}, {-78.9, -2.8}, {-79, -2.9}},
		DateStart:        "2024-01-01",
		DateEnd:          "2024-03-01",
		IncludeDashboard: true,
	}
	res, err := c.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req, got)
	assert.Equal(t, "Sentinel-2B", res.Metadata.Satellite)
	assert.Equal(t, "mesotrophic", res.Indicators.Eutrophication.Classification[0].Class)
	assert.Equal(t, float64(12034), res.QualityControl.ValidPixels)
	assert.JSONEq(t, sampleResult, string(res.Raw))
	assert.Equal(t, "https://analysis.example/img/abc.png", res.DiagnosticImageURL)
}

func TestAnalyzeKeepsUnexpectedShapes(t *testing.T) {
	body := `{
	  "metadata": {"satellite": "Sentinel-2A", "area_km2": "1.2"},
	  "quality_control": {"cloud_probability": 2, "valid_pixels": 12345.0},
	  "water_temperature": {"mean_c": 17.4}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, 0)
	res, err := c.Analyze(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, 12345.0, res.QualityControl.ValidPixels)
	assert.Equal(t, "Sentinel-2A", res.Metadata.Satellite)
	// area_km2 arrived as a string: the field stays zero, the body survives
	assert.Zero(t, res.Metadata.AreaKm2)

	payload, err := res.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, body, string(payload))
}

func TestAnalyzeRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>gateway</html>")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, 0)
	_, err := c.Analyze(context.Background(), Request{})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestAnalyzeReturnsRemoteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":"No cloud-free scenes in date range"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, 0)
	_, err := c.Analyze(context.Background(), Request{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "No cloud-free scenes in date range", apiErr.Message)
}

func TestErrorMessageShapes(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"boom"}`, "boom"},
		{`{"detail":[{"loc":["body"],"msg":"field required"}]}`, `[{"loc":["body"],"msg":"field required"}]`},
		{`{"error":"quota exceeded"}`, "quota exceeded"},
		{`{"message":"maintenance"}`, "maintenance"},
		{"upstream timed out\n", "upstream timed out"},
		{"", "502 Bad Gateway"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage([]byte(tt.body), "502 Bad Gateway"), tt.body)
	}
}

func TestQuerySendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Is the reservoir eutrophic?", r.FormValue("question"))

		f, h, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "readings.csv", h.Filename)
		assert.Equal(t, "ph,7.1\n", string(b))

		io.WriteString(w, `{"answer":"Moderately.","traceability_score":0.82}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, 0)
	res, err := c.Query(context.Background(), "Is the reservoir eutrophic?",
		&Upload{Name: "readings.csv", Content: strings.NewReader("ph,7.1\n")})
	require.NoError(t, err)
	assert.Equal(t, "Moderately.", res.Answer)
	assert.InDelta(t, 0.82, res.TraceabilityScore, 1e-9)
}

func TestQueryWithoutFileAndEmptyQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		assert.ErrorIs(t, err, http.ErrMissingFile)
		io.WriteString(w, `{"answer":"ok","traceability_score":1}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, 0)
	_, err := c.Query(context.Background(), "hola", nil)
	require.NoError(t, err)

	_, err = c.Query(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestRateLimitHonoursContext(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"answer":"ok","traceability_score":1}`)
	}))
	defer srv.Close()

	// one call per minute, burst of one
	c := NewClient(srv.URL, "", 5*time.Second, 1)
	_, err := c.Query(context.Background(), "first", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Query(ctx, "second", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
