package areaselect

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinatesClosesOpenRing(t *testing.T) {
	aoi, err := ParseCoordinates([][]float64{{-79.0, -2.9}, {-78.9, -2.9}, {-78.9, -2.8}})
	require.NoError(t, err)

	assert.Len(t, aoi, 4)
	assert.True(t, aoi.Closed())
	assert.Equal(t, orb.Point{-79.0, -2.9}, aoi[3])
}

func TestParseCoordinatesErrors(t *testing.T) {
	_, err := ParseCoordinates([][]float64{{1, 2, 3}})
	assert.True(t, errors.Is(err, ErrBadPair))

	_, err = ParseCoordinates([][]float64{{200, 0}, {0, 0}, {0, 1}})
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = ParseCoordinates([][]float64{{0, 0}, {0, 1}})
	assert.True(t, errors.Is(err, ErrTooFewPoints))

	_, err = ParseCoordinates(nil)
	assert.True(t, errors.Is(err, ErrTooFewPoints))
}

func TestGeoJSONRoundTrip(t *testing.T) {
	aoi := AreaOfInterest{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}

	raw, err := aoi.MarshalGeoJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`, string(raw))

	back, err := ParseGeoJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, aoi, back)

	_, err = ParseGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.Error(t, err)
}

func TestAreaSqMeters(t *testing.T) {
	// roughly 0.01 x 0.01 degrees near the equator: about 1.23 km²
	aoi := AreaOfInterest{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0}}
	area := aoi.AreaSqMeters()
	assert.InDelta(t, 1.236e6, area, 0.02e6)

	assert.Zero(t, AreaOfInterest{}.AreaSqMeters())
}

func TestCoordinatesNeverNil(t *testing.T) {
	assert.NotNil(t, AreaOfInterest(nil).Coordinates())
	assert.Equal(t, [][2]float64{{1, 2}}, AreaOfInterest{{1, 2}}.Coordinates())
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	s := NewSessions(time.Hour)

	s.Start("ana")
	s.Start("luis")
	for _, p := range []orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}} {
		s.Add("ana", p)
	}
	st := s.Add("ana", orb.Point{0.002, 0.001})

	assert.True(t, st.Closed)
	assert.False(t, st.Drawing)
	assert.Equal(t, [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}, st.Area)
	assert.Greater(t, st.AreaSqM, 0.0)

	aoi, ok := s.Current("ana")
	require.True(t, ok)
	assert.Len(t, aoi, 5)

	_, ok = s.Current("luis")
	assert.False(t, ok)
	assert.True(t, s.Get("luis").Drawing)
}

func TestSessionsClearAndRestart(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Start("ana")
	for _, p := range []orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}} {
		s.Add("ana", p)
	}
	_, ok := s.Current("ana")
	require.True(t, ok)

	st := s.Clear("ana")
	assert.False(t, st.Closed)
	assert.Empty(t, st.Area)
	_, ok = s.Current("ana")
	assert.False(t, ok)

	// restarting also drops the previous area
	for _, p := range []orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}} {
		s.Add("ana", p)
	}
	st = s.Start("ana")
	assert.True(t, st.Drawing)
	assert.False(t, st.Closed)
}

func TestSessionsGetUnknownUser(t *testing.T) {
	s := NewSessions(time.Hour, WithTolerance(0.05))
	st := s.Get("nobody")

	assert.False(t, st.Drawing)
	assert.Empty(t, st.Points)
	assert.Equal(t, 0.05, st.Tolerance)
	assert.Equal(t, 0, s.Len())
}

func TestSessionsPruneIdle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(30 * time.Minute)
	s.now = func() time.Time { return now }

	s.Start("ana")
	now = now.Add(time.Hour)
	s.Start("luis")

	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Get("ana").Drawing)
}
