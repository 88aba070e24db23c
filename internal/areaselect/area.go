package areaselect

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// AreaOfInterest is a closed ring in geographic [lng, lat] order. An empty
// value means "no selection".
type AreaOfInterest orb.Ring

var (
	ErrTooFewPoints = errors.New("an area needs at least 4 points with the first repeated last")
	ErrBadPair      = errors.New("every coordinate must be a [lng, lat] pair")
	ErrOutOfRange   = errors.New("coordinates must be within lng [-180, 180] and lat [-90, 90]")
)

// Empty reports whether there is no selection.
func (a AreaOfInterest) Empty() bool { return len(a) == 0 }

// Closed reports whether the ring repeats its first point last.
func (a AreaOfInterest) Closed() bool {
	return len(a) >= 2 && a[0].Equal(a[len(a)-1])
}

func (a AreaOfInterest) Ring() orb.Ring { return orb.Ring(a) }

func (a AreaOfInterest) Polygon() orb.Polygon { return orb.Polygon{orb.Ring(a)} }

// Coordinates returns the ring as plain pairs, never nil.
func (a AreaOfInterest) Coordinates() [][2]float64 {
	out := make([][2]float64, len(a))
	for i, p := range a {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

// AreaSqMeters is the geodesic area of the ring, for display only.
func (a AreaOfInterest) AreaSqMeters() float64 {
	if len(a) < 4 {
		return 0
	}
	return math.Abs(geo.Area(a.Polygon()))
}

// Bound is the bounding box of the ring.
func (a AreaOfInterest) Bound() orb.Bound {
	return orb.Ring(a).Bound()
}

// Geometry encodes the area as a GeoJSON Polygon geometry.
func (a AreaOfInterest) Geometry() *geojson.Geometry {
	return geojson.NewGeometry(a.Polygon())
}

// MarshalGeoJSON returns the GeoJSON Polygon geometry as JSON bytes.
func (a AreaOfInterest) MarshalGeoJSON() ([]byte, error) {
	return a.Geometry().MarshalJSON()
}

// ParseCoordinates validates client-supplied [lng, lat] pairs. An open ring
// is closed by repeating the first point; the shape itself is not checked
// for self-intersection.
func ParseCoordinates(coords [][]float64) (AreaOfInterest, error) {
	ring := make(AreaOfInterest, 0, len(coords)+1)
	for i, c := range coords {
		if len(c) != 2 {
			return nil, fmt.Errorf("coordinate %d: %w", i, ErrBadPair)
		}
		lng, lat := c[0], c[1]
		if math.IsNaN(lng) || math.IsNaN(lat) || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("coordinate %d: %w", i, ErrOutOfRange)
		}
		ring = append(ring, orb.Point{lng, lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if len(ring) < MinClosingPoints {
		return nil, ErrTooFewPoints
	}
	return ring, nil
}

// ParseGeoJSON decodes a GeoJSON Polygon geometry and keeps its outer ring.
func ParseGeoJSON(raw []byte) (AreaOfInterest, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, fmt.Errorf("expected a Polygon geometry, got %s", g.Type)
	}
	return AreaOfInterest(poly[0]), nil
}
