// Package areaselect turns a stream of map clicks into a closed polygon that
// bounds an area of interest for water-quality analysis.
//
// Points arrive in display order, [lat, lng], the way map widgets report
// clicks. Completed areas are emitted in geographic order, [lng, lat], the
// way GeoJSON and the analysis service expect them.
package areaselect

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultTolerance is the loop-closure distance in raw degrees.
//
// The distance is planar over lat/lng, so the same tolerance covers fewer
// meters of longitude the further the area is from the equator.
const DefaultTolerance = 0.01

// MinClosingPoints is the number of accepted points, the closing click
// included, needed before a click near the first point closes the polygon.
const MinClosingPoints = 4

// Selector accumulates clicks while in draw mode. It is not safe for
// concurrent use; Sessions wraps it for the HTTP layer.
type Selector struct {
	points    []orb.Point
	drawing   bool
	tolerance float64
	onSelect  func(AreaOfInterest)
}

type Option func(*Selector)

// WithTolerance overrides DefaultTolerance. Non-positive values are ignored.
func WithTolerance(t float64) Option {
	return func(s *Selector) {
		if t > 0 {
			s.tolerance = t
		}
	}
}

// New returns an idle selector. onSelect receives every completed area and
// an empty area on Clear; it may be nil.
func New(onSelect func(AreaOfInterest), opts ...Option) *Selector {
	s := &Selector{
		tolerance: DefaultTolerance,
		onSelect:  onSelect,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartDrawing resets the accumulator and enters draw mode.
func (s *Selector) StartDrawing() {
	s.points = s.points[:0]
	s.drawing = true
}

// AddPoint accepts one click in display order. It reports whether the click
// closed the polygon. Clicks outside draw mode are ignored.
func (s *Selector) AddPoint(p orb.Point) bool {
	if !s.drawing {
		return false
	}

	if len(s.points)+1 >= MinClosingPoints && s.closes(p) {
		// The closing click snaps onto the first vertex.
		s.points = append(s.points, s.points[0])
		aoi := AreaOfInterest(ToGeographic(s.points))
		s.points = s.points[:0]
		s.drawing = false
		s.emit(aoi)
		return true
	}

	s.points = append(s.points, p)
	return false
}

// Clear drops any partial polygon, leaves draw mode and emits an empty area.
func (s *Selector) Clear() {
	s.points = s.points[:0]
	s.drawing = false
	s.emit(AreaOfInterest{})
}

// Drawing reports whether the selector is in draw mode.
func (s *Selector) Drawing() bool { return s.drawing }

// Points returns a copy of the polygon in progress, in display order.
func (s *Selector) Points() []orb.Point {
	out := make([]orb.Point, len(s.points))
	copy(out, s.points)
	return out
}

// Tolerance returns the loop-closure distance in raw degrees.
func (s *Selector) Tolerance() float64 { return s.tolerance }

func (s *Selector) closes(p orb.Point) bool {
	return planar.Distance(s.points[0], p) <= s.tolerance
}

func (s *Selector) emit(aoi AreaOfInterest) {
	if s.onSelect != nil {
		s.onSelect(aoi)
	}
}

// ToGeographic swaps each [lat, lng] pair into [lng, lat]. The result never
// aliases the input.
func ToGeographic(display []orb.Point) orb.Ring {
	out := make(orb.Ring, len(display))
	for i, p := range display {
		out[i] = orb.Point{p[1], p[0]}
	}
	return out
}

// ToDisplay swaps each [lng, lat] pair back into [lat, lng].
func ToDisplay(ring orb.Ring) []orb.Point {
	out := make([]orb.Point, len(ring))
	for i, p := range ring {
		out[i] = orb.Point{p[1], p[0]}
	}
	return out
}
