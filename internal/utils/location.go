package utils

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

var ErrInvalidLocation = errors.New("Latitude must be within ±90 and longitude within ±180")

// Location is a WGS84 point stored as two columns.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation
	}
	return nil
}

// Point returns the location in [lng, lat] order.
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}
