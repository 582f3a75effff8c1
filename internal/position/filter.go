// Package position drops GPS fixes that do not represent real movement.
package position

import (
	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis"
)

// Sample is a raw geolocation fix.
type Sample struct {
	Point orb.Point
	// Accuracy is the reported horizontal accuracy in meters, 0 when unknown.
	Accuracy float64
	// Course is the GPS course in degrees, nil while the device is stationary.
	Course *float64
}

type Filter struct {
	minMovement float64
	maxAccuracy float64

	last     orb.Point
	hasLast  bool
	accepted int
}

// NewFilter builds a filter that rejects fixes closer than minMovement meters to the
// last accepted one. A positive maxAccuracy additionally rejects imprecise fixes.
func NewFilter(minMovement, maxAccuracy float64) *Filter {
	return &Filter{minMovement: minMovement, maxAccuracy: maxAccuracy}
}

// Accept reports whether s should be propagated downstream, and records it if so.
// The first fix is always accepted.
func (f *Filter) Accept(s Sample) bool {
	if !f.hasLast {
		f.record(s.Point)
		return true
	}
	if f.maxAccuracy > 0 && s.Accuracy > f.maxAccuracy {
		return false
	}
	if gis.DistanceMeters(f.last, s.Point) < f.minMovement {
		return false
	}
	f.record(s.Point)
	return true
}

// Last returns the last accepted point.
func (f *Filter) Last() (orb.Point, bool) {
	return f.last, f.hasLast
}

// Accepted counts fixes let through since the last Reset.
func (f *Filter) Accepted() int {
	return f.accepted
}

func (f *Filter) Reset() {
	f.last = orb.Point{}
	f.hasLast = false
	f.accepted = 0
}

func (f *Filter) record(p orb.Point) {
	f.last = p
	f.hasLast = true
	f.accepted++
}
