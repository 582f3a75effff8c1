package routing

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"campus-wayfinding/internal/navigation"
)

// DirectionsResponse is the subset of the Directions v5 payload the service reads.
type DirectionsResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Routes  []DirectionsRoute `json:"routes"`
}

type DirectionsRoute struct {
	Geometry geojson.Geometry `json:"geometry"`
	Distance float64          `json:"distance"`
	Duration float64          `json:"duration"`
}

// errorBody is what the provider sends alongside non-2xx statuses.
type errorBody struct {
	Message string `json:"message"`
}

func (r *DirectionsRoute) toRoute() (*navigation.Route, error) {
	line, ok := r.Geometry.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("%w: geometry is %q, want LineString", navigation.ErrRouteUnavailable, r.Geometry.Type)
	}
	route := &navigation.Route{
		Polyline: line,
		Distance: r.Distance,
		Duration: r.Duration,
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}
	return route, nil
}
