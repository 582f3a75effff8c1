package navigation

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingRoute
	StateActive
	StateArrived
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRoute:
		return "awaiting_route"
	case StateActive:
		return "active"
	case StateArrived:
		return "arrived"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is the single navigation aggregate owned by one client.
type Session struct {
	ID            string     `json:"session_id"`
	State         State      `json:"state"`
	Destination   *orb.Point `json:"destination,omitempty"`
	LastPosition  *orb.Point `json:"last_position,omitempty"`
	LastHeading   *float64   `json:"last_heading,omitempty"`
	Route         *Route     `json:"route,omitempty"`
	ProgressIndex int        `json:"progress_index"`
	Traveled      float64    `json:"traveled_distance"`
	Remaining     float64    `json:"remaining_distance"`
	OffRoute      float64    `json:"off_route_distance"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *Session) clone() Session {
	c := *s
	if s.Destination != nil {
		d := *s.Destination
		c.Destination = &d
	}
	if s.LastPosition != nil {
		p := *s.LastPosition
		c.LastPosition = &p
	}
	if s.LastHeading != nil {
		h := *s.LastHeading
		c.LastHeading = &h
	}
	if s.Route != nil {
		r := *s.Route
		r.Polyline = append(orb.LineString(nil), s.Route.Polyline...)
		c.Route = &r
	}
	return c
}

// Route is a walking route returned by the directions provider.
type Route struct {
	Polyline orb.LineString `json:"polyline"`
	Distance float64        `json:"distance"` // meters
	Duration float64        `json:"duration"` // seconds
}

func (r *Route) Validate() error {
	if r == nil || len(r.Polyline) < 2 {
		return fmt.Errorf("%w: polyline needs at least 2 points", ErrRouteUnavailable)
	}
	for _, p := range r.Polyline {
		if err := gis.ValidateCoordinate(p); err != nil {
			return fmt.Errorf("%w: %w", ErrRouteUnavailable, err)
		}
	}
	return nil
}

const ProfileWalking = "walking"

type RouteRequest struct {
	Origin      orb.Point `json:"origin"`
	Destination orb.Point `json:"destination"`
	Profile     string    `json:"profile"`
}

func (r RouteRequest) Validate() error {
	if err := gis.ValidateCoordinate(r.Origin); err != nil {
		return fmt.Errorf("%w: origin: %w", ErrInvalidInput, err)
	}
	if err := gis.ValidateCoordinate(r.Destination); err != nil {
		return fmt.Errorf("%w: destination: %w", ErrInvalidInput, err)
	}
	if r.Profile == "" {
		return fmt.Errorf("%w: missing profile", ErrInvalidInput)
	}
	return nil
}

// DirectionsProvider fetches a walking route. Implementations must honour ctx cancellation.
type DirectionsProvider interface {
	Route(ctx context.Context, req RouteRequest) (*Route, error)
}

// RouteCache stores provider responses. GetRoute returns (nil, nil) on a miss.
type RouteCache interface {
	GetRoute(ctx context.Context, req RouteRequest) (*Route, error)
	SetRoute(ctx context.Context, req RouteRequest, route *Route) error
	DeleteRoute(ctx context.Context, req RouteRequest) error
}
