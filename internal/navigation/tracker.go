package navigation

import (
	"fmt"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis"
)

// DefaultArrivalRadius is the distance in meters under which the destination counts as reached.
const DefaultArrivalRadius = 10.0

// ProgressPolicy decides what happens when a fix projects behind the recorded progress.
type ProgressPolicy string

const (
	// PolicyMonotonic never moves progress backwards.
	PolicyMonotonic ProgressPolicy = "monotonic"
	// PolicyTolerant accepts a regression up to TrackingConfig.RegressionTolerance meters along the route.
	PolicyTolerant ProgressPolicy = "tolerant"
)

func (p ProgressPolicy) IsValid() bool {
	switch p {
	case PolicyMonotonic, PolicyTolerant:
		return true
	}
	return false
}

type TrackingConfig struct {
	ArrivalRadius       float64
	Policy              ProgressPolicy
	RegressionTolerance float64
	// OffRouteThreshold is the distance in meters from the route past which a fix counts as off route.
	OffRouteThreshold float64
}

// DefaultOffRouteThreshold is in meters.
const DefaultOffRouteThreshold = 25.0

func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		ArrivalRadius:       DefaultArrivalRadius,
		Policy:              PolicyMonotonic,
		RegressionTolerance: 15,
		OffRouteThreshold:   DefaultOffRouteThreshold,
	}
}

// Tracker is the route state machine: Idle -> AwaitingRoute -> Active -> Arrived -> Idle.
// It mutates the session it wraps and returns the events describing each change.
type Tracker struct {
	cfg     TrackingConfig
	session *Session
	// cum[i] is the along-route distance from the first vertex to vertex i.
	cum []float64
}

func NewTracker(session *Session, cfg TrackingConfig) *Tracker {
	if cfg.ArrivalRadius <= 0 {
		cfg.ArrivalRadius = DefaultArrivalRadius
	}
	if cfg.OffRouteThreshold <= 0 {
		cfg.OffRouteThreshold = DefaultOffRouteThreshold
	}
	if !cfg.Policy.IsValid() {
		cfg.Policy = PolicyMonotonic
	}
	return &Tracker{cfg: cfg, session: session}
}

func (t *Tracker) State() State {
	return t.session.State
}

// SetDestination records the destination. Only allowed while Idle.
func (t *Tracker) SetDestination(p orb.Point) error {
	if err := gis.ValidateCoordinate(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if t.session.State != StateIdle {
		return ErrNavigationInProgress
	}
	t.session.Destination = &p
	return nil
}

// Begin checks the start preconditions and moves to AwaitingRoute.
func (t *Tracker) Begin() (RouteRequest, []Event, error) {
	s := t.session
	if s.State != StateIdle {
		return RouteRequest{}, nil, ErrNavigationInProgress
	}
	if s.Destination == nil {
		return RouteRequest{}, nil, ErrMissingDestination
	}
	if s.LastPosition == nil {
		return RouteRequest{}, nil, ErrMissingUserLocation
	}
	req := RouteRequest{Origin: *s.LastPosition, Destination: *s.Destination, Profile: ProfileWalking}
	if err := req.Validate(); err != nil {
		return RouteRequest{}, nil, err
	}

	events := []Event{t.transition(StateAwaitingRoute), RouteCleared{}, RouteRequested{Request: req}}
	return req, events, nil
}

// Resolve installs a fetched route and starts progress tracking.
// The route is rendered (RouteReady) before the state becomes Active.
func (t *Tracker) Resolve(route *Route) ([]Event, error) {
	s := t.session
	if s.State != StateAwaitingRoute {
		return nil, fmt.Errorf("resolve route in state %s", s.State)
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}

	s.Route = route
	s.ProgressIndex = 0
	s.Traveled = 0
	s.Remaining = route.Distance
	s.OffRoute = 0
	t.cum = gis.CumulativeDistances(route.Polyline)

	events := []Event{
		RouteReady{Route: route, Destination: *s.Destination},
		t.transition(StateActive),
		ProgressUpdated{
			Position:  *s.LastPosition,
			Remaining: s.Remaining,
			OnRoute:   true,
		},
	}
	// A visitor already standing at the destination sends no more fixes that
	// pass the movement filter, so arrival must be detected here too.
	if t.withinArrival(*s.LastPosition) {
		events = append(events, t.arrive()...)
	}
	return events, nil
}

// Abort returns to Idle after a failed fetch. The destination is kept so the
// visitor can retry with a plain start.
func (t *Tracker) Abort() []Event {
	if t.session.State == StateIdle {
		return nil
	}
	t.clearRoute()
	return []Event{t.transition(StateIdle), RouteCleared{}}
}

// Reset cancels navigation from any state. It is a no-op while Idle.
func (t *Tracker) Reset() []Event {
	if t.session.State == StateIdle {
		return nil
	}
	t.clearRoute()
	t.session.Destination = nil
	return []Event{t.transition(StateIdle), RouteCleared{}}
}

// Update projects p onto the active route. Outside of Active it does nothing.
func (t *Tracker) Update(p orb.Point) []Event {
	s := t.session
	if s.State != StateActive || s.Route == nil {
		return nil
	}

	if t.withinArrival(p) {
		return t.arrive()
	}

	line := s.Route.Polyline
	last := len(line) - 1
	idx := t.applyPolicy(gis.ClosestIndex(line, p))

	s.ProgressIndex = idx
	s.Remaining = gis.DistanceMeters(p, line[idx]) + (t.cum[last] - t.cum[idx])
	s.Traveled = t.cum[idx]
	s.OffRoute = gis.DistanceToPolyline(p, line)

	return []Event{ProgressUpdated{
		Position:      p,
		ProgressIndex: idx,
		Fraction:      float64(idx) / float64(last),
		Traveled:      s.Traveled,
		Remaining:     s.Remaining,
		OffRoute:      s.OffRoute,
		OnRoute:       gis.IsPointInPolyline(p, line, t.cfg.OffRouteThreshold),
	}}
}

func (t *Tracker) withinArrival(p orb.Point) bool {
	d := t.session.Destination
	return d != nil && gis.DistanceMeters(p, *d) < t.cfg.ArrivalRadius
}

// arrive ends an active session at the destination and returns to Idle.
func (t *Tracker) arrive() []Event {
	s := t.session
	dest := *s.Destination
	events := []Event{t.transition(StateArrived), Arrived{Destination: dest}}
	t.clearRoute()
	s.Destination = nil
	return append(events, RouteCleared{}, t.transition(StateIdle), TrackingStopped{Reason: StopArrived})
}

func (t *Tracker) applyPolicy(idx int) int {
	prev := t.session.ProgressIndex
	if idx >= prev {
		return idx
	}
	if t.cfg.Policy == PolicyTolerant && t.cum[prev]-t.cum[idx] <= t.cfg.RegressionTolerance {
		return idx
	}
	return prev
}

func (t *Tracker) clearRoute() {
	s := t.session
	s.Route = nil
	s.ProgressIndex = 0
	s.Traveled = 0
	s.Remaining = 0
	s.OffRoute = 0
	t.cum = nil
}

func (t *Tracker) transition(to State) Event {
	ev := StateChanged{From: t.session.State, To: to}
	t.session.State = to
	return ev
}
