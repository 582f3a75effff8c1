package navigation

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis"
)

// straightRoute runs north from the campus entrance in ~33 m steps.
func straightRoute() *Route {
	line := orb.LineString{
		{6.8143, 51.2187},
		{6.8143, 51.2190},
		{6.8143, 51.2193},
		{6.8143, 51.2196},
		{6.8143, 51.2199},
	}
	return &Route{Polyline: line, Distance: gis.PolylineLength(line), Duration: 180}
}

func activeTracker(t *testing.T, cfg TrackingConfig, route *Route) (*Tracker, *Session) {
	t.Helper()
	start := route.Polyline[0]
	dest := route.Polyline[len(route.Polyline)-1]
	s := &Session{ID: "test", LastPosition: &start}
	tr := NewTracker(s, cfg)
	if err := tr.SetDestination(dest); err != nil {
		t.Fatalf("SetDestination: %v", err)
	}
	if _, _, err := tr.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := tr.Resolve(route); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.State != StateActive {
		t.Fatalf("state = %s, want active", s.State)
	}
	return tr, s
}

func TestTracker_ProgressAtVertex(t *testing.T) {
	route := straightRoute()
	line := route.Polyline

	for k := 0; k < len(line)-1; k++ {
		tr, s := activeTracker(t, DefaultTrackingConfig(), route)
		if line[k] == *s.Destination {
			continue
		}
		if gis.DistanceMeters(line[k], *s.Destination) < DefaultArrivalRadius {
			continue
		}
		events := tr.Update(line[k])
		if len(events) != 1 {
			t.Fatalf("k=%d: got %d events, want 1", k, len(events))
		}

		var want float64
		for i := k; i < len(line)-1; i++ {
			want += gis.DistanceMeters(line[i], line[i+1])
		}
		if s.ProgressIndex != k {
			t.Errorf("k=%d: ProgressIndex = %d", k, s.ProgressIndex)
		}
		if math.Abs(s.Remaining-want) > 1e-6 {
			t.Errorf("k=%d: Remaining = %f, want %f", k, s.Remaining, want)
		}
		pu := events[0].(ProgressUpdated)
		if wantFrac := float64(k) / float64(len(line)-1); pu.Fraction != wantFrac {
			t.Errorf("k=%d: Fraction = %f, want %f", k, pu.Fraction, wantFrac)
		}
	}
}

func TestTracker_Arrival(t *testing.T) {
	route := straightRoute()
	tr, s := activeTracker(t, DefaultTrackingConfig(), route)
	dest := *s.Destination

	// ~4.5 m south of the destination
	near := orb.Point{dest.Lon(), dest.Lat() - 0.00004}
	events := tr.Update(near)

	var sawArrivedState, sawArrived, sawCleared bool
	for _, ev := range events {
		switch e := ev.(type) {
		case StateChanged:
			if e.From == StateActive && e.To == StateArrived {
				sawArrivedState = true
			}
		case Arrived:
			sawArrived = e.Destination == dest
		case RouteCleared:
			sawCleared = true
		}
	}
	if !sawArrivedState || !sawArrived || !sawCleared {
		t.Fatalf("missing arrival events in %#v", events)
	}
	if s.State != StateIdle {
		t.Errorf("state = %s, want idle", s.State)
	}
	if s.Route != nil || s.Destination != nil {
		t.Error("route and destination must be cleared on arrival")
	}
	if events := tr.Update(route.Polyline[1]); events != nil {
		t.Errorf("update after arrival produced %v", events)
	}
}

func TestTracker_ProgressPolicy(t *testing.T) {
	route := straightRoute()
	line := route.Polyline

	tests := []struct {
		name string
		cfg  TrackingConfig
		want int
	}{
		{"monotonic keeps progress", TrackingConfig{Policy: PolicyMonotonic}, 3},
		{"tolerant clamps a large regression", TrackingConfig{Policy: PolicyTolerant, RegressionTolerance: 15}, 3},
		{"tolerant accepts a small regression", TrackingConfig{Policy: PolicyTolerant, RegressionTolerance: 50}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, s := activeTracker(t, tt.cfg, route)
			tr.Update(line[3])
			tr.Update(line[2])
			if s.ProgressIndex != tt.want {
				t.Errorf("ProgressIndex = %d, want %d", s.ProgressIndex, tt.want)
			}
		})
	}
}

func TestTracker_BeginPreconditions(t *testing.T) {
	user := orb.Point{6.8143, 51.2187}
	dest := orb.Point{6.8147, 51.2193}
	bad := orb.Point{200, 51.2}

	tests := []struct {
		name    string
		session Session
		wantErr error
	}{
		{"no destination", Session{LastPosition: &user}, ErrMissingDestination},
		{"no user location", Session{Destination: &dest}, ErrMissingUserLocation},
		{"out of range user location", Session{Destination: &dest, LastPosition: &bad}, ErrInvalidInput},
		{"already active", Session{State: StateActive, Destination: &dest, LastPosition: &user}, ErrNavigationInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.session
			before := s.State
			_, events, err := NewTracker(&s, DefaultTrackingConfig()).Begin()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Begin() error = %v, want %v", err, tt.wantErr)
			}
			if events != nil || s.State != before {
				t.Errorf("failed Begin mutated the session: state %s, events %v", s.State, events)
			}
		})
	}
}

func TestTracker_SetDestination(t *testing.T) {
	s := &Session{}
	tr := NewTracker(s, DefaultTrackingConfig())

	for _, p := range []orb.Point{{181, 0}, {0, 91}, {math.NaN(), 0}} {
		if err := tr.SetDestination(p); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("SetDestination(%v) error = %v, want ErrInvalidInput", p, err)
		}
	}
	if s.Destination != nil {
		t.Fatal("invalid destination was recorded")
	}

	s.State = StateAwaitingRoute
	if err := tr.SetDestination(orb.Point{6.8, 51.2}); !errors.Is(err, ErrNavigationInProgress) {
		t.Errorf("SetDestination while awaiting route error = %v", err)
	}
}

func TestTracker_ResolveRejectsShortPolyline(t *testing.T) {
	user := orb.Point{6.8143, 51.2187}
	dest := orb.Point{6.8147, 51.2193}
	s := &Session{LastPosition: &user, Destination: &dest}
	tr := NewTracker(s, DefaultTrackingConfig())
	if _, _, err := tr.Begin(); err != nil {
		t.Fatal(err)
	}
	_, err := tr.Resolve(&Route{Polyline: orb.LineString{user}, Distance: 0})
	if !errors.Is(err, ErrRouteUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrRouteUnavailable", err)
	}
}

func TestTracker_ResetIsIdempotent(t *testing.T) {
	tr, s := activeTracker(t, DefaultTrackingConfig(), straightRoute())
	if events := tr.Reset(); len(events) == 0 {
		t.Fatal("Reset from active produced no events")
	}
	if s.State != StateIdle || s.Route != nil || s.Destination != nil {
		t.Errorf("session not cleared: %+v", s)
	}
	if events := tr.Reset(); events != nil {
		t.Errorf("second Reset produced %v", events)
	}
}

func TestTracker_SetDestinationValidatesBeforeState(t *testing.T) {
	tr, _ := activeTracker(t, DefaultTrackingConfig(), straightRoute())
	if err := tr.SetDestination(orb.Point{200, 51}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SetDestination(out of range) while active = %v, want ErrInvalidInput", err)
	}
}

func TestTracker_ResolveAtDestinationArrives(t *testing.T) {
	dest := orb.Point{6.8143, 51.2199}
	user := orb.Point{6.8143, 51.21988} // ~13 m short, inside a 15 m radius
	s := &Session{LastPosition: &user, Destination: &dest}
	tr := NewTracker(s, TrackingConfig{ArrivalRadius: 15})
	if _, _, err := tr.Begin(); err != nil {
		t.Fatal(err)
	}
	events, err := tr.Resolve(&Route{Polyline: orb.LineString{user, dest}, Distance: 13})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, e := range events {
		names = append(names, e.EventName())
	}
	want := []string{
		"route_ready", "state_changed", "progress_updated",
		"state_changed", "arrived", "route_cleared", "state_changed", "tracking_stopped",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", names, want)
	}
	if s.State != StateIdle || s.Route != nil || s.Destination != nil {
		t.Errorf("session = %+v, want idle and cleared", s)
	}
}

func TestTracker_OffRoute(t *testing.T) {
	tr, _ := activeTracker(t, TrackingConfig{OffRouteThreshold: 20}, straightRoute())

	tests := []struct {
		name    string
		p       orb.Point
		onRoute bool
	}{
		{"on the path", orb.Point{6.8143, 51.2191}, true},
		{"~14 m east", orb.Point{6.8145, 51.2191}, true},
		{"~70 m east", orb.Point{6.8153, 51.2191}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := tr.Update(tt.p)
			if len(events) != 1 {
				t.Fatalf("Update() = %v, want one progress event", events)
			}
			pu := events[0].(ProgressUpdated)
			if pu.OnRoute != tt.onRoute {
				t.Errorf("OnRoute = %v (off by %.1f m), want %v", pu.OnRoute, pu.OffRoute, tt.onRoute)
			}
		})
	}
}
