package navigation

import "github.com/paulmach/orb"

// Event is a pure description of a session change. Rendering code reacts to
// events; the state machine never touches the map itself.
type Event interface {
	EventName() string
}

// Listener receives events in emission order. HandleEvent runs while the
// controller holds its lock, so it must not call back into the controller.
type Listener interface {
	HandleEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }

type StopReason string

const (
	StopCancelled StopReason = "cancelled"
	StopArrived   StopReason = "arrived"
	StopFailed    StopReason = "failed"
)

type Sensor string

const (
	SensorGeolocation Sensor = "geolocation"
	SensorOrientation Sensor = "orientation"
)

type StateChanged struct {
	From State
	To   State
}

// TrackingStarted asks the shell to enter the full-screen tracking view and
// request sensor permissions.
type TrackingStarted struct{}

type TrackingStopped struct {
	Reason StopReason
}

// RouteCleared tells renderers to drop any route and destination layers.
type RouteCleared struct{}

type RouteRequested struct {
	Request RouteRequest
}

type RouteReady struct {
	Route       *Route
	Destination orb.Point
}

type ProgressUpdated struct {
	Position      orb.Point
	ProgressIndex int
	// Fraction is ProgressIndex relative to the last polyline index, in [0, 1].
	Fraction  float64
	Traveled  float64
	Remaining float64
	// OffRoute is the distance in meters from the fix to the nearest route segment.
	OffRoute float64
	// OnRoute is false once OffRoute exceeds the configured threshold.
	OnRoute bool
}

type UserMoved struct {
	Position orb.Point
	Heading  *float64
	Tracking bool
}

type HeadingChanged struct {
	Degrees float64
	Source  string
}

type Arrived struct {
	Destination orb.Point
}

type RouteFailed struct {
	Err     error
	Message string
}

type SensorLost struct {
	Sensor  Sensor
	Err     error
	Message string
}

func (StateChanged) EventName() string    { return "state_changed" }
func (TrackingStarted) EventName() string { return "tracking_started" }
func (TrackingStopped) EventName() string { return "tracking_stopped" }
func (RouteCleared) EventName() string    { return "route_cleared" }
func (RouteRequested) EventName() string  { return "route_requested" }
func (RouteReady) EventName() string      { return "route_ready" }
func (ProgressUpdated) EventName() string { return "progress_updated" }
func (UserMoved) EventName() string       { return "user_moved" }
func (HeadingChanged) EventName() string  { return "heading_changed" }
func (Arrived) EventName() string         { return "arrived" }
func (RouteFailed) EventName() string     { return "route_failed" }
func (SensorLost) EventName() string      { return "sensor_lost" }
