// Package render translates navigation events into map mutations. It is the
// only place that knows about layers, markers and paint properties.
package render

import (
	"math"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/navigation"
)

const (
	LayerRoute        = "route"
	MarkerUser        = "user"
	MarkerDestination = "destination"

	colorTraveled    = "#0d47a1"
	colorRemaining   = "#90caf9"
	colorUser        = "blue"
	colorDestination = "red"

	fitPadding = 60

	ViewTracking = "tracking"
	ViewOverview = "overview"

	NoticeState   = "state"
	NoticeArrived = "arrived"
	NoticeError   = "error"
	NoticeWarning = "warning"

	arrivedMessage = "You have arrived!"
)

// Map is the capability surface of the external map renderer.
type Map interface {
	SetMarker(id string, at orb.Point, color string)
	SetLine(id string, line orb.LineString)
	Remove(id string)
	FitBounds(bounds orb.Bound, padding int)
	SetPaintProperty(layer, property string, value any)
	Camera(center orb.Point, bearing float64)
	SetViewMode(mode string)
	RequestPermission(sensor string)
	Notify(kind, message string)
}

// Adapter keeps the persistent layers consistent with session events.
// It holds no route data of its own, only what it has drawn.
type Adapter struct {
	m Map

	tracking     bool
	routeDrawn   bool
	lastFraction float64

	position    orb.Point
	hasPosition bool
	heading     float64
}

func NewAdapter(m Map) *Adapter {
	return &Adapter{m: m, lastFraction: -1}
}

func (a *Adapter) HandleEvent(ev navigation.Event) {
	switch e := ev.(type) {
	case navigation.StateChanged:
		a.m.Notify(NoticeState, e.To.String())
	case navigation.TrackingStarted:
		a.tracking = true
		a.m.SetViewMode(ViewTracking)
		a.m.RequestPermission(string(navigation.SensorOrientation))
	case navigation.TrackingStopped:
		a.tracking = false
		a.m.SetViewMode(ViewOverview)
	case navigation.RouteCleared:
		a.clearRoute()
	case navigation.RouteReady:
		a.drawRoute(e)
	case navigation.ProgressUpdated:
		a.paintProgress(e.Fraction)
	case navigation.UserMoved:
		a.position, a.hasPosition = e.Position, true
		if e.Heading != nil {
			a.heading = *e.Heading
		}
		a.m.SetMarker(MarkerUser, e.Position, colorUser)
		if a.tracking {
			a.m.Camera(e.Position, a.heading)
		}
	case navigation.HeadingChanged:
		a.heading = e.Degrees
		if a.tracking && a.hasPosition {
			a.m.Camera(a.position, a.heading)
		}
	case navigation.Arrived:
		a.m.Notify(NoticeArrived, arrivedMessage)
	case navigation.RouteFailed:
		a.m.Notify(NoticeError, e.Message)
	case navigation.SensorLost:
		a.m.Notify(NoticeWarning, e.Message)
	}
}

func (a *Adapter) drawRoute(e navigation.RouteReady) {
	line := append(orb.LineString(nil), e.Route.Polyline...)
	a.m.SetLine(LayerRoute, line)
	a.m.SetPaintProperty(LayerRoute, "line-gradient", Gradient(0))
	a.m.SetMarker(MarkerDestination, e.Destination, colorDestination)
	a.m.FitBounds(line.Bound().Extend(e.Destination), fitPadding)
	a.routeDrawn = true
	a.lastFraction = 0
}

func (a *Adapter) clearRoute() {
	if !a.routeDrawn {
		return
	}
	a.m.Remove(LayerRoute)
	a.m.Remove(MarkerDestination)
	a.routeDrawn = false
	a.lastFraction = -1
}

// paintProgress repaints only when the traveled share actually moved.
func (a *Adapter) paintProgress(fraction float64) {
	if !a.routeDrawn || fraction == a.lastFraction {
		return
	}
	a.lastFraction = fraction
	a.m.SetPaintProperty(LayerRoute, "line-gradient", Gradient(fraction))
}

// Gradient builds a line-gradient expression: traveled dark blue up to progress, remaining light blue.
func Gradient(progress float64) []any {
	traveled := math.Max(0.001, progress)
	remaining := math.Max(0.0011, progress+0.0001)
	if remaining >= 1 {
		return []any{
			"interpolate", []any{"linear"}, []any{"line-progress"},
			0.0, colorTraveled,
			1.0, colorTraveled,
		}
	}
	return []any{
		"interpolate", []any{"linear"}, []any{"line-progress"},
		0.0, colorTraveled,
		traveled, colorTraveled,
		remaining, colorRemaining,
		1.0, colorRemaining,
	}
}
