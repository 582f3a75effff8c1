package render

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/navigation"
)

// recordingMap logs every call as a short string.
type recordingMap struct {
	calls []string
	paint []any
}

func (m *recordingMap) SetMarker(id string, at orb.Point, color string) {
	m.calls = append(m.calls, fmt.Sprintf("marker %s %s", id, color))
}
func (m *recordingMap) SetLine(id string, line orb.LineString) {
	m.calls = append(m.calls, fmt.Sprintf("line %s %d", id, len(line)))
}
func (m *recordingMap) Remove(id string) { m.calls = append(m.calls, "remove "+id) }
func (m *recordingMap) FitBounds(orb.Bound, int) {
	m.calls = append(m.calls, "fit")
}
func (m *recordingMap) SetPaintProperty(layer, property string, value any) {
	m.calls = append(m.calls, fmt.Sprintf("paint %s %s", layer, property))
	m.paint = append(m.paint, value)
}
func (m *recordingMap) Camera(orb.Point, float64) { m.calls = append(m.calls, "camera") }
func (m *recordingMap) SetViewMode(mode string)   { m.calls = append(m.calls, "view "+mode) }
func (m *recordingMap) RequestPermission(sensor string) {
	m.calls = append(m.calls, "permission "+sensor)
}
func (m *recordingMap) Notify(kind, message string) {
	m.calls = append(m.calls, "notify "+kind)
}

func (m *recordingMap) count(prefix string) int {
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

var route = &navigation.Route{
	Polyline: orb.LineString{{6.8143, 51.2187}, {6.8145, 51.219}, {6.8147, 51.2193}},
	Distance: 120,
}

func TestAdapter_RouteLifecycle(t *testing.T) {
	m := &recordingMap{}
	a := NewAdapter(m)

	// Nothing drawn yet: a clear is a no-op.
	a.HandleEvent(navigation.RouteCleared{})
	if len(m.calls) != 0 {
		t.Fatalf("clear without route produced %v", m.calls)
	}

	a.HandleEvent(navigation.RouteReady{Route: route, Destination: route.Polyline[2]})
	want := []string{
		"line route 3",
		"paint route line-gradient",
		"marker destination red",
		"fit",
	}
	if !reflect.DeepEqual(m.calls, want) {
		t.Errorf("calls = %v, want %v", m.calls, want)
	}

	m.calls = nil
	a.HandleEvent(navigation.ProgressUpdated{Fraction: 0.5})
	a.HandleEvent(navigation.ProgressUpdated{Fraction: 0.5})
	if n := m.count("paint"); n != 1 {
		t.Errorf("unchanged progress repainted: %d paints", n)
	}

	m.calls = nil
	a.HandleEvent(navigation.RouteCleared{})
	if !reflect.DeepEqual(m.calls, []string{"remove route", "remove destination"}) {
		t.Errorf("clear calls = %v", m.calls)
	}

	m.calls = nil
	a.HandleEvent(navigation.ProgressUpdated{Fraction: 0.75})
	if len(m.calls) != 0 {
		t.Errorf("progress after clear painted a stale route: %v", m.calls)
	}
}

func TestAdapter_TrackingFollowsUser(t *testing.T) {
	m := &recordingMap{}
	a := NewAdapter(m)

	a.HandleEvent(navigation.UserMoved{Position: orb.Point{6.8143, 51.2187}})
	if m.count("camera") != 0 {
		t.Error("camera moved outside tracking view")
	}

	a.HandleEvent(navigation.TrackingStarted{})
	if m.count("view tracking") != 1 || m.count("permission orientation") != 1 {
		t.Errorf("tracking not entered: %v", m.calls)
	}
	a.HandleEvent(navigation.HeadingChanged{Degrees: 90})
	a.HandleEvent(navigation.UserMoved{Position: orb.Point{6.8144, 51.2188}})
	if n := m.count("camera"); n != 2 {
		t.Errorf("camera calls = %d, want 2", n)
	}
	if n := m.count("marker user"); n != 2 {
		t.Errorf("user marker updates = %d, want 2", n)
	}

	a.HandleEvent(navigation.TrackingStopped{Reason: navigation.StopCancelled})
	a.HandleEvent(navigation.HeadingChanged{Degrees: 180})
	if n := m.count("camera"); n != 2 {
		t.Error("camera moved after tracking stopped")
	}
}

func TestAdapter_Notices(t *testing.T) {
	m := &recordingMap{}
	a := NewAdapter(m)
	a.HandleEvent(navigation.Arrived{})
	a.HandleEvent(navigation.RouteFailed{Message: "no route"})
	a.HandleEvent(navigation.SensorLost{Sensor: navigation.SensorOrientation})
	a.HandleEvent(navigation.StateChanged{From: navigation.StateIdle, To: navigation.StateAwaitingRoute})

	want := []string{"notify arrived", "notify error", "notify warning", "notify state"}
	if !reflect.DeepEqual(m.calls, want) {
		t.Errorf("calls = %v, want %v", m.calls, want)
	}
}

func TestGradient(t *testing.T) {
	g := Gradient(0.5)
	if len(g) != 11 {
		t.Fatalf("len(Gradient) = %d, want 11", len(g))
	}
	stops := []float64{g[3].(float64), g[5].(float64), g[7].(float64), g[9].(float64)}
	for i := 1; i < len(stops); i++ {
		if stops[i] <= stops[i-1] {
			t.Errorf("stops not strictly ascending: %v", stops)
		}
	}
	if stops[1] != 0.5 {
		t.Errorf("traveled stop = %f, want 0.5", stops[1])
	}

	if start := Gradient(0); start[5].(float64) != 0.001 {
		t.Errorf("start traveled stop = %v, want 0.001", start[5])
	}
	if end := Gradient(1); len(end) != 7 {
		t.Errorf("Gradient(1) = %v, want a fully traveled line", end)
	}
}
