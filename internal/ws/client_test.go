package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/paulmach/orb"

	"campus-wayfinding/internal/directory"
	"campus-wayfinding/internal/navigation"
)

type stubProvider struct {
	mu   sync.Mutex
	reqs []navigation.RouteRequest
}

func (p *stubProvider) Route(_ context.Context, req navigation.RouteRequest) (*navigation.Route, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	return &navigation.Route{
		Polyline: orb.LineString{req.Origin, {6.8145, 51.2190}, req.Destination},
		Distance: 72,
		Duration: 55,
	}, nil
}

func (p *stubProvider) last() (navigation.RouteRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reqs) == 0 {
		return navigation.RouteRequest{}, false
	}
	return p.reqs[len(p.reqs)-1], true
}

var fallback = orb.Point{6.8143, 51.2187}

func fix(lon, lat float64) positionData {
	return positionData{Lon: &lon, Lat: &lat, Accuracy: 5}
}

func newTestManager(t *testing.T, provider navigation.DirectionsProvider) (*Manager, *httptest.Server) {
	t.Helper()

	dir, err := directory.New([]directory.Company{
		{Name: "Hotel Nikko", Building: "220A", Longitude: 6.8147, Latitude: 51.2193},
	}, "999")
	if err != nil {
		t.Fatalf("directory.New: %v", err)
	}

	m := NewManager(context.Background(), slog.New(slog.DiscardHandler), Dependencies{
		Provider:   provider,
		Directory:  dir,
		Navigation: navigation.DefaultOptions(),
		Fallback:   fallback,
	})
	go m.Start()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		m.HandleNewConnection(r.URL.Query().Get("client_id"), conn)
	}))
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+"?client_id="+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	msg, err := NewMessage(typ, data)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := wsjson.Write(context.Background(), conn, msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(json.RawMessage) bool) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("waiting for %s message: %v", typ, err)
		}
		if msg.Type == typ && (match == nil || match(msg.Data)) {
			return msg
		}
	}
}

func noticeKind(kind string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var n noticeData
		return json.Unmarshal(raw, &n) == nil && n.Kind == kind
	}
}

func TestClient_NavigatesToArrival(t *testing.T) {
	_, srv := newTestManager(t, &stubProvider{})
	conn := dial(t, srv, "visitor-1")

	send(t, conn, TypePosition, fix(6.8143, 51.2187))
	readUntil(t, conn, TypeMarker, nil)

	send(t, conn, TypeDestination, destinationData{Coordinates: []float64{6.8147, 51.2193}})
	send(t, conn, TypeStart, nil)

	readUntil(t, conn, TypeView, nil)
	line := readUntil(t, conn, TypeLine, nil)
	var ld lineData
	if err := json.Unmarshal(line.Data, &ld); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if ld.ID != "route" || len(ld.Coordinates) != 3 {
		t.Errorf("line = %+v, want route with 3 points", ld)
	}
	readUntil(t, conn, TypeFit, nil)

	send(t, conn, TypePosition, fix(6.8147, 51.2193))
	var arrived noticeData
	if err := json.Unmarshal(readUntil(t, conn, TypeNotice, noticeKind("arrived")).Data, &arrived); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if arrived.Message != "You have arrived!" {
		t.Errorf("arrival message = %q", arrived.Message)
	}
	readUntil(t, conn, TypeRemove, nil)
}

func TestClient_ProtocolErrors(t *testing.T) {
	_, srv := newTestManager(t, &stubProvider{})
	conn := dial(t, srv, "visitor-2")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "start without destination",
			raw:  `{"type":"start"}`,
			want: navigation.UserMessage(navigation.ErrMissingDestination),
		},
		{
			name: "malformed payload",
			raw:  `{"type":"position","data":"north"}`,
			want: "malformed message: position: ",
		},
		{
			name: "unknown type",
			raw:  `{"type":"teleport","data":{}}`,
			want: `malformed message: unknown type "teleport"`,
		},
		{
			name: "position without coordinates",
			raw:  `{"type":"position","data":{}}`,
			want: "malformed message: position needs lon and lat",
		},
		{
			name: "position without latitude",
			raw:  `{"type":"position","data":{"lon":6.81}}`,
			want: "malformed message: position needs lon and lat",
		},
		{
			name: "orientation without heading",
			raw:  `{"type":"orientation","data":{"foo":1}}`,
			want: "malformed message: orientation needs heading",
		},
		{
			name: "unknown building",
			raw:  `{"type":"destination","data":{"building":"9999"}}`,
			want: navigation.UserMessage(navigation.ErrInvalidInput),
		},
		{
			name: "missing payload",
			raw:  `{"type":"orientation"}`,
			want: "malformed message: orientation without data",
		},
		{
			name: "unknown company",
			raw:  `{"type":"destination","data":{"company":"Nowhere Ltd"}}`,
			want: navigation.UserMessage(navigation.ErrInvalidInput),
		},
		{
			name: "out of range coordinates",
			raw:  `{"type":"destination","data":{"coordinates":[200,51]}}`,
			want: navigation.UserMessage(navigation.ErrInvalidInput),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.Write(context.Background(), websocket.MessageText, []byte(tt.raw)); err != nil {
				t.Fatalf("write: %v", err)
			}
			var got errorData
			if err := json.Unmarshal(readUntil(t, conn, TypeError, nil).Data, &got); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if !strings.HasPrefix(got.Message, tt.want) {
				t.Errorf("error message = %q, want %q", got.Message, tt.want)
			}
		})
	}
}

func TestClient_ResolvesDestinations(t *testing.T) {
	tests := []struct {
		name string
		dest destinationData
		want orb.Point
	}{
		{"company", destinationData{Company: "hotel nikko"}, orb.Point{6.8147, 51.2193}},
		{"building", destinationData{Building: "220A"}, orb.Point{6.8147, 51.2193}},
		{"building without company", destinationData{Building: "999"}, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{}
			_, srv := newTestManager(t, provider)
			conn := dial(t, srv, "visitor-3")

			send(t, conn, TypePosition, fix(6.8150, 51.2180))
			send(t, conn, TypeDestination, tt.dest)
			send(t, conn, TypeStart, nil)
			readUntil(t, conn, TypeLine, nil)

			req, ok := provider.last()
			if !ok {
				t.Fatal("no route requested")
			}
			if req.Destination != tt.want {
				t.Errorf("destination = %v, want %v", req.Destination, tt.want)
			}
		})
	}
}

func TestClient_SensorError(t *testing.T) {
	_, srv := newTestManager(t, &stubProvider{})
	conn := dial(t, srv, "visitor-4")

	send(t, conn, TypeSensorError, sensorErrorData{Sensor: "orientation", Message: "permission denied"})
	readUntil(t, conn, TypeNotice, noticeKind("warning"))

	send(t, conn, TypeSensorError, sensorErrorData{Sensor: "barometer"})
	readUntil(t, conn, TypeError, nil)
}

func TestManager_BroadcastsDirectoryUpdate(t *testing.T) {
	m, srv := newTestManager(t, &stubProvider{})
	first := dial(t, srv, "a")
	second := dial(t, srv, "b")

	deadline := time.Now().Add(2 * time.Second)
	for m.ClientCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("clients registered = %d, want 2", m.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := m.NotifyDirectoryUpdated(); err != nil {
		t.Fatalf("NotifyDirectoryUpdated: %v", err)
	}
	readUntil(t, first, TypeDirectoryUpdated, nil)
	readUntil(t, second, TypeDirectoryUpdated, nil)
}

func TestManager_UnregistersOnClose(t *testing.T) {
	m, srv := newTestManager(t, &stubProvider{})
	conn := dial(t, srv, "leaving")

	deadline := time.Now().Add(2 * time.Second)
	for m.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	for m.ClientCount() != 0 {
		if time.Now().After(deadline.Add(2 * time.Second)) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClient_RejectedPositionIsNotUsedAsOrigin(t *testing.T) {
	_, srv := newTestManager(t, &stubProvider{})
	conn := dial(t, srv, "visitor-5")

	if err := conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"position","data":{}}`)); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, TypeError, nil)

	send(t, conn, TypeDestination, destinationData{Coordinates: []float64{6.8147, 51.2193}})
	send(t, conn, TypeStart, nil)

	var got errorData
	if err := json.Unmarshal(readUntil(t, conn, TypeError, nil).Data, &got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if want := navigation.UserMessage(navigation.ErrMissingUserLocation); got.Message != want {
		t.Errorf("start error = %q, want %q", got.Message, want)
	}
}
