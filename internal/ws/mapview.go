package ws

import (
	"github.com/paulmach/orb"

	"campus-wayfinding/internal/render"
)

const (
	trackingZoom  = 18
	trackingPitch = 60
)

// remoteMap forwards map commands to the browser holding the renderer.
type remoteMap struct {
	client *Client
}

var _ render.Map = remoteMap{}

func (m remoteMap) SetMarker(id string, at orb.Point, color string) {
	m.client.sendData(TypeMarker, markerData{ID: id, Coordinates: at, Color: color})
}

func (m remoteMap) SetLine(id string, line orb.LineString) {
	m.client.sendData(TypeLine, lineData{ID: id, Coordinates: line})
}

func (m remoteMap) Remove(id string) {
	m.client.sendData(TypeRemove, removeData{ID: id})
}

func (m remoteMap) FitBounds(bounds orb.Bound, padding int) {
	m.client.sendData(TypeFit, fitData{Bounds: [2]orb.Point{bounds.Min, bounds.Max}, Padding: padding})
}

func (m remoteMap) SetPaintProperty(layer, property string, value any) {
	m.client.sendData(TypePaint, paintData{Layer: layer, Property: property, Value: value})
}

func (m remoteMap) Camera(center orb.Point, bearing float64) {
	m.client.sendData(TypeCamera, cameraData{Center: center, Bearing: bearing, Zoom: trackingZoom, Pitch: trackingPitch})
}

func (m remoteMap) SetViewMode(mode string) {
	m.client.sendData(TypeView, viewData{Mode: mode})
}

func (m remoteMap) RequestPermission(sensor string) {
	m.client.sendData(TypePermission, permissionData{Sensor: sensor})
}

func (m remoteMap) Notify(kind, message string) {
	m.client.sendData(TypeNotice, noticeData{Kind: kind, Message: message})
}
