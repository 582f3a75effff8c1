package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Inbound message types.
const (
	TypePosition    = "position"
	TypeOrientation = "orientation"
	TypeDestination = "destination"
	TypeStart       = "start"
	TypeStop        = "stop"
	TypeSensorError = "sensor_error"
)

// Outbound message types.
const (
	TypeMarker           = "marker"
	TypeLine             = "line"
	TypeRemove           = "remove"
	TypeFit              = "fit"
	TypePaint            = "paint"
	TypeCamera           = "camera"
	TypeView             = "view"
	TypePermission       = "permission"
	TypeNotice           = "notice"
	TypeError            = "error"
	TypeDirectoryUpdated = "directory_updated"
)

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage encodes data as the payload of a message of type typ.
func NewMessage(typ string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s message: %w", typ, err)
	}
	return Message{Type: typ, Data: raw}, nil
}

// positionData requires lon and lat; accuracy and heading are optional.
type positionData struct {
	Lon      *float64 `json:"lon"`
	Lat      *float64 `json:"lat"`
	Accuracy float64  `json:"accuracy"`
	Heading  *float64 `json:"heading"`
}

func (d positionData) point() (orb.Point, error) {
	if d.Lon == nil || d.Lat == nil {
		return orb.Point{}, errors.New("position needs lon and lat")
	}
	return orb.Point{*d.Lon, *d.Lat}, nil
}

type orientationData struct {
	Heading *float64 `json:"heading"`
}

// destinationData holds exactly one of its fields.
type destinationData struct {
	Coordinates []float64 `json:"coordinates,omitempty"`
	Company     string    `json:"company,omitempty"`
	Building    string    `json:"building,omitempty"`
}

type sensorErrorData struct {
	Sensor  string `json:"sensor"`
	Message string `json:"message"`
}

type markerData struct {
	ID          string    `json:"id"`
	Coordinates orb.Point `json:"coordinates"`
	Color       string    `json:"color"`
}

type lineData struct {
	ID          string         `json:"id"`
	Coordinates orb.LineString `json:"coordinates"`
}

type removeData struct {
	ID string `json:"id"`
}

type fitData struct {
	Bounds  [2]orb.Point `json:"bounds"`
	Padding int          `json:"padding"`
}

type paintData struct {
	Layer    string `json:"layer"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

type cameraData struct {
	Center  orb.Point `json:"center"`
	Bearing float64   `json:"bearing"`
	Zoom    float64   `json:"zoom"`
	Pitch   float64   `json:"pitch"`
}

type viewData struct {
	Mode string `json:"mode"`
}

type permissionData struct {
	Sensor string `json:"sensor"`
}

type noticeData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorData struct {
	Message string `json:"message"`
}
