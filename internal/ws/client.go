package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis"
	"campus-wayfinding/internal/navigation"
	"campus-wayfinding/internal/position"
	"campus-wayfinding/internal/render"
)

const (
	// sendChannelSize controls the max number
	// of messages that can be queued for a client.
	sendChannelSize = 64
	pingPeriod      = (60 * 9 * time.Second) / 10
)

type Client struct {
	ID         string
	Conn       *websocket.Conn
	Manager    *Manager
	controller *navigation.Controller

	sendMu sync.Mutex
	send   chan Message
	closed bool

	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewClient(id string, conn *websocket.Conn, manager *Manager) *Client {
	ctx, cancel := context.WithCancel(manager.ctx)
	c := &Client{
		ID:      id,
		Conn:    conn,
		Manager: manager,
		send:    make(chan Message, sendChannelSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	adapter := render.NewAdapter(remoteMap{client: c})
	c.controller = navigation.NewController(id, manager.deps.Provider, adapter, manager.logger, manager.deps.Navigation)
	return c
}

func (c *Client) Start() {
	select {
	case c.Manager.register <- c:
	case <-c.Manager.ctx.Done():
	}
	go c.readPump()
	go c.writePump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if err := c.Conn.Close(websocket.StatusNormalClosure, "bye :P"); err != nil {
			c.Manager.logger.Debug("failed to close connection", "clientID", c.ID, "error", err)
		}
		c.cancel()
	})
}

// Send queues msg. A client whose queue is full is disconnected.
func (c *Client) Send(msg Message) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.Manager.logger.Warn("send queue full, disconnecting client", "clientID", c.ID)
		go c.Manager.forceDisconnect(c)
	}
}

func (c *Client) sendData(typ string, data any) {
	msg, err := NewMessage(typ, data)
	if err != nil {
		c.Manager.logger.Error("failed to encode message", "clientID", c.ID, "error", err)
		return
	}
	c.Send(msg)
}

// ErrBadMessage marks inbound messages that could not be decoded or dispatched.
var ErrBadMessage = errors.New("malformed message")

func (c *Client) sendError(err error) {
	msg := navigation.UserMessage(err)
	if errors.Is(err, ErrBadMessage) {
		msg = err.Error()
	}
	c.sendData(TypeError, errorData{Message: msg})
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		// Stop the session before the send queue goes away: Stop still emits events.
		c.controller.Close()
		select {
		case c.Manager.unregister <- c:
		case <-c.Manager.ctx.Done():
			c.closeSend()
		}
		c.Close()
	}()

	for {
		var msg Message
		if err := wsjson.Read(c.ctx, c.Conn, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				c.Manager.logger.Debug("client closed connection", "clientID", c.ID)
			} else {
				c.Manager.logger.Warn("failed to read message", "clientID", c.ID, "error", err)
			}
			break
		}
		if err := c.handleMessage(msg); err != nil {
			c.Manager.logger.Warn("failed to handle message", "clientID", c.ID, "type", msg.Type, "error", err)
			c.sendError(err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := wsjson.Write(c.ctx, c.Conn, msg); err != nil {
				c.Manager.logger.Warn("failed to write message", "clientID", c.ID, "error", err)
				return
			}
			c.Manager.logger.Debug("message sent", "clientID", c.ID, "type", msg.Type)
		case <-ticker.C:
			if err := c.Conn.Ping(c.ctx); err != nil {
				c.Manager.logger.Debug("failed to ping client", "clientID", c.ID, "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg Message) error {
	c.Manager.logger.Debug("received message", "clientID", c.ID, "type", msg.Type)

	switch msg.Type {
	case TypePosition:
		var data positionData
		if err := decode(msg, &data); err != nil {
			return err
		}
		p, err := data.point()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadMessage, err)
		}
		return c.controller.SetUserLocation(position.Sample{
			Point:    p,
			Accuracy: data.Accuracy,
			Course:   data.Heading,
		})
	case TypeOrientation:
		var data orientationData
		if err := decode(msg, &data); err != nil {
			return err
		}
		if data.Heading == nil {
			return fmt.Errorf("%w: orientation needs heading", ErrBadMessage)
		}
		return c.controller.SetOrientation(*data.Heading)
	case TypeDestination:
		var data destinationData
		if err := decode(msg, &data); err != nil {
			return err
		}
		p, err := c.Manager.resolveDestination(data)
		if err != nil {
			return err
		}
		return c.controller.SetDestination(p)
	case TypeStart:
		return c.controller.Start(c.ctx)
	case TypeStop:
		c.controller.Stop()
		return nil
	case TypeSensorError:
		var data sensorErrorData
		if err := decode(msg, &data); err != nil {
			return err
		}
		sensor := navigation.Sensor(data.Sensor)
		if sensor != navigation.SensorGeolocation && sensor != navigation.SensorOrientation {
			return fmt.Errorf("%w: unknown sensor %q", ErrBadMessage, data.Sensor)
		}
		c.controller.ReportSensorFailure(sensor, data.Message)
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadMessage, msg.Type)
	}
}

func decode(msg Message, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrBadMessage, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadMessage, msg.Type, err)
	}
	return nil
}

func parseDestination(coords []float64) (orb.Point, error) {
	p, err := gis.ParseCoordinate(coords)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %w", navigation.ErrInvalidInput, err)
	}
	return p, nil
}
