package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"campus-wayfinding/internal/gis"
	"campus-wayfinding/internal/heading"
	"campus-wayfinding/internal/position"
)

type Options struct {
	Tracking TrackingConfig
	// MinMovement is the distance in meters a fix must move to count as movement.
	MinMovement float64
	// MaxAccuracy rejects fixes less precise than this many meters, 0 disables it.
	MaxAccuracy float64
	Heading     heading.Config
	Declination heading.DeclinationFunc
	Now         func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Tracking:    DefaultTrackingConfig(),
		MinMovement: 3,
		Heading:     heading.DefaultConfig(),
		Declination: heading.NoDeclination,
	}
}

// Controller owns one navigation session and serializes every mutation of it.
type Controller struct {
	mu       sync.Mutex
	logger   *slog.Logger
	provider DirectionsProvider
	listener Listener
	now      func() time.Time

	session     *Session
	tracker     *Tracker
	filter      *position.Filter
	heading     *heading.Estimator
	declination heading.DeclinationFunc

	// generation tags route requests; a response is applied only if it still matches.
	generation  uint64
	cancelFetch context.CancelFunc
	inflight    sync.WaitGroup
	lastErr     error
}

func NewController(id string, provider DirectionsProvider, listener Listener, logger *slog.Logger, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Declination == nil {
		opts.Declination = heading.NoDeclination
	}
	if listener == nil {
		listener = ListenerFunc(func(Event) {})
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if provider == nil {
		provider = noProvider{}
	}
	session := &Session{ID: id, State: StateIdle, UpdatedAt: opts.Now()}
	return &Controller{
		logger:      logger.With("sessionID", id),
		provider:    provider,
		listener:    listener,
		now:         opts.Now,
		session:     session,
		tracker:     NewTracker(session, opts.Tracking),
		filter:      position.NewFilter(opts.MinMovement, opts.MaxAccuracy),
		heading:     heading.NewEstimator(opts.Heading, opts.Now),
		declination: opts.Declination,
	}
}

// SetUserLocation feeds a geolocation fix through the position filter and heading estimator.
func (c *Controller) SetUserLocation(s position.Sample) error {
	if err := gis.ValidateCoordinate(s.Point); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, hadPrev := c.filter.Last()
	accepted := c.filter.Accept(s)

	course := s.Course
	if course == nil && accepted && hadPrev {
		derived := gis.Bearing(prev, s.Point)
		course = &derived
	}
	if course != nil {
		if h, ok := c.heading.AddCourse(*course); ok {
			c.setHeading(h)
		}
	}

	if !accepted {
		return nil
	}

	p := s.Point
	c.session.LastPosition = &p
	c.session.UpdatedAt = c.now()
	moved := UserMoved{Position: p, Tracking: c.session.State == StateActive}
	if h, ok := c.heading.Current(); ok {
		moved.Heading = &h
	}
	c.emit(moved)

	c.emitAll(c.tracker.Update(p))
	return nil
}

// SetOrientation feeds a compass sample in degrees.
func (c *Controller) SetOrientation(deg float64) error {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return fmt.Errorf("%w: heading %v", ErrInvalidInput, deg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.session.LastPosition; p != nil {
		deg += c.declination(p.Lat(), p.Lon())
	}
	if h, ok := c.heading.AddCompass(gis.NormalizeDegrees(deg)); ok {
		c.setHeading(h)
	}
	return nil
}

// ReportSensorFailure records that a sensor is absent or denied. Losing the
// compass falls back to GPS course; losing geolocation only surfaces at Start.
// The failure reaches the user through SensorLost.
func (c *Controller) ReportSensorFailure(sensor Sensor, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sensor == SensorOrientation {
		c.heading.DisableCompass()
	}
	err := fmt.Errorf("%w: %s: %s", ErrSensorUnavailable, sensor, reason)
	c.logger.Warn("sensor unavailable", "sensor", sensor, "reason", reason)
	c.emit(SensorLost{Sensor: sensor, Err: err, Message: UserMessage(err)})
}

func (c *Controller) SetDestination(p orb.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.tracker.SetDestination(p); err != nil {
		return err
	}
	c.session.UpdatedAt = c.now()
	c.logger.Debug("destination set", "destination", p)
	return nil
}

// Start validates the session and issues the route request. The response is
// applied asynchronously; failures are reported through RouteFailed and LastError.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, events, err := c.tracker.Begin()
	if err != nil {
		return err
	}

	c.emit(TrackingStarted{})
	for _, ev := range events {
		c.emit(ev)
	}

	c.generation++
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel
	c.lastErr = nil
	c.inflight.Add(1)
	go c.fetch(fetchCtx, c.generation, req)

	c.logger.Info("navigation started", "origin", req.Origin, "destination", req.Destination)
	return nil
}

func (c *Controller) fetch(ctx context.Context, gen uint64, req RouteRequest) {
	defer c.inflight.Done()

	route, err := c.provider.Route(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.session.State != StateAwaitingRoute {
		c.logger.Debug("discarding stale route response", "generation", gen)
		return
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}

	var events []Event
	if err == nil {
		events, err = c.tracker.Resolve(route)
	}
	if err != nil {
		err = classifyFetchError(err)
		c.lastErr = err
		c.logger.Warn("route fetch failed", "error", err)
		for _, ev := range c.tracker.Abort() {
			c.emit(ev)
		}
		c.emit(RouteFailed{Err: err, Message: UserMessage(err)})
		c.emit(TrackingStopped{Reason: StopFailed})
		return
	}

	c.session.UpdatedAt = c.now()
	c.logger.Info("route ready", "distance", route.Distance, "duration", route.Duration, "points", len(route.Polyline))
	c.emitAll(events)
}

// Stop cancels navigation. Calling it while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.tracker.Reset()
	if events == nil {
		return
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.generation++
	c.session.UpdatedAt = c.now()
	c.logger.Info("navigation stopped", "acceptedFixes", c.filter.Accepted())
	c.resetSensors()
	c.emitAll(events)
	c.emit(TrackingStopped{Reason: StopCancelled})
}

// Wait blocks until every in-flight route request has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close stops navigation and waits for outstanding requests.
func (c *Controller) Close() {
	c.Stop()
	c.Wait()
}

// LastError returns the error of the last failed route fetch, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of the session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

func (c *Controller) setHeading(h float64) {
	c.session.LastHeading = &h
	c.emit(HeadingChanged{Degrees: h, Source: c.heading.Source().String()})
}

// emitAll forwards tracker events, ending the session's sensor history on arrival.
func (c *Controller) emitAll(events []Event) {
	for _, ev := range events {
		if arrived, ok := ev.(Arrived); ok {
			c.logger.Info("destination reached", "destination", arrived.Destination, "acceptedFixes", c.filter.Accepted())
			c.resetSensors()
		}
		c.emit(ev)
	}
}

// resetSensors forgets the last accepted fix and the heading window so the
// next session starts from fresh samples.
func (c *Controller) resetSensors() {
	c.filter.Reset()
	c.heading.Reset()
}

func (c *Controller) emit(ev Event) {
	c.logger.Debug("session event", "event", ev.EventName())
	c.listener.HandleEvent(ev)
}

// noProvider stands in when no directions provider is configured.
type noProvider struct{}

func (noProvider) Route(context.Context, RouteRequest) (*Route, error) {
	return nil, fmt.Errorf("%w: no directions provider configured", ErrRouteUnavailable)
}
