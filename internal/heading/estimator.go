// Package heading fuses compass and GPS-course samples into one smoothed,
// throttled heading.
package heading

import (
	"math"
	"sort"
	"time"
)

type Source int

const (
	SourceNone Source = iota
	SourceCompass
	SourceCourse
)

func (s Source) String() string {
	switch s {
	case SourceCompass:
		return "compass"
	case SourceCourse:
		return "course"
	default:
		return "none"
	}
}

type Config struct {
	// Window is the number of samples the median is taken over.
	Window int
	// Blend is the low-pass factor applied against the previous smoothed value (0..1].
	Blend float64
	// MinChange is the smallest change in degrees worth emitting.
	MinChange float64
	// MinInterval throttles emissions.
	MinInterval time.Duration
	// CompassStaleAfter is how long a compass reading keeps priority over GPS course.
	CompassStaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window:            5,
		Blend:             0.5,
		MinChange:         3,
		MinInterval:       250 * time.Millisecond,
		CompassStaleAfter: 2 * time.Second,
	}
}

// DeclinationFunc returns the magnetic declination in degrees at a location.
type DeclinationFunc func(lat, lon float64) float64

// NoDeclination is the default: compass readings are used as-is.
func NoDeclination(_, _ float64) float64 { return 0 }

type Estimator struct {
	cfg Config
	now func() time.Time

	source          Source
	samples         []float64
	lastCompassAt   time.Time
	compassDisabled bool

	smoothed    float64
	hasSmoothed bool

	lastEmitted float64
	lastEmitAt  time.Time
	hasEmitted  bool
}

func NewEstimator(cfg Config, now func() time.Time) *Estimator {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	if cfg.Blend <= 0 || cfg.Blend > 1 {
		cfg.Blend = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Estimator{cfg: cfg, now: now, samples: make([]float64, 0, cfg.Window)}
}

// AddCompass ingests an orientation sample. It returns the heading to display
// and true when an update should be emitted.
func (e *Estimator) AddCompass(deg float64) (float64, bool) {
	if e.compassDisabled || !finite(deg) {
		return 0, false
	}
	e.lastCompassAt = e.now()
	return e.add(SourceCompass, deg)
}

// AddCourse ingests a GPS course sample. It is ignored while a fresh compass reading exists.
func (e *Estimator) AddCourse(deg float64) (float64, bool) {
	if !finite(deg) || e.compassFresh() {
		return 0, false
	}
	return e.add(SourceCourse, deg)
}

// DisableCompass makes GPS course the only source, e.g. when orientation permission is denied.
func (e *Estimator) DisableCompass() {
	e.compassDisabled = true
	if e.source == SourceCompass {
		e.source = SourceNone
		e.samples = e.samples[:0]
	}
}

// Source reports which input currently feeds the estimate.
func (e *Estimator) Source() Source {
	return e.source
}

// Current returns the last emitted heading.
func (e *Estimator) Current() (float64, bool) {
	return e.lastEmitted, e.hasEmitted
}

func (e *Estimator) Reset() {
	e.source = SourceNone
	e.samples = e.samples[:0]
	e.hasSmoothed = false
	e.hasEmitted = false
	e.lastCompassAt = time.Time{}
	e.lastEmitAt = time.Time{}
}

func (e *Estimator) compassFresh() bool {
	if e.compassDisabled || e.lastCompassAt.IsZero() {
		return false
	}
	return e.now().Sub(e.lastCompassAt) <= e.cfg.CompassStaleAfter
}

func (e *Estimator) add(src Source, deg float64) (float64, bool) {
	if src != e.source {
		e.source = src
		e.samples = e.samples[:0]
	}
	if len(e.samples) == e.cfg.Window {
		copy(e.samples, e.samples[1:])
		e.samples = e.samples[:len(e.samples)-1]
	}
	e.samples = append(e.samples, normalize(deg))

	m := circularMedian(e.samples)
	if !e.hasSmoothed {
		e.smoothed = m
		e.hasSmoothed = true
	} else {
		e.smoothed = normalize(e.smoothed + e.cfg.Blend*Delta(e.smoothed, m))
	}

	now := e.now()
	if e.hasEmitted {
		if math.Abs(Delta(e.lastEmitted, e.smoothed)) <= e.cfg.MinChange {
			return 0, false
		}
		if now.Sub(e.lastEmitAt) < e.cfg.MinInterval {
			return 0, false
		}
	}
	e.lastEmitted = e.smoothed
	e.lastEmitAt = now
	e.hasEmitted = true
	return e.smoothed, true
}

// Delta is the signed shortest angular distance from a to b, in (-180, 180].
func Delta(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

// circularMedian unwraps every sample around the first one so that values on
// both sides of north compare correctly, then takes an ordinary median.
func circularMedian(samples []float64) float64 {
	ref := samples[0]
	unwrapped := make([]float64, len(samples))
	for i, s := range samples {
		unwrapped[i] = ref + Delta(ref, s)
	}
	sort.Float64s(unwrapped)
	n := len(unwrapped)
	if n%2 == 1 {
		return normalize(unwrapped[n/2])
	}
	return normalize((unwrapped[n/2-1] + unwrapped[n/2]) / 2)
}

func normalize(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
