package blink

import (
	"time"

	"github.com/okian/facegate/internal/domain/model"
)

// DefaultThreshold is the EAR below which the eyes are considered closed.
const DefaultThreshold = 0.25

// Event is raised once per confirmed blink.
type Event struct {
	EAR float64
	At  time.Time
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithThreshold overrides the closed-eye EAR threshold.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// Detector raises at most one Event per continuous dip of the EAR below the
// threshold. It is not safe for concurrent use; the controller serializes it.
type Detector struct {
	threshold float64
	now       func() time.Time

	blinking bool
	lastEAR  float64
}

// NewDetector creates a detector in the non-latched state.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe consumes the faces detected on one tick. Only the first face is
// evaluated. Ticks without a usable face leave the latch untouched.
func (d *Detector) Observe(faces []model.Face) (Event, bool) {
	if len(faces) == 0 {
		return Event{}, false
	}
	ear, ok := FaceEAR(faces[0])
	if !ok {
		return Event{}, false
	}
	return d.ObserveEAR(ear)
}

// ObserveEAR applies the latch rule to an already computed EAR.
func (d *Detector) ObserveEAR(ear float64) (Event, bool) {
	d.lastEAR = ear
	if ear >= d.threshold {
		d.blinking = false
		return Event{}, false
	}
	if d.blinking {
		return Event{}, false
	}
	d.blinking = true
	return Event{EAR: ear, At: d.now()}, true
}

// Reset returns the detector to its initial non-latched state.
func (d *Detector) Reset() {
	d.blinking = false
	d.lastEAR = 0
}

// Latched reports whether the eyes are currently considered closed.
func (d *Detector) Latched() bool { return d.blinking }

// LastEAR returns the most recent EAR observed.
func (d *Detector) LastEAR() float64 { return d.lastEAR }

// Threshold returns the configured threshold.
func (d *Detector) Threshold() float64 { return d.threshold }
