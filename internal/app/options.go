package app

import (
	"time"

	"github.com/okian/facegate/internal/adapters/mq/worker"
	"github.com/okian/facegate/internal/domain/dedupe"
	"github.com/okian/facegate/internal/domain/lighting"
	"github.com/okian/facegate/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMinCodeLength sets the local invite code length guard.
func WithMinCodeLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.minCodeLen = n
		}
	}
}

// WithBlinkInterval sets the landmark polling cadence.
func WithBlinkInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.blinkInterval = d
		}
	}
}

// WithLightingInterval sets the brightness polling cadence.
func WithLightingInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.lightingInterval = d
		}
	}
}

// WithBlinkThreshold sets the EAR threshold of each round's blink detector.
func WithBlinkThreshold(t float64) Option {
	return func(c *Controller) {
		if t > 0 {
			c.blinkThreshold = t
		}
	}
}

// WithAdvisor replaces the lighting advisor.
func WithAdvisor(a *lighting.Advisor) Option {
	return func(c *Controller) {
		if a != nil {
			c.advisor = a
		}
	}
}

// WithLedger replaces the used-invite ledger.
func WithLedger(l dedupe.Ledger) Option {
	return func(c *Controller) {
		if l != nil {
			c.ledger = l
		}
	}
}

// WithEncoder replaces the photo encoder.
func WithEncoder(e PhotoEncoder) Option {
	return func(c *Controller) {
		if e != nil {
			c.encoder = e
		}
	}
}

// WithTickerFactory replaces the wall-clock tickers of the detection tasks.
func WithTickerFactory(f worker.TickerFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.tickers = f
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxTickFailures sets how many consecutive frame or landmark failures
// end a detection round.
func WithMaxTickFailures(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxTickFailures = n
		}
	}
}
