// Package worker runs the periodic background tasks of a detection round.
package worker

import (
	"github.com/okian/facegate/pkg/logger"
)

// Option applies a configuration option to a Periodic task.
type Option func(*Periodic)

// WithLogger sets a custom logger for the task.
func WithLogger(logger logger.Logger) Option {
	return func(p *Periodic) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTickerFactory replaces the wall-clock ticker, typically with
// workertest.ManualTickers in tests.
func WithTickerFactory(f TickerFactory) Option {
	return func(p *Periodic) {
		if f != nil {
			p.newTicker = f
		}
	}
}
