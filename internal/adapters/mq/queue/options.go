package queue

import "github.com/okian/facegate/pkg/logger"

// Option applies a configuration option to the Mailbox.
type Option func(*Mailbox)

// WithLogger sets the logger used for drop diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(m *Mailbox) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics toggles Prometheus reporting of received and dropped frames.
func WithMetrics(enabled bool) Option {
	return func(m *Mailbox) {
		m.metrics = enabled
	}
}
