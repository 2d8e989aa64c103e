package worker

import "time"

// Ticker delivers ticks to a Periodic task.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds the ticker for the named task.
type TickerFactory func(name string, interval time.Duration) Ticker

// Acker is implemented by tickers that need to know when the task has
// finished handling a tick.
type Acker interface {
	Ack()
}

type systemTicker struct {
	t *time.Ticker
}

// SystemTicker is the default TickerFactory backed by time.Ticker.
func SystemTicker(_ string, interval time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(interval)}
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
