// Package workertest provides tickers that tests fire by hand, so code built
// on worker.Periodic runs tick by tick.
package workertest

import (
	"sync"
	"time"

	"github.com/okian/facegate/internal/adapters/mq/worker"
)

// ManualTicker is fired explicitly. Tick returns only after the task has
// finished handling the tick.
type ManualTicker struct {
	name     string
	c        chan time.Time
	acks     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

var (
	_ worker.Ticker = (*ManualTicker)(nil)
	_ worker.Acker  = (*ManualTicker)(nil)
)

func newManualTicker(name string) *ManualTicker {
	return &ManualTicker{
		name:    name,
		c:       make(chan time.Time),
		acks:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Name returns the task name the ticker was created for.
func (m *ManualTicker) Name() string { return m.name }

// C implements worker.Ticker.
func (m *ManualTicker) C() <-chan time.Time { return m.c }

// Stop implements worker.Ticker.
func (m *ManualTicker) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}

// Ack implements worker.Acker.
func (m *ManualTicker) Ack() {
	select {
	case m.acks <- struct{}{}:
	case <-m.stopped:
	}
}

// Tick fires one tick and waits for it to be handled. It returns false if the
// ticker was stopped first.
func (m *ManualTicker) Tick() bool {
	select {
	case m.c <- time.Now():
	case <-m.stopped:
		return false
	}
	select {
	case <-m.acks:
		return true
	case <-m.stopped:
		return false
	}
}

// Stopped reports whether the owning task released the ticker.
func (m *ManualTicker) Stopped() bool {
	select {
	case <-m.stopped:
		return true
	default:
		return false
	}
}

// ManualTickers hands out ManualTickers and remembers the most recent one per
// task name.
type ManualTickers struct {
	mu     sync.Mutex
	latest map[string]*ManualTicker
	all    []*ManualTicker
}

// NewManualTickers creates an empty factory.
func NewManualTickers() *ManualTickers {
	return &ManualTickers{latest: make(map[string]*ManualTicker)}
}

// Factory returns the worker.TickerFactory to install.
func (f *ManualTickers) Factory() worker.TickerFactory {
	return func(name string, _ time.Duration) worker.Ticker {
		f.mu.Lock()
		defer f.mu.Unlock()
		t := newManualTicker(name)
		f.latest[name] = t
		f.all = append(f.all, t)
		return t
	}
}

// Latest returns the newest ticker created for name, or nil.
func (f *ManualTickers) Latest(name string) *ManualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[name]
}

// Created returns how many tickers were handed out.
func (f *ManualTickers) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

// All returns every ticker handed out, oldest first.
func (f *ManualTickers) All() []*ManualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ManualTicker(nil), f.all...)
}
