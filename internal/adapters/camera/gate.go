package camera

import (
	"context"
	"sync"
	"time"
)

// gate blocks readers while a source is paused and remembers when it last
// reopened.
type gate struct {
	mu      sync.Mutex
	paused  bool
	open    chan struct{}
	resumed time.Time
}

func newGate() *gate {
	g := &gate{open: make(chan struct{})}
	close(g.open)
	return g
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.open = make(chan struct{})
	}
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		g.resumed = time.Now()
		close(g.open)
	}
}

// resumedAt returns when the gate last reopened; zero if it never paused.
func (g *gate) resumedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumed
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// wait returns once the gate is open or ctx ends.
func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
