package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/facegate/pkg/logger"
)

// Task is one unit of periodic work. It must return promptly once ctx is done.
type Task func(ctx context.Context, at time.Time)

// Worker is a background loop with an explicit stop handshake.
type Worker interface {
	// Run executes the loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for the in-flight tick to finish.
	Shutdown(ctx context.Context) error
}

var _ Worker = (*Periodic)(nil)

// Periodic runs a Task on every tick of its ticker.
type Periodic struct {
	name      string
	interval  time.Duration
	task      Task
	newTicker TickerFactory
	ticker    Ticker

	// Shutdown control
	shutdown     chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
	startOnce    sync.Once

	logger logger.Logger
}

// NewPeriodic creates a task that fires every interval.
func NewPeriodic(name string, interval time.Duration, task Task, opts ...Option) *Periodic {
	p := &Periodic{
		name:      name,
		interval:  interval,
		task:      task,
		newTicker: SystemTicker,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named(name)
	return p
}

// Name returns the task name.
func (p *Periodic) Name() string { return p.name }

// Start acquires the ticker synchronously and runs the loop in a goroutine.
func (p *Periodic) Start(ctx context.Context) {
	p.ensureTicker()
	go p.Run(ctx)
}

func (p *Periodic) ensureTicker() {
	p.startOnce.Do(func() {
		p.ticker = p.newTicker(p.name, p.interval)
	})
}

// Run executes the loop in the calling goroutine.
func (p *Periodic) Run(ctx context.Context) {
	p.ensureTicker()
	defer func() {
		p.ticker.Stop()
		close(p.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case at := <-p.ticker.C():
			// a stop that raced with the tick wins
			select {
			case <-p.shutdown:
				return
			default:
			}
			p.task(ctx, at)
			if a, ok := p.ticker.(Acker); ok {
				a.Ack()
			}
		}
	}
}

// Stop signals the loop to exit without waiting.
func (p *Periodic) Stop() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
}

// Done is closed once the loop has fully exited.
func (p *Periodic) Done() <-chan struct{} { return p.done }

// Shutdown stops the loop and waits for it to exit.
func (p *Periodic) Shutdown(ctx context.Context) error {
	p.Stop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown of %s timed out: %w", p.name, ctx.Err())
	}
}

// Group manages the tasks of one detection round.
type Group struct {
	tasks []*Periodic
}

// NewGroup bundles tasks.
func NewGroup(tasks ...*Periodic) *Group {
	return &Group{tasks: tasks}
}

// Start starts every task.
func (g *Group) Start(ctx context.Context) {
	for _, t := range g.tasks {
		t.Start(ctx)
	}
}

// Stop signals every task without waiting.
func (g *Group) Stop() {
	for _, t := range g.tasks {
		t.Stop()
	}
}

// Shutdown signals every task, then waits for each to exit or ctx to end.
func (g *Group) Shutdown(ctx context.Context) error {
	g.Stop()
	for _, t := range g.tasks {
		if err := t.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
