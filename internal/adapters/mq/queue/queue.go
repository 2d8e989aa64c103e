// Package queue hands camera frames from a producer goroutine to the
// detection tasks.
//
// The mailbox holds a single slot: a new frame overwrites an unread one, so
// consumers always see the most recent frame and a slow consumer never builds
// a backlog.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
	"github.com/okian/facegate/pkg/metrics"
)

// FrameQueue is the contract between a frame producer and its consumers.
type FrameQueue interface {
	// Publish stores f as the latest frame. It never blocks. Returns false
	// when the mailbox is closed.
	Publish(f model.Frame) bool

	// Next waits for a frame newer than the one last returned by Next.
	Next(ctx context.Context) (model.Frame, error)

	// Discard drops the unread frame so the next Next waits for a fresh one.
	Discard() bool

	Close() error
	IsClosed() bool
}

// Mailbox implements FrameQueue with a single overwrite slot.
type Mailbox struct {
	mu      sync.Mutex
	latest  model.Frame
	unread  bool
	closed  bool
	notify  chan struct{}
	drops   atomic.Uint64
	total   atomic.Uint64
	log     logger.Logger
	metrics bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox(opts ...Option) *Mailbox {
	m := &Mailbox{
		notify:  make(chan struct{}, 1),
		metrics: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics {
		metrics.UpdateMailboxUtilization(0)
	}
	return m
}

// Publish overwrites the slot with f.
func (m *Mailbox) Publish(f model.Frame) bool { //nolint:gocritic // hugeParam: frames are passed by value, Pix is shared
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	dropped := m.unread
	m.latest = f
	m.unread = true
	select {
	case m.notify <- struct{}{}:
	default:
	}
	m.mu.Unlock()

	m.total.Add(1)
	if m.metrics {
		metrics.RecordFrameReceived()
		metrics.UpdateMailboxUtilization(1)
	}
	if dropped {
		m.drops.Add(1)
		if m.metrics {
			metrics.RecordFrameDrop()
		}
	}
	return true
}

// Next returns the unread frame, waiting for one if the slot was already
// consumed. It returns ErrClosed once the mailbox is closed and ctx.Err()
// when ctx ends first.
func (m *Mailbox) Next(ctx context.Context) (model.Frame, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return model.Frame{}, ErrClosed
		}
		if m.unread {
			f := m.latest
			m.unread = false
			m.mu.Unlock()
			if m.metrics {
				metrics.UpdateMailboxUtilization(0)
			}
			return f, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Frame{}, ctx.Err()
		case <-m.notify:
		}
	}
}

// Discard drops the unread frame, if any, and reports whether one was
// dropped. A source calls it when the feed is paused or resumed so frames
// captured before the pause never reach a later reader.
func (m *Mailbox) Discard() bool {
	m.mu.Lock()
	dropped := m.unread
	m.unread = false
	m.latest = model.Frame{}
	m.mu.Unlock()

	if !dropped {
		return false
	}
	m.drops.Add(1)
	if m.metrics {
		metrics.RecordFrameDrop()
		metrics.UpdateMailboxUtilization(0)
	}
	return true
}

// Drops returns how many frames were overwritten or discarded unread.
func (m *Mailbox) Drops() uint64 { return m.drops.Load() }

// Published returns how many frames were accepted.
func (m *Mailbox) Published() uint64 { return m.total.Load() }

// Close wakes all waiters; subsequent Publish calls are rejected.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.notify)
	m.mu.Unlock()

	if m.log != nil {
		m.log.Debug(context.Background(), "frame mailbox closed",
			logger.Uint64("published", m.total.Load()),
			logger.Uint64("dropped", m.drops.Load()))
	}
	return nil
}

// IsClosed reports whether Close was called.
func (m *Mailbox) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
