package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/facegate/internal/domain/model"
)

func frame(seq uint64) model.Frame {
	return model.SolidFrame(2, 2, 10, 20, 30, seq)
}

func TestMailbox_LatestWins(t *testing.T) {
	m := NewMailbox(WithMetrics(false))
	ctx := context.Background()

	if m.Published() != 0 {
		t.Fatal("expected empty mailbox")
	}

	m.Publish(frame(1))
	m.Publish(frame(2))
	m.Publish(frame(3))

	f, err := m.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Seq != 3 {
		t.Errorf("expected newest frame 3, got %d", f.Seq)
	}
	if d := m.Drops(); d != 2 {
		t.Errorf("expected 2 drops, got %d", d)
	}
	if p := m.Published(); p != 3 {
		t.Errorf("expected 3 published, got %d", p)
	}
}

func TestMailbox_DiscardDropsUnreadFrame(t *testing.T) {
	m := NewMailbox(WithMetrics(false))

	if m.Discard() {
		t.Error("expected nothing to discard in an empty mailbox")
	}

	m.Publish(frame(7))
	if !m.Discard() {
		t.Fatal("expected the unread frame to be discarded")
	}
	if d := m.Drops(); d != 1 {
		t.Errorf("expected 1 drop, got %d", d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if f, err := m.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no frame after discard, got seq=%d err=%v", f.Seq, err)
	}

	m.Publish(frame(8))
	f, err := m.Next(context.Background())
	if err != nil || f.Seq != 8 {
		t.Errorf("expected fresh frame 8, got seq=%d err=%v", f.Seq, err)
	}
}

func TestMailbox_NextWaitsForNewFrame(t *testing.T) {
	m := NewMailbox(WithMetrics(false))
	m.Publish(frame(1))

	if _, err := m.Next(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded for consumed slot, got %v", err)
	}

	got := make(chan uint64, 1)
	go func() {
		f, err := m.Next(context.Background())
		if err == nil {
			got <- f.Seq
		}
	}()
	time.Sleep(5 * time.Millisecond)
	m.Publish(frame(2))

	select {
	case seq := <-got:
		if seq != 2 {
			t.Errorf("expected frame 2, got %d", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by publish")
	}
}

func TestMailbox_Close(t *testing.T) {
	m := NewMailbox(WithMetrics(false))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Next(context.Background())
			errs <- err
		}()
	}
	time.Sleep(5 * time.Millisecond)

	if err := m.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	}

	if !m.IsClosed() {
		t.Error("expected mailbox to be closed")
	}
	if m.Publish(frame(9)) {
		t.Error("expected publish to fail after close")
	}
	if err := m.Close(); err != nil {
		t.Errorf("expected second close to succeed, got %v", err)
	}
}

func TestMailbox_ConcurrentPublish(t *testing.T) {
	m := NewMailbox(WithMetrics(false))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			f, err := m.Next(ctx)
			if err != nil {
				return
			}
			if f.Seq < last {
				t.Errorf("frame order went backwards: %d after %d", f.Seq, last)
			}
			last = f.Seq
		}
	}()

	for i := uint64(1); i <= 500; i++ {
		m.Publish(frame(i))
	}
	time.Sleep(10 * time.Millisecond)
	_ = m.Close()
	<-done

	if got := m.Published(); got != 500 {
		t.Errorf("expected 500 published, got %d", got)
	}
}
