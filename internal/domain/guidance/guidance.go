// Package guidance holds the UI-facing instruction channel: the latest text and
// severity shown to the person in front of the camera.
package guidance

import (
	"sync"
	"time"
)

// Severity classifies a message for presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Source identifies which component produced a message.
type Source string

const (
	SourceSession  Source = "session"
	SourceLighting Source = "lighting"
	SourceBlink    Source = "blink"
	SourceSubmit   Source = "submission"
)

// Message is one guidance update.
type Message struct {
	Text     string    `json:"text"`
	Severity Severity  `json:"severity"`
	Source   Source    `json:"source"`
	At       time.Time `json:"at"`
	// Seq increases with every accepted update.
	Seq uint64 `json:"seq"`
}

// Board stores the current message and fans it out to subscribers.
//
// A pinned message (blink confirmed) takes precedence: Advise calls are
// ignored until Unpin. Pin, Fail and Set always replace the current message.
type Board struct {
	mu      sync.Mutex
	current Message
	pinned  bool
	seq     uint64
	subs    map[chan Message]struct{}
	now     func() time.Time
}

// NewBoard creates a board showing initial.
func NewBoard(initial Message) *Board {
	b := &Board{
		subs: make(map[chan Message]struct{}),
		now:  time.Now,
	}
	b.set(initial)
	return b
}

// Current returns the message on display.
func (b *Board) Current() Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Pinned reports whether a confirmation message holds precedence.
func (b *Board) Pinned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinned
}

// Advise shows an observational message unless a pinned message is active.
// It reports whether the message was accepted.
func (b *Board) Advise(m Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pinned {
		return false
	}
	b.set(m)
	return true
}

// Pin shows m and blocks Advise until Unpin.
func (b *Board) Pin(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pinned = true
	b.set(m)
}

// Unpin releases a pinned message and shows m.
func (b *Board) Unpin(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pinned = false
	b.set(m)
}

// Set replaces the message without touching the pin.
func (b *Board) Set(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(m)
}

// Fail shows an error message without touching the pin.
func (b *Board) Fail(source Source, text string) {
	b.Set(Message{Text: text, Severity: SeverityError, Source: source})
}

// Subscribe returns a channel that always holds the latest message. Slow
// readers only miss intermediate updates. cancel unsubscribes and closes it.
func (b *Board) Subscribe() (updates <-chan Message, cancel func()) {
	ch := make(chan Message, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	ch <- b.current
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// set must be called with b.mu held.
func (b *Board) set(m Message) {
	b.seq++
	m.Seq = b.seq
	if m.At.IsZero() {
		m.At = b.now()
	}
	if m.Severity == "" {
		m.Severity = SeverityInfo
	}
	b.current = m
	for ch := range b.subs {
		// drop the stale value, keep the newest
		select {
		case <-ch:
		default:
		}
		ch <- m
	}
}
