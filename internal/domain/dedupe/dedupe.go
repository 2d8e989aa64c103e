// Package dedupe remembers invite codes this kiosk has already handled so a
// code cannot be enrolled twice from the same device.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Status is the state of an invite code in the ledger.
type Status int

const (
	// StatusUnknown means the code has never been claimed (or was evicted).
	StatusUnknown Status = iota
	// StatusClaimed means a capture session currently owns the code.
	StatusClaimed
	// StatusUsed means an enrollment with the code was accepted.
	StatusUsed
)

func (s Status) String() string {
	switch s {
	case StatusClaimed:
		return "claimed"
	case StatusUsed:
		return "used"
	default:
		return "unknown"
	}
}

// Ledger tracks claimed and used invite codes.
type Ledger interface {
	// Claim atomically records code for a new session. It returns false when
	// the code is already claimed or used.
	Claim(ctx context.Context, code string) bool
	// Commit marks a claimed code as used. Used codes are never released.
	Commit(ctx context.Context, code string)
	// Release drops a claim whose session was abandoned. Used codes stay.
	Release(ctx context.Context, code string)
	// Status reports what the ledger knows about code.
	Status(code string) Status
	Size() int64
}

type entry struct {
	code   string
	status Status
}

// inMemoryLedger keeps codes in insertion order. When bounded, the oldest used
// code is evicted first; claims are never evicted.
type inMemoryLedger struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	maxSize int // <= 0 means unbounded
	size    atomic.Int64
}

// NewInMemoryLedger creates a ledger with configuration options.
func NewInMemoryLedger(opts ...Option) Ledger {
	l := &inMemoryLedger{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.index = make(map[string]*list.Element)
	l.order = list.New()
	return l
}

func (l *inMemoryLedger) Claim(_ context.Context, code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[code]; ok {
		return false
	}
	if l.maxSize > 0 && l.order.Len() >= l.maxSize {
		l.evictOldestUsed()
	}
	l.index[code] = l.order.PushBack(&entry{code: code, status: StatusClaimed})
	l.size.Add(1)
	return true
}

func (l *inMemoryLedger) Commit(_ context.Context, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.index[code]; ok {
		el.Value.(*entry).status = StatusUsed
		return
	}
	// committed without a claim (e.g. evicted meanwhile): remember it anyway
	l.index[code] = l.order.PushBack(&entry{code: code, status: StatusUsed})
	l.size.Add(1)
}

func (l *inMemoryLedger) Release(_ context.Context, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.index[code]
	if !ok || el.Value.(*entry).status != StatusClaimed {
		return
	}
	l.order.Remove(el)
	delete(l.index, code)
	l.size.Add(-1)
}

func (l *inMemoryLedger) Status(code string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.index[code]; ok {
		return el.Value.(*entry).status
	}
	return StatusUnknown
}

// evictOldestUsed must be called with l.mu held.
func (l *inMemoryLedger) evictOldestUsed() {
	for el := l.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.status != StatusUsed {
			continue
		}
		l.order.Remove(el)
		delete(l.index, e.code)
		l.size.Add(-1)
		return
	}
}

func (l *inMemoryLedger) Size() int64 {
	return l.size.Load()
}
