package messaging

import (
	"sync"
	"sync/atomic"
)

// DefaultHWM is the number of envelopes an Inbox buffers before it starts
// dropping new arrivals.
const DefaultHWM = 100

// Inbox adapts blocking or callback-driven client libraries to the
// non-blocking Socket contract. A reader goroutine (or library callback)
// pushes envelopes; the subscriber drains them with TryRecv.
//
// When the buffer is full new envelopes are dropped and counted, mirroring a
// SUB socket high-water mark. A terminal failure is reported only after every
// envelope buffered before it has been received.
type Inbox struct {
	ch      chan Envelope
	failed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	err     error
	dropped atomic.Uint64
}

// NewInbox creates an Inbox holding at most hwm envelopes.
func NewInbox(hwm int) *Inbox {
	if hwm < 1 {
		hwm = DefaultHWM
	}
	return &Inbox{
		ch:     make(chan Envelope, hwm),
		failed: make(chan struct{}),
	}
}

// Push buffers env without blocking. It reports false when the envelope was
// dropped, either because the buffer is full or the inbox has failed.
func (b *Inbox) Push(env Envelope) bool {
	select {
	case <-b.failed:
		return false
	default:
	}

	select {
	case b.ch <- env:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Fail marks the inbox as terminated. Only the first call has any effect; a
// nil err is recorded as ErrClosed.
func (b *Inbox) Fail(err error) {
	b.once.Do(func() {
		if err == nil {
			err = ErrClosed
		}
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		close(b.failed)
	})
}

// TryRecv implements the receive half of Socket.
func (b *Inbox) TryRecv() (Envelope, error) {
	select {
	case env := <-b.ch:
		return env, nil
	default:
	}

	select {
	case <-b.failed:
		return Envelope{}, b.Err()
	default:
		return Envelope{}, ErrWouldBlock
	}
}

// Err returns the terminal error, or nil while the inbox is live.
func (b *Inbox) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Len returns the number of buffered envelopes.
func (b *Inbox) Len() int {
	return len(b.ch)
}

// Dropped returns how many envelopes were discarded because the buffer was full.
func (b *Inbox) Dropped() uint64 {
	return b.dropped.Load()
}

// DropCounter is implemented by sockets that can report high-water-mark drops.
type DropCounter interface {
	Dropped() uint64
}
