// Package memory provides an in-process message bus. It backs tests and the
// "mem://" scheme; every Bus is an independent instance owned by its creator.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Scheme is the address scheme routed to a memory bus.
const Scheme = "mem"

var ErrBusClosed = errors.New("memory bus closed")

// Bus fans published payloads out to every subscription whose filter matches.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*socket]struct{}
	hwm    int
	closed bool
}

// New creates a bus whose subscriptions buffer up to hwm envelopes each.
func New(hwm int) *Bus {
	return &Bus{
		subs: make(map[*socket]struct{}),
		hwm:  hwm,
	}
}

// Dial subscribes to topic. The address is ignored.
func (b *Bus) Dial(_ context.Context, _ string, topic string) (messaging.Socket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	s := &socket{
		bus:   b,
		topic: topic,
		inbox: messaging.NewInbox(b.hwm),
	}
	b.subs[s] = struct{}{}
	return s, nil
}

// DialPublisher returns a publisher that writes to this bus.
func (b *Bus) DialPublisher(_ context.Context, _ string) (messaging.Publisher, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	return publisher{bus: b}, nil
}

// Publish delivers payload to every matching subscription without blocking.
func (b *Bus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for s := range b.subs {
		if messaging.MatchTopic(s.topic, topic) {
			s.inbox.Push(messaging.Envelope{Topic: topic, Payload: payload})
		}
	}
	return nil
}

// Fail terminates every open subscription with err, as a dropped connection would.
func (b *Bus) Fail(err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		s.inbox.Fail(err)
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close fails all subscriptions and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.inbox.Fail(ErrBusClosed)
	}
	b.subs = nil
}

type socket struct {
	bus   *Bus
	topic string
	inbox *messaging.Inbox
}

func (s *socket) TryRecv() (messaging.Envelope, error) {
	return s.inbox.TryRecv()
}

func (s *socket) Dropped() uint64 {
	return s.inbox.Dropped()
}

func (s *socket) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.inbox.Fail(messaging.ErrClosed)
	return nil
}

type publisher struct {
	bus *Bus
}

func (p publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.bus.Publish(ctx, topic, payload)
}

func (p publisher) Close() error { return nil }
