package messaging

import (
	"context"
	"errors"
)

var (
	// ErrWouldBlock is returned by TryRecv when nothing is buffered. It is not a
	// failure; callers poll again later.
	ErrWouldBlock = errors.New("no message available")

	// ErrClosed is returned by sockets and publishers used after Close.
	ErrClosed = errors.New("socket closed")

	// ErrPublishUnsupported is returned by transports that are subscribe-only.
	ErrPublishUnsupported = errors.New("transport does not support publishing")
)

// Socket is a non-blocking subscription.
type Socket interface {
	// TryRecv returns the next envelope, ErrWouldBlock when none is buffered, or
	// a terminal error once the connection is gone.
	TryRecv() (Envelope, error)
	Close() error
}

// Dialer opens subscriptions. An empty topic subscribes to everything.
type Dialer interface {
	Dial(ctx context.Context, address, topic string) (Socket, error)
}

// Publisher sends payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// PublisherDialer opens publishers.
type PublisherDialer interface {
	DialPublisher(ctx context.Context, address string) (Publisher, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address, topic string) (Socket, error)

func (f DialerFunc) Dial(ctx context.Context, address, topic string) (Socket, error) {
	return f(ctx, address, topic)
}
