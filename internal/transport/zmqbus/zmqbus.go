// Package zmqbus connects subscribers and publishers to ZeroMQ PUB/SUB
// endpoints (tcp://, ipc://, inproc://).
package zmqbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Schemes routed to this transport.
var Schemes = []string{"tcp", "ipc", "inproc"}

// Options tunes the ZeroMQ sockets.
type Options struct {
	// HWM bounds how many received messages are buffered before new ones are dropped.
	HWM int

	// DialRetry is the wait between connection attempts and DialRetries how many
	// are made before Dial gives up.
	DialRetry   time.Duration
	DialRetries int
}

// DefaultOptions mirrors a SUB socket with a high-water mark of 100.
func DefaultOptions() Options {
	return Options{
		HWM:         messaging.DefaultHWM,
		DialRetry:   250 * time.Millisecond,
		DialRetries: 10,
	}
}

// Transport dials ZeroMQ sockets.
type Transport struct {
	log  zerolog.Logger
	opts Options
}

func New(log zerolog.Logger, opts Options) *Transport {
	if opts.HWM < 1 {
		opts.HWM = messaging.DefaultHWM
	}
	return &Transport{log: log, opts: opts}
}

func (t *Transport) socketOptions() []zmq4.Option {
	return []zmq4.Option{
		zmq4.WithDialerRetry(t.opts.DialRetry),
		zmq4.WithDialerMaxRetries(t.opts.DialRetries),
	}
}

// Dial connects a SUB socket to address and subscribes to the topic prefix.
func (t *Transport) Dial(ctx context.Context, address, topic string) (messaging.Socket, error) {
	// The socket outlives the dial context; Close is what tears it down.
	sub := zmq4.NewSub(context.WithoutCancel(ctx), t.socketOptions()...)

	if err := sub.Dial(address); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %q: %w", topic, err)
	}

	s := &subSocket{
		sub:   sub,
		topic: topic,
		inbox: messaging.NewInbox(t.opts.HWM),
		log:   t.log,
		done:  make(chan struct{}),
	}
	go s.read()

	t.log.Debug().Str("address", address).Str("topic", topic).Msg("zmq sub connected")
	return s, nil
}

// DialPublisher binds a PUB socket on address.
func (t *Transport) DialPublisher(ctx context.Context, address string) (messaging.Publisher, error) {
	pub := zmq4.NewPub(context.WithoutCancel(ctx), t.socketOptions()...)
	if err := pub.Listen(address); err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}

	t.log.Debug().Str("address", address).Msg("zmq pub listening")
	return &pubSocket{pub: pub}, nil
}

type subSocket struct {
	sub     zmq4.Socket
	topic   string
	inbox   *messaging.Inbox
	log     zerolog.Logger
	closing atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// read is the only caller of the blocking Recv. It converts each message into
// an envelope for the non-blocking TryRecv side.
func (s *subSocket) read() {
	defer close(s.done)

	for {
		msg, err := s.sub.Recv()
		if err != nil {
			if s.closing.Load() {
				s.inbox.Fail(messaging.ErrClosed)
				return
			}
			s.inbox.Fail(err)
			return
		}

		env, ok := envelopeOf(msg, s.topic)
		if !ok {
			continue
		}
		if !s.inbox.Push(env) {
			s.log.Trace().Str("topic", env.Topic).Msg("hwm reached, message dropped")
		}
	}
}

// envelopeOf maps multipart messages to topic + payload. A single frame is the
// whole payload, with the topic carried as its prefix.
func envelopeOf(msg zmq4.Msg, filter string) (messaging.Envelope, bool) {
	switch n := len(msg.Frames); n {
	case 0:
		return messaging.Envelope{}, false
	case 1:
		return messaging.Envelope{Topic: filter, Payload: msg.Frames[0]}, true
	default:
		return messaging.Envelope{Topic: string(msg.Frames[0]), Payload: msg.Frames[n-1]}, true
	}
}

func (s *subSocket) TryRecv() (messaging.Envelope, error) {
	return s.inbox.TryRecv()
}

func (s *subSocket) Dropped() uint64 {
	return s.inbox.Dropped()
}

func (s *subSocket) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		err = s.sub.Close()
		<-s.done
	})
	return err
}

type pubSocket struct {
	mu     sync.Mutex
	pub    zmq4.Socket
	closed bool
}

// Publish sends a two-frame message when topic is set, otherwise a single frame.
func (p *pubSocket) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return messaging.ErrClosed
	}

	msg := zmq4.NewMsg(payload)
	if topic != "" {
		msg = zmq4.NewMsgFrom([]byte(topic), payload)
	}
	if err := p.pub.Send(msg); err != nil {
		return fmt.Errorf("zmq send: %w", err)
	}
	return nil
}

func (p *pubSocket) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.pub.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
