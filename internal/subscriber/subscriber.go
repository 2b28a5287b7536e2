// Package subscriber runs a background receive loop against a message bus and
// publishes the latest message to observers and pollers.
//
// The loop owns all subscriber state. Observers are called synchronously on
// the loop goroutine in receive order, so a slow observer stalls ingestion.
// Renderers that run on their own schedule should read Latest or History
// instead of doing work inside an observer.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("subscriber already started")

	// ErrStopped is returned by Start once Stop has been called.
	ErrStopped = errors.New("subscriber stopped")

	// ErrConnect wraps dial failures returned from Start.
	ErrConnect = errors.New("connect")

	// ErrConnectionLost wraps the socket error that terminated the loop.
	ErrConnectionLost = errors.New("connection lost")
)

// Observer receives every decoded message in order.
type Observer func(messaging.Message)

// Stats is a point-in-time snapshot of subscriber counters.
type Stats struct {
	State        State  `json:"state"`
	Received     uint64 `json:"received"`
	DecodeErrors uint64 `json:"decode_errors"`
	Dropped      uint64 `json:"dropped"`
}

// Subscriber maintains one subscription and its receive loop.
type Subscriber struct {
	dialer messaging.Dialer
	log    zerolog.Logger
	opts   Options

	mu      sync.Mutex // guards lifecycle fields below
	sock    messaging.Socket
	address string
	topic   string

	obsMu     sync.RWMutex
	observers []Observer

	histMu  sync.RWMutex
	history []messaging.Message

	latest       atomic.Pointer[messaging.Message]
	state        atomic.Int32
	received     atomic.Uint64
	decodeErrors atomic.Uint64

	errMu sync.Mutex
	err   error

	started  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneOnce sync.Once
	done     chan struct{}
}

// New creates a Subscriber that opens its socket through dialer.
func New(dialer messaging.Dialer, log zerolog.Logger, opts Options) *Subscriber {
	return &Subscriber{
		dialer: dialer,
		log:    log,
		opts:   opts.withDefaults(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Observe registers fn. It may be called before or after Start.
func (s *Subscriber) Observe(fn Observer) {
	if fn == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

// Start dials address filtered to topic and launches the receive loop.
// A dial failure is returned and leaves the subscriber in StateFailed.
// Start after Stop returns ErrStopped without dialing, and a dial that
// completes after Stop has begun is closed again.
// Cancelling ctx ends the receive loop; Stop must still be called to release
// the socket.
func (s *Subscriber) Start(ctx context.Context, address, topic string) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if s.stopping.Load() {
		s.finish()
		return ErrStopped
	}

	s.mu.Lock()
	s.address = address
	s.topic = topic
	s.mu.Unlock()

	// Dialing can take seconds; accessors must not wait on it.
	sock, err := s.dialer.Dial(ctx, address, topic)
	if err != nil {
		err = fmt.Errorf("%w %s: %w", ErrConnect, address, err)
		s.setErr(err)
		s.state.Store(int32(StateFailed))
		s.finish()
		return err
	}

	s.mu.Lock()
	if s.stopping.Load() {
		s.mu.Unlock()
		_ = sock.Close()
		s.state.Store(int32(StateStopped))
		s.finish()
		return ErrStopped
	}
	s.sock = sock
	s.state.Store(int32(StateRunning))
	s.mu.Unlock()

	s.log.Info().
		Str("address", address).
		Str("topic", topic).
		Dur("poll_interval", s.opts.PollInterval).
		Dur("max_backoff", s.opts.MaxBackoff).
		Msg("subscriber started")

	go s.run(ctx, sock)
	return nil
}

// finish closes done once.
func (s *Subscriber) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Stop ends the receive loop, waits for it to exit and closes the socket.
// No observer is invoked after Stop is called. Later calls do nothing.
// Stop must not be called from inside an observer.
func (s *Subscriber) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		close(s.stopCh)

		s.mu.Lock()
		sock := s.sock
		s.mu.Unlock()

		if sock == nil {
			if s.State() == StateIdle {
				s.state.Store(int32(StateStopped))
			}
			if !s.started.Load() {
				s.finish()
			}
			return
		}

		<-s.done
		if cerr := sock.Close(); cerr != nil && !errors.Is(cerr, messaging.ErrClosed) {
			err = fmt.Errorf("close socket: %w", cerr)
		}

		st := s.Stats()
		s.log.Info().
			Str("state", st.State.String()).
			Uint64("received", st.Received).
			Uint64("decode_errors", st.DecodeErrors).
			Uint64("dropped", st.Dropped).
			Msg("subscriber stopped")
	})
	return err
}

func (s *Subscriber) run(ctx context.Context, sock messaging.Socket) {
	defer s.finish()

	var (
		first, prev time.Time
		seq         uint64
		wait        = s.opts.PollInterval
		timer       = time.NewTimer(time.Hour)
	)
	timer.Stop()
	defer timer.Stop()

	for {
		if s.stopping.Load() || ctx.Err() != nil {
			s.state.Store(int32(StateStopped))
			return
		}

		env, err := sock.TryRecv()
		if err != nil {
			if errors.Is(err, messaging.ErrWouldBlock) {
				if wait == 0 {
					runtime.Gosched()
					continue
				}
				timer.Reset(wait)
				select {
				case <-timer.C:
				case <-s.stopCh:
					timer.Stop()
				case <-ctx.Done():
					timer.Stop()
				}
				wait = nextBackoff(wait, s.opts.MaxBackoff)
				continue
			}

			err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
			s.setErr(err)
			s.state.Store(int32(StateFailed))
			s.log.Error().Err(err).Str("address", s.address).Msg("subscriber terminated")
			return
		}
		wait = s.opts.PollInterval

		now := s.opts.Now()
		payload, err := s.opts.Decoder(env.Payload)
		if err != nil {
			s.decodeErrors.Add(1)
			s.log.Debug().Err(err).Str("topic", env.Topic).Int("bytes", len(env.Payload)).Msg("dropping undecodable payload")
			continue
		}

		if first.IsZero() {
			first = now
			prev = now
		}
		seq++

		msg := messaging.Message{
			Seq:        seq,
			Topic:      env.Topic,
			ReceivedAt: now,
			Elapsed:    now.Sub(first),
			Interval:   now.Sub(prev),
			Payload:    payload,
		}
		prev = now

		s.received.Add(1)
		s.latest.Store(&msg)
		if s.opts.History {
			s.histMu.Lock()
			s.history = append(s.history, msg)
			s.histMu.Unlock()
		}

		s.log.Trace().
			Uint64("seq", msg.Seq).
			Str("topic", msg.Topic).
			Str("payload", msg.Payload).
			Dur("elapsed", msg.Elapsed).
			Dur("interval", msg.Interval).
			Msg("received")

		s.dispatch(msg)
	}
}

func (s *Subscriber) dispatch(msg messaging.Message) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()

	for _, fn := range observers {
		if s.stopping.Load() {
			return
		}
		fn(msg)
	}
}

// Latest returns the most recent message, if any has been received.
func (s *Subscriber) Latest() (messaging.Message, bool) {
	m := s.latest.Load()
	if m == nil {
		return messaging.Message{}, false
	}
	return *m, true
}

// History returns a copy of every received message. It is empty unless
// Options.History is set.
func (s *Subscriber) History() []messaging.Message {
	s.histMu.RLock()
	defer s.histMu.RUnlock()

	out := make([]messaging.Message, len(s.history))
	copy(out, s.history)
	return out
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Err returns the error that put the subscriber in StateFailed.
func (s *Subscriber) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Done is closed when the receive loop has exited, or immediately after a
// failed Start.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Address returns the address passed to Start.
func (s *Subscriber) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Topic returns the topic filter passed to Start.
func (s *Subscriber) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// Stats returns the current counters.
func (s *Subscriber) Stats() Stats {
	st := Stats{
		State:        s.State(),
		Received:     s.received.Load(),
		DecodeErrors: s.decodeErrors.Load(),
	}

	s.mu.Lock()
	sock := s.sock
	s.mu.Unlock()
	if dc, ok := sock.(messaging.DropCounter); ok {
		st.Dropped = dc.Dropped()
	}
	return st
}

func (s *Subscriber) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}
