package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Scheme routes file:///dir addresses to a MsgStore rooted at dir.
const Scheme = "file"

// DefaultPollInterval is how often followers check the store for new records.
const DefaultPollInterval = 50 * time.Millisecond

// Transport exposes topic directories as subscriptions and publishers.
type Transport struct {
	log          zerolog.Logger
	pollInterval time.Duration
	hwm          int
	maxRecords   int
}

// TransportOptions configures file-backed subscriptions.
type TransportOptions struct {
	PollInterval time.Duration
	HWM          int
	MaxRecords   int
}

func NewTransport(log zerolog.Logger, opts TransportOptions) *Transport {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Transport{
		log:          log,
		pollInterval: opts.PollInterval,
		hwm:          opts.HWM,
		maxRecords:   opts.MaxRecords,
	}
}

// DirOf returns the directory of a file:// address.
func DirOf(address string) (string, error) {
	dir, ok := strings.CutPrefix(address, Scheme+"://")
	if !ok || dir == "" {
		return "", fmt.Errorf("address %q: expected file:///path/to/topics", address)
	}
	return dir, nil
}

func (t *Transport) store(address string) (*MsgStore, error) {
	dir, err := DirOf(address)
	if err != nil {
		return nil, err
	}
	return NewMsgStore(dir).WithMaxRecords(t.maxRecords), nil
}

// Dial follows records published after the call on topics matching topic.
func (t *Transport) Dial(ctx context.Context, address, topic string) (messaging.Socket, error) {
	store, err := t.store(address)
	if err != nil {
		return nil, err
	}
	return Follow(ctx, store, topic, FollowOptions{
		Since:        store.now(),
		PollInterval: t.pollInterval,
		HWM:          t.hwm,
		Log:          t.log,
	}), nil
}

// DialPublisher appends to the topic files under address.
func (t *Transport) DialPublisher(_ context.Context, address string) (messaging.Publisher, error) {
	store, err := t.store(address)
	if err != nil {
		return nil, err
	}
	return &Publisher{store: store}, nil
}

// Publisher writes payloads as records.
type Publisher struct {
	store *MsgStore
}

func NewPublisher(store *MsgStore) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		topic = "default"
	}
	return p.store.Publish(ctx, messaging.Record{Topic: topic, Payload: string(payload)})
}

func (p *Publisher) Close() error { return nil }

// FollowOptions configures Follow.
type FollowOptions struct {
	Since        time.Time
	PollInterval time.Duration
	HWM          int
	Log          zerolog.Logger
}

// Follow returns a socket that polls store for new records matching pattern.
// Missing topics are not an error; they are polled until they appear.
func Follow(ctx context.Context, store *MsgStore, pattern string, opts FollowOptions) messaging.Socket {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &follower{
		store:   store,
		pattern: pattern,
		since:   opts.Since,
		seen:    make(map[string]struct{}),
		inbox:   messaging.NewInbox(opts.HWM),
		log:     opts.Log,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go f.run(pollCtx, opts.PollInterval)
	return f
}

type follower struct {
	store   *MsgStore
	pattern string
	inbox   *messaging.Inbox
	log     zerolog.Logger
	cancel  context.CancelFunc
	once    sync.Once
	done    chan struct{}

	// since and seen are owned by run. Records sharing the since timestamp are
	// tracked by ID so none are delivered twice or skipped.
	since time.Time
	seen  map[string]struct{}
}

func (f *follower) run(ctx context.Context, interval time.Duration) {
	defer close(f.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := f.poll(ctx); err != nil {
			f.inbox.Fail(err)
			return
		}

		select {
		case <-ctx.Done():
			f.inbox.Fail(messaging.ErrClosed)
			return
		case <-ticker.C:
		}
	}
}

func (f *follower) poll(ctx context.Context) error {
	from := f.since
	if !from.IsZero() {
		from = from.Add(-time.Nanosecond)
	}

	records, err := f.store.Subscribe(ctx, f.pattern, from)
	if err != nil {
		if errors.Is(err, messaging.ErrTopicNotFound) {
			return nil
		}
		return err
	}

	for _, rec := range records {
		if rec.CreatedAt.Before(f.since) {
			continue
		}
		if _, dup := f.seen[rec.ID]; dup {
			continue
		}
		if rec.CreatedAt.After(f.since) {
			f.since = rec.CreatedAt
			clear(f.seen)
		}
		f.seen[rec.ID] = struct{}{}

		if !f.inbox.Push(messaging.Envelope{Topic: rec.Topic, Payload: []byte(rec.Payload)}) {
			f.log.Trace().Str("topic", rec.Topic).Msg("hwm reached, record dropped")
		}
	}
	return nil
}

func (f *follower) TryRecv() (messaging.Envelope, error) { return f.inbox.TryRecv() }

func (f *follower) Dropped() uint64 { return f.inbox.Dropped() }

func (f *follower) Close() error {
	f.once.Do(func() {
		f.cancel()
		<-f.done
	})
	return nil
}
