// Package kafkabus consumes and produces sensor samples on Kafka topics.
//
// Addresses have the form kafka://broker1:9092,broker2:9092/topic. A
// subscription starts at the end of the topic, so only samples produced after
// Dial are seen.
package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Schemes routed to this transport.
var Schemes = []string{"kafka"}

const defaultPort = "9092"

// Options configures the Kafka clients.
type Options struct {
	ClientID string
	// Group joins a consumer group when set; otherwise partitions are consumed directly.
	Group string
	HWM   int
}

// Transport dials Kafka clients.
type Transport struct {
	log  zerolog.Logger
	opts Options
}

func New(log zerolog.Logger, opts Options) *Transport {
	if opts.ClientID == "" {
		opts.ClientID = "rtscope"
	}
	if opts.HWM < 1 {
		opts.HWM = messaging.DefaultHWM
	}
	return &Transport{log: log, opts: opts}
}

// Endpoint is a parsed Kafka address.
type Endpoint struct {
	Brokers []string
	Topic   string
}

func ParseAddress(address string) (Endpoint, error) {
	scheme, rest, ok := strings.Cut(address, "://")
	if !ok || !strings.EqualFold(scheme, "kafka") {
		return Endpoint{}, fmt.Errorf("address %q: expected kafka://brokers/topic", address)
	}

	hosts, topic, _ := strings.Cut(rest, "/")
	var brokers []string
	for _, h := range strings.Split(hosts, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.Contains(h, ":") {
			h += ":" + defaultPort
		}
		brokers = append(brokers, h)
	}
	if len(brokers) == 0 {
		return Endpoint{}, fmt.Errorf("address %q: no brokers", address)
	}

	return Endpoint{Brokers: brokers, Topic: strings.Trim(topic, "/")}, nil
}

// Dial starts consuming topic, or the address path topic when topic is empty.
func (t *Transport) Dial(ctx context.Context, address, topic string) (messaging.Socket, error) {
	ep, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		topic = ep.Topic
	}
	if topic == "" {
		return nil, fmt.Errorf("address %q: kafka requires a topic", address)
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(ep.Brokers...),
		kgo.ClientID(t.opts.ClientID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}
	if t.opts.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(t.opts.Group))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping %s: %w", strings.Join(ep.Brokers, ","), err)
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &socket{
		client: client,
		inbox:  messaging.NewInbox(t.opts.HWM),
		log:    t.log.With().Str("topic", topic).Logger(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.poll(pollCtx)

	t.log.Debug().Strs("brokers", ep.Brokers).Str("topic", topic).Msg("kafka consumer started")
	return s, nil
}

// DialPublisher creates a producer. Publishes with an empty topic go to the
// address path topic.
func (t *Transport) DialPublisher(ctx context.Context, address string) (messaging.Publisher, error) {
	ep, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(ep.Brokers...),
		kgo.ClientID(t.opts.ClientID),
		kgo.AllowAutoTopicCreation(),
	}
	if ep.Topic != "" {
		opts = append(opts, kgo.DefaultProduceTopic(ep.Topic))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping %s: %w", strings.Join(ep.Brokers, ","), err)
	}
	return &publisher{client: client}, nil
}

type socket struct {
	client *kgo.Client
	inbox  *messaging.Inbox
	log    zerolog.Logger
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (s *socket) poll(ctx context.Context) {
	defer close(s.done)

	for {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			s.inbox.Fail(messaging.ErrClosed)
			return
		}

		// The client retries broker failures internally; what surfaces here is
		// reported but does not end the subscription.
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.log.Warn().Err(err).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			s.inbox.Push(messaging.Envelope{Topic: r.Topic, Payload: r.Value})
		})
	}
}

func (s *socket) TryRecv() (messaging.Envelope, error) { return s.inbox.TryRecv() }

func (s *socket) Dropped() uint64 { return s.inbox.Dropped() }

func (s *socket) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.client.Close()
	})
	return nil
}

type publisher struct {
	client *kgo.Client
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	rec := &kgo.Record{Topic: topic, Value: payload}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

func (p *publisher) Close() error {
	p.client.Close()
	return nil
}
