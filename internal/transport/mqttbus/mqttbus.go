// Package mqttbus subscribes to and publishes on an MQTT broker.
//
// Addresses have the form mqtt://host:port/topic-filter (mqtts:// for TLS).
// Automatic reconnection is disabled: a lost connection ends the
// subscription with an error.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Schemes routed to this transport.
var Schemes = []string{"mqtt", "mqtts"}

const defaultPort = "1883"

var ErrTimeout = errors.New("mqtt operation timed out")

// Options configures broker sessions.
type Options struct {
	QoS            byte
	Username       string
	Password       string
	ClientIDPrefix string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	HWM            int
}

func DefaultOptions() Options {
	return Options{
		ClientIDPrefix: "rtscope",
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
		HWM:            messaging.DefaultHWM,
	}
}

// Transport dials MQTT sessions.
type Transport struct {
	log       zerolog.Logger
	opts      Options
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func New(log zerolog.Logger, opts Options) *Transport {
	def := DefaultOptions()
	if opts.ClientIDPrefix == "" {
		opts.ClientIDPrefix = def.ClientIDPrefix
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = def.PublishTimeout
	}
	if opts.HWM < 1 {
		opts.HWM = def.HWM
	}
	return &Transport{log: log, opts: opts, newClient: mqtt.NewClient}
}

// Endpoint is a parsed MQTT address.
type Endpoint struct {
	Broker string // paho broker URL, e.g. tcp://host:1883
	Topic  string // topic from the address path, may be empty
}

// ParseAddress splits address into a broker URL and topic. The topic is taken
// verbatim so MQTT wildcards (+ and #) survive.
func ParseAddress(address string) (Endpoint, error) {
	scheme, rest, ok := strings.Cut(address, "://")
	if !ok {
		return Endpoint{}, fmt.Errorf("address %q: missing scheme", address)
	}

	var brokerScheme string
	switch strings.ToLower(scheme) {
	case "mqtt":
		brokerScheme = "tcp"
	case "mqtts":
		brokerScheme = "ssl"
	default:
		return Endpoint{}, fmt.Errorf("address %q: unsupported scheme %q", address, scheme)
	}

	host, topic, _ := strings.Cut(rest, "/")
	if host == "" {
		return Endpoint{}, fmt.Errorf("address %q: missing host", address)
	}
	if !strings.Contains(host, ":") {
		host += ":" + defaultPort
	}

	return Endpoint{
		Broker: brokerScheme + "://" + host,
		Topic:  topic,
	}, nil
}

func (t *Transport) clientID() string {
	return t.opts.ClientIDPrefix + "-" + uuid.NewString()[:8]
}

func (t *Transport) connect(ctx context.Context, broker string, onLost func(error)) (mqtt.Client, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(broker)
	co.SetClientID(t.clientID())
	co.SetCleanSession(true)
	co.SetAutoReconnect(false)
	co.SetConnectRetry(false)
	co.SetConnectTimeout(t.opts.ConnectTimeout)
	if t.opts.Username != "" {
		co.SetUsername(t.opts.Username)
		co.SetPassword(t.opts.Password)
	}
	if onLost != nil {
		co.SetConnectionLostHandler(func(_ mqtt.Client, err error) { onLost(err) })
	}

	client := t.newClient(co)
	if err := wait(ctx, client.Connect(), t.opts.ConnectTimeout); err != nil {
		// A timed out or cancelled attempt is still running in paho.
		client.Disconnect(0)
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return client, nil
}

// Dial connects and subscribes. The topic argument overrides the address path;
// when both are empty every topic ("#") is subscribed.
func (t *Transport) Dial(ctx context.Context, address, topic string) (messaging.Socket, error) {
	ep, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	filter := topic
	if filter == "" {
		filter = ep.Topic
	}
	if filter == "" {
		filter = "#"
	}

	inbox := messaging.NewInbox(t.opts.HWM)
	client, err := t.connect(ctx, ep.Broker, func(err error) {
		t.log.Warn().Err(err).Str("broker", ep.Broker).Msg("mqtt connection lost")
		inbox.Fail(fmt.Errorf("mqtt: %w", err))
	})
	if err != nil {
		return nil, err
	}

	handler := func(_ mqtt.Client, m mqtt.Message) {
		inbox.Push(messaging.Envelope{Topic: m.Topic(), Payload: m.Payload()})
	}
	if err := wait(ctx, client.Subscribe(filter, t.opts.QoS, handler), t.opts.ConnectTimeout); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("subscribe %q: %w", filter, err)
	}

	t.log.Debug().Str("broker", ep.Broker).Str("filter", filter).Uint8("qos", t.opts.QoS).Msg("mqtt subscribed")
	return &socket{client: client, filter: filter, inbox: inbox}, nil
}

// DialPublisher connects a publishing session. Publishes with an empty topic go
// to the address path topic.
func (t *Transport) DialPublisher(ctx context.Context, address string) (messaging.Publisher, error) {
	ep, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	client, err := t.connect(ctx, ep.Broker, nil)
	if err != nil {
		return nil, err
	}
	return &publisher{client: client, topic: ep.Topic, qos: t.opts.QoS, timeout: t.opts.PublishTimeout}, nil
}

type socket struct {
	client mqtt.Client
	filter string
	inbox  *messaging.Inbox
}

func (s *socket) TryRecv() (messaging.Envelope, error) { return s.inbox.TryRecv() }

func (s *socket) Dropped() uint64 { return s.inbox.Dropped() }

func (s *socket) Close() error {
	s.inbox.Fail(messaging.ErrClosed)
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.filter).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
	return nil
}

type publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		topic = p.topic
	}
	if topic == "" {
		return errors.New("mqtt publish: no topic")
	}
	if !p.client.IsConnected() {
		return messaging.ErrClosed
	}
	if err := wait(ctx, p.client.Publish(topic, p.qos, false, payload), p.timeout); err != nil {
		return fmt.Errorf("publish %q: %w", topic, err)
	}
	return nil
}

func (p *publisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}

// wait blocks until tok completes, ctx ends, or timeout elapses.
func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
