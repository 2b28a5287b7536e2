// Package wsbus subscribes to a WebSocket feed where every text or binary
// frame is one sample. It is subscribe-only.
package wsbus

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Schemes routed to this transport.
var Schemes = []string{"ws", "wss"}

// Options configures the WebSocket dialer.
type Options struct {
	HandshakeTimeout time.Duration
	Header           http.Header
	HWM              int
}

// Transport dials WebSocket feeds.
type Transport struct {
	log    zerolog.Logger
	opts   Options
	dialer *websocket.Dialer
}

func New(log zerolog.Logger, opts Options) *Transport {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.HWM < 1 {
		opts.HWM = messaging.DefaultHWM
	}
	return &Transport{
		log:  log,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
}

// Dial opens the feed. A non-empty topic keeps only frames whose payload
// starts with it, the way a SUB socket filters single-frame messages.
func (t *Transport) Dial(ctx context.Context, address, topic string) (messaging.Socket, error) {
	conn, resp, err := t.dialer.DialContext(ctx, address, t.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", address, err)
	}

	s := &socket{
		conn:   conn,
		topic:  topic,
		prefix: []byte(topic),
		inbox:  messaging.NewInbox(t.opts.HWM),
		done:   make(chan struct{}),
	}
	go s.read()

	t.log.Debug().Str("address", address).Str("topic", topic).Msg("websocket connected")
	return s, nil
}

type socket struct {
	conn    *websocket.Conn
	topic   string
	prefix  []byte
	inbox   *messaging.Inbox
	closing atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (s *socket) read() {
	defer close(s.done)

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.inbox.Fail(messaging.ErrClosed)
				return
			}
			s.inbox.Fail(err)
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if !bytes.HasPrefix(data, s.prefix) {
			continue
		}
		s.inbox.Push(messaging.Envelope{Topic: s.topic, Payload: data})
	}
}

func (s *socket) TryRecv() (messaging.Envelope, error) { return s.inbox.TryRecv() }

func (s *socket) Dropped() uint64 { return s.inbox.Dropped() }

func (s *socket) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
		<-s.done
	})
	return err
}
