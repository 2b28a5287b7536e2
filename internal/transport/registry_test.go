package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/transport/memory"
)

func TestSchemeOf(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{"tcp://127.0.0.1:5555", "tcp", false},
		{"MQTT://broker:1883/sensors", "mqtt", false},
		{"file:///var/lib/rtscope", "file", false},
		{"127.0.0.1:5555", "", true},
		{"://x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := SchemeOf(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Routes(t *testing.T) {
	ctx := context.Background()
	bus := memory.New(10)

	r := NewRegistry()
	r.Register(bus, memory.Scheme)

	sock, err := r.Dial(ctx, "mem://bench", "")
	require.NoError(t, err)
	defer sock.Close() //nolint:errcheck

	pub, err := r.DialPublisher(ctx, "mem://bench")
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "force", []byte("1,2,3")))

	env, err := sock.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, "1,2,3", string(env.Payload))
}

func TestRegistry_UnknownScheme(t *testing.T) {
	r := NewRegistry()
	r.Register(memory.New(1), memory.Scheme)

	_, err := r.Dial(context.Background(), "nats://x", "")
	assert.ErrorIs(t, err, ErrUnknownScheme)

	_, err = r.DialPublisher(context.Background(), "nats://x")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestRegistry_SubscribeOnly(t *testing.T) {
	r := NewRegistry()
	r.Register(messaging.DialerFunc(func(context.Context, string, string) (messaging.Socket, error) {
		return nil, nil
	}), "ws", "wss")

	_, err := r.DialPublisher(context.Background(), "ws://feed")
	assert.ErrorIs(t, err, messaging.ErrPublishUnsupported)
	assert.Equal(t, []string{"ws", "wss"}, r.Schemes())
}
