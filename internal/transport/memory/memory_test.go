package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	bus := New(10)

	force, err := bus.Dial(ctx, "mem://bench", "force")
	require.NoError(t, err)
	all, err := bus.Dial(ctx, "mem://bench", "")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "force", []byte("1,2,3")))
	require.NoError(t, bus.Publish(ctx, "grip", []byte("42")))

	env, err := force.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, "1,2,3", string(env.Payload))
	_, err = force.TryRecv()
	assert.ErrorIs(t, err, messaging.ErrWouldBlock)

	for _, want := range []string{"force", "grip"} {
		env, err := all.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, env.Topic)
	}
}

func TestBus_Fail(t *testing.T) {
	ctx := context.Background()
	bus := New(10)

	sock, err := bus.Dial(ctx, "", "")
	require.NoError(t, err)

	boom := errors.New("link down")
	bus.Fail(boom)

	_, err = sock.TryRecv()
	assert.ErrorIs(t, err, boom)
}

func TestBus_CloseSocket(t *testing.T) {
	ctx := context.Background()
	bus := New(10)

	sock, err := bus.Dial(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers())

	require.NoError(t, sock.Close())
	assert.Equal(t, 0, bus.Subscribers())

	_, err = sock.TryRecv()
	assert.ErrorIs(t, err, messaging.ErrClosed)
}

func TestBus_Closed(t *testing.T) {
	bus := New(1)
	bus.Close()

	_, err := bus.Dial(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), "x", nil), ErrBusClosed)
}
