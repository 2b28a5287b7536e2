package messaging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox_EmptyWouldBlock(t *testing.T) {
	b := NewInbox(4)

	_, err := b.TryRecv()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestInbox_FIFO(t *testing.T) {
	b := NewInbox(4)
	for _, p := range []string{"a", "b", "c"} {
		require.True(t, b.Push(Envelope{Payload: []byte(p)}))
	}

	for _, want := range []string{"a", "b", "c"} {
		env, err := b.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, string(env.Payload))
	}
}

func TestInbox_DropsNewWhenFull(t *testing.T) {
	b := NewInbox(2)
	assert.True(t, b.Push(Envelope{Payload: []byte("1")}))
	assert.True(t, b.Push(Envelope{Payload: []byte("2")}))
	assert.False(t, b.Push(Envelope{Payload: []byte("3")}))

	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, 2, b.Len())

	env, err := b.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, "1", string(env.Payload))
}

func TestInbox_FailAfterDrain(t *testing.T) {
	b := NewInbox(4)
	b.Push(Envelope{Payload: []byte("last")})

	boom := errors.New("connection reset")
	b.Fail(boom)
	b.Fail(errors.New("ignored"))

	env, err := b.TryRecv()
	require.NoError(t, err, "buffered envelopes drain before the failure")
	assert.Equal(t, "last", string(env.Payload))

	_, err = b.TryRecv()
	assert.ErrorIs(t, err, boom)

	assert.False(t, b.Push(Envelope{}), "push after failure is rejected")
}

func TestInbox_FailNil(t *testing.T) {
	b := NewInbox(1)
	b.Fail(nil)

	_, err := b.TryRecv()
	assert.ErrorIs(t, err, ErrClosed)
}
