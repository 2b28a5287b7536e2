package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/transport/memory"
)

func recvAll(t *testing.T, sock messaging.Socket) []string {
	t.Helper()
	var out []string
	for {
		env, err := sock.TryRecv()
		if err != nil {
			require.ErrorIs(t, err, messaging.ErrWouldBlock)
			return out
		}
		out = append(out, env.Topic+"|"+string(env.Payload))
	}
}

func TestPubCmd_PublishLines(t *testing.T) {
	bus := memory.New(16)
	sock, err := bus.Dial(context.Background(), "mem://", "")
	require.NoError(t, err)
	pub, err := bus.DialPublisher(context.Background(), "mem://")
	require.NoError(t, err)

	cmd := &PubCmd{topic: "imu", interval: time.Millisecond}
	sent, err := cmd.publishLines(context.Background(), pub, strings.NewReader("1,2,3\n\n4,5,6\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"imu|1,2,3", "imu|4,5,6"}, recvAll(t, sock))
}

func TestPubCmd_PublishAll(t *testing.T) {
	bus := memory.New(16)
	sock, err := bus.Dial(context.Background(), "mem://", "")
	require.NoError(t, err)
	pub, err := bus.DialPublisher(context.Background(), "mem://")
	require.NoError(t, err)

	cmd := &PubCmd{interval: time.Millisecond}
	sent, err := cmd.publishAll(context.Background(), pub, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"|a", "|b"}, recvAll(t, sock))
}

func TestPubCmd_PublishClosedBus(t *testing.T) {
	bus := memory.New(16)
	pub, err := bus.DialPublisher(context.Background(), "mem://")
	require.NoError(t, err)
	bus.Close()

	cmd := &PubCmd{interval: time.Millisecond}
	sent, err := cmd.publishLines(context.Background(), pub, strings.NewReader("x\n"))
	assert.Zero(t, sent)
	assert.ErrorIs(t, err, memory.ErrBusClosed)
}
