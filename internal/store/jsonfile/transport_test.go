package jsonfile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

func drain(sock messaging.Socket) []string {
	var out []string
	for {
		env, err := sock.TryRecv()
		if err != nil {
			return out
		}
		out = append(out, string(env.Payload))
	}
}

func TestDirOf(t *testing.T) {
	dir, err := DirOf("file:///var/lib/rtscope/topics")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/rtscope/topics", dir)

	_, err = DirOf("tcp://localhost:5555")
	assert.Error(t, err)

	_, err = DirOf("file://")
	assert.Error(t, err)
}

func TestTransport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	addr := "file://" + t.TempDir()
	tr := NewTransport(zerolog.Nop(), TransportOptions{PollInterval: 5 * time.Millisecond})

	// Records published before the subscription are not replayed.
	pub, err := tr.DialPublisher(ctx, addr)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "force", []byte("old")))

	time.Sleep(2 * time.Millisecond)
	sock, err := tr.Dial(ctx, addr, "force")
	require.NoError(t, err)
	defer sock.Close() //nolint:errcheck

	require.NoError(t, pub.Publish(ctx, "force", []byte("1,2,3")))
	require.NoError(t, pub.Publish(ctx, "grip", []byte("42")))
	require.NoError(t, pub.Publish(ctx, "force", []byte("4,5,6")))

	var got []string
	require.Eventually(t, func() bool {
		got = append(got, drain(sock)...)
		return len(got) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"1,2,3", "4,5,6"}, got)
}

func TestFollow_FromStartNoDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMsgStore(t.TempDir())

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, store.Publish(ctx, messaging.Record{Topic: "t", Payload: p, CreatedAt: fixed}))
	}

	sock := Follow(ctx, store, "", FollowOptions{PollInterval: 5 * time.Millisecond, Log: zerolog.Nop()})
	defer sock.Close() //nolint:errcheck

	var got []string
	require.Eventually(t, func() bool {
		got = append(got, drain(sock)...)
		return len(got) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	// Several more polls must not redeliver records sharing a timestamp.
	time.Sleep(30 * time.Millisecond)
	got = append(got, drain(sock)...)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFollow_Close(t *testing.T) {
	store := NewMsgStore(t.TempDir())
	sock := Follow(context.Background(), store, "", FollowOptions{PollInterval: time.Millisecond})

	require.NoError(t, sock.Close())
	require.NoError(t, sock.Close())

	_, err := sock.TryRecv()
	assert.ErrorIs(t, err, messaging.ErrClosed)
}
