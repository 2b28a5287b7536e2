package framesink

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/internal/video"
	"github.com/hay-kot/rtscope/pkg/executil"
)

// fakeEncoder records written frame sequence numbers.
type fakeEncoder struct {
	mu       sync.Mutex
	seqs     []uint64
	delay    time.Duration
	failAt   int // 1-based write that fails, 0 never
	closeErr error
	closed   bool
}

func (e *fakeEncoder) WriteFrame(f media.Frame) error {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failAt > 0 && len(e.seqs)+1 == e.failAt {
		return errors.New("disk full")
	}
	e.seqs = append(e.seqs, f.Seq)
	return nil
}

func (e *fakeEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return e.closeErr
}

func (e *fakeEncoder) written() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint64, len(e.seqs))
	copy(out, e.seqs)
	return out
}

func openFake(t *testing.T, enc *fakeEncoder, w, h int) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "out.mp4"), 30, w, h, "mp4v",
		WithDrainPoll(time.Millisecond),
		WithEncoderFactory(func(video.Params) (media.Encoder, error) { return enc, nil }),
	)
	require.NoError(t, err)
	return s
}

func frame(seq uint64, w, h int) media.Frame {
	f := media.NewFrame(w, h)
	f.Seq = seq
	return f
}

func TestOpen_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		path   string
		fps    float64
		w, h   int
		codec  string
		target error
	}{
		{"empty path", "", 30, 640, 480, "mp4v", ErrInvalidConfig},
		{"zero fps", filepath.Join(dir, "a.mp4"), 0, 640, 480, "mp4v", ErrInvalidConfig},
		{"negative height", filepath.Join(dir, "a.mp4"), 30, 640, -1, "mp4v", ErrInvalidConfig},
		{"unknown codec", filepath.Join(dir, "a.mp4"), 30, 640, 480, "zzzz", media.ErrUnsupportedCodec},
		{"unwritable dir", "/proc/out.mp4", 30, 4, 2, "mp4v", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &executil.RecordingExecutor{}
			_, err := Open(tt.path, tt.fps, tt.w, tt.h, tt.codec, WithFFmpeg("", exec))
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, exec.LastProcess(), "nothing is spawned for a bad config")
		})
	}
}

func TestOpen_DefaultBackend(t *testing.T) {
	exec := &executil.RecordingExecutor{}
	path := filepath.Join(t.TempDir(), "out.avi")

	s, err := Open(path, 25, 4, 2, "XVID", WithFFmpeg("", exec))
	require.NoError(t, err)
	require.NotNil(t, exec.LastProcess())

	require.NoError(t, s.Write(frame(0, 4, 2)))
	assert.Len(t, exec.LastProcess().Bytes(), 24)

	// The fake process produced no file to rename.
	assert.Error(t, s.Close())
}

func TestSink_WriteSizeMismatch(t *testing.T) {
	enc := &fakeEncoder{}
	s := openFake(t, enc, 4, 2)
	defer s.Close() //nolint:errcheck

	err := s.Write(frame(1, 8, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	var mismatch *SizeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, media.Size{Width: 8, Height: 2}, mismatch.Got)
	assert.Equal(t, media.Size{Width: 4, Height: 2}, mismatch.Want)

	short := frame(2, 4, 2)
	short.Data = short.Data[:5]
	assert.ErrorIs(t, s.Write(short), ErrSizeMismatch)

	assert.Empty(t, enc.written())
}

func TestSink_SyncWrite(t *testing.T) {
	enc := &fakeEncoder{}
	s := openFake(t, enc, 4, 2)

	for i := uint64(0); i < 5; i++ {
		require.NoError(t, s.Write(frame(i, 4, 2)))
	}
	require.NoError(t, s.Close())

	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, enc.written())
	assert.True(t, enc.closed)
	assert.ErrorIs(t, s.Write(frame(5, 4, 2)), ErrClosed)
}

func TestSink_CloseDrainsQueue(t *testing.T) {
	enc := &fakeEncoder{delay: 100 * time.Microsecond}
	s := openFake(t, enc, 4, 2)
	require.NoError(t, s.StartBackgroundWriter())

	want := make([]uint64, 100)
	for i := range want {
		want[i] = uint64(i)
		require.NoError(t, s.Enqueue(frame(uint64(i), 4, 2)))
	}

	require.NoError(t, s.Close())
	assert.Equal(t, want, enc.written())
	assert.True(t, enc.closed)

	st := s.Stats()
	assert.Equal(t, uint64(100), st.Enqueued)
	assert.Equal(t, uint64(100), st.Written)
	assert.Zero(t, st.Pending)
	assert.Zero(t, st.Discarded)
}

func TestSink_AsyncMismatchIsFatal(t *testing.T) {
	enc := &fakeEncoder{}
	s := openFake(t, enc, 4, 2)

	require.NoError(t, s.Enqueue(frame(0, 4, 2)))
	require.NoError(t, s.Enqueue(frame(1, 6, 6)))
	require.NoError(t, s.Enqueue(frame(2, 4, 2)))
	require.NoError(t, s.StartBackgroundWriter())

	err := s.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.ErrorIs(t, s.Err(), ErrSizeMismatch)

	// Frames after the bad one are never written out of order.
	assert.Equal(t, []uint64{0}, enc.written())
	assert.Equal(t, 1, s.Stats().Discarded)
	assert.True(t, enc.closed)
}

func TestSink_EnqueueAfterWriterFailure(t *testing.T) {
	enc := &fakeEncoder{}
	s := openFake(t, enc, 4, 2)
	require.NoError(t, s.StartBackgroundWriter())

	require.NoError(t, s.Enqueue(frame(0, 8, 8)))

	select {
	case <-waitErr(s):
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not fail")
	}

	for i := uint64(1); i <= 10; i++ {
		err := s.Enqueue(frame(i, 4, 2))
		assert.ErrorIs(t, err, ErrWriterFailed)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	}

	assert.Equal(t, uint64(1), s.Stats().Enqueued)
	assert.Zero(t, s.Stats().Pending)
	assert.ErrorIs(t, s.Close(), ErrSizeMismatch)
	assert.Empty(t, enc.written())
}

func TestSink_EncoderFailureCombinesErrors(t *testing.T) {
	enc := &fakeEncoder{failAt: 2, closeErr: errors.New("moov atom missing")}
	s := openFake(t, enc, 4, 2)
	require.NoError(t, s.StartBackgroundWriter())

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, s.Enqueue(frame(i, 4, 2)))
	}

	select {
	case <-waitErr(s):
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not fail")
	}

	err := s.Close()
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, "moov atom missing")
}

func waitErr(s *Sink) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for s.Err() == nil {
			time.Sleep(time.Millisecond)
		}
		close(ch)
	}()
	return ch
}

func TestSink_CloseIdempotent(t *testing.T) {
	enc := &fakeEncoder{closeErr: errors.New("boom")}
	s := openFake(t, enc, 4, 2)

	first := s.Close()
	second := s.Close()
	require.Error(t, first)
	assert.Equal(t, first, second)

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestSink_EnqueueAfterClose(t *testing.T) {
	s := openFake(t, &fakeEncoder{}, 4, 2)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Enqueue(frame(0, 4, 2)), ErrClosed)
	assert.ErrorIs(t, s.StartBackgroundWriter(), ErrClosed)
}

func TestSink_StartTwice(t *testing.T) {
	s := openFake(t, &fakeEncoder{}, 4, 2)
	defer s.Close() //nolint:errcheck

	require.NoError(t, s.StartBackgroundWriter())
	assert.ErrorIs(t, s.StartBackgroundWriter(), ErrWriterRunning)
}

func TestSink_CloseWithoutWriterDiscards(t *testing.T) {
	enc := &fakeEncoder{}
	s := openFake(t, enc, 4, 2)

	require.NoError(t, s.Enqueue(frame(0, 4, 2)))
	require.NoError(t, s.Enqueue(frame(1, 4, 2)))
	require.NoError(t, s.Close())

	assert.Empty(t, enc.written())
	assert.Equal(t, 2, s.Stats().Discarded)
}

func TestSink_ConcurrentProducers(t *testing.T) {
	enc := &fakeEncoder{}
	s := openFake(t, enc, 2, 2)
	require.NoError(t, s.StartBackgroundWriter())

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = s.Enqueue(frame(uint64(p*100+i), 2, 2))
			}
		}(p)
	}
	wg.Wait()

	require.NoError(t, s.Close())
	assert.Len(t, enc.written(), 100)
}
