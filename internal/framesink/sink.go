// Package framesink writes frames to a video file, either synchronously or
// through a queue drained by one background writer so a capture loop never
// waits on the encoder.
package framesink

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/internal/video"
	"github.com/hay-kot/rtscope/pkg/executil"
)

// DefaultDrainPoll is how often Close checks whether the queue has drained.
const DefaultDrainPoll = 50 * time.Millisecond

// EncoderFactory opens the encoder behind a sink.
type EncoderFactory func(video.Params) (media.Encoder, error)

type options struct {
	log       zerolog.Logger
	drainPoll time.Duration
	quality   int
	ffmpeg    string
	executor  executil.Executor
	factory   EncoderFactory
	now       func() time.Time
}

// Option configures Open.
type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDrainPoll sets how often Close polls the queue.
func WithDrainPoll(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.drainPoll = d
		}
	}
}

// WithQuality sets encoder quality, 1 (smallest) to 5 (best).
func WithQuality(q int) Option {
	return func(o *options) { o.quality = q }
}

// WithFFmpeg sets the ffmpeg binary and the executor used to run it.
func WithFFmpeg(path string, exec executil.Executor) Option {
	return func(o *options) {
		o.ffmpeg = path
		o.executor = exec
	}
}

// WithEncoderFactory replaces the video backend.
func WithEncoderFactory(f EncoderFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithClock sets the clock used by the FPS meter.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Stats is a point-in-time snapshot of sink counters.
type Stats struct {
	Enqueued  uint64  `json:"enqueued"`
	Written   uint64  `json:"written"`
	Pending   int     `json:"pending"`
	Discarded int     `json:"discarded"`
	FPS       float64 `json:"fps"`
}

// Sink owns one encoder. Write may be called from any goroutine; calls are
// serialized. The queue is the only state shared with the background writer.
type Sink struct {
	params video.Params
	log    zerolog.Logger
	opts   options

	encMu     sync.Mutex
	enc       media.Encoder
	encClosed bool

	queue *queue
	fps   *FPSMeter

	enqueued  atomic.Uint64
	written   atomic.Uint64
	discarded atomic.Int64

	closing  atomic.Bool
	stopping atomic.Bool

	writerMu      sync.Mutex
	writerStarted bool
	writerDone    chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Open validates the configuration and opens the encoder. Nothing is accepted
// until it succeeds.
func Open(path string, fps float64, width, height int, codec string, opts ...Option) (*Sink, error) {
	o := options{
		log:       zerolog.Nop(),
		drainPoll: DefaultDrainPoll,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = video.Open
	}

	switch {
	case path == "":
		return nil, fmt.Errorf("%w: empty path", ErrInvalidConfig)
	case fps <= 0:
		return nil, fmt.Errorf("%w: fps must be positive, got %g", ErrInvalidConfig, fps)
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidConfig, width, height)
	}

	fourcc, err := media.ParseFourCC(codec)
	if err != nil {
		return nil, err
	}

	params := video.Params{
		Path:       path,
		FPS:        fps,
		Size:       media.Size{Width: width, Height: height},
		Codec:      fourcc,
		Quality:    o.quality,
		FFmpegPath: o.ffmpeg,
		Executor:   o.executor,
		Log:        o.log,
	}

	enc, err := o.factory(params)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	log := o.log.With().Str("component", "framesink").Str("path", path).Logger()
	log.Info().
		Str("codec", fourcc.String()).
		Float64("fps", fps).
		Str("size", params.Size.String()).
		Msg("frame sink opened")

	return &Sink{
		params: params,
		log:    log,
		opts:   o,
		enc:    enc,
		queue:  newQueue(),
		fps:    NewFPSMeter(o.now),
		done:   make(chan struct{}),
	}, nil
}

// Size returns the frame size the sink accepts.
func (s *Sink) Size() media.Size {
	return s.params.Size
}

// Path returns the output path.
func (s *Sink) Path() string {
	return s.params.Path
}

// Write encodes f immediately. A frame of the wrong size is rejected with a
// *SizeMismatchError and nothing is written.
func (s *Sink) Write(f media.Frame) error {
	if err := s.check(f); err != nil {
		return err
	}

	s.encMu.Lock()
	defer s.encMu.Unlock()

	if s.encClosed {
		return ErrClosed
	}
	if err := s.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Seq, err)
	}

	s.written.Add(1)
	s.fps.Tick()
	return nil
}

func (s *Sink) check(f media.Frame) error {
	want := s.params.Size
	if f.Width != want.Width || f.Height != want.Height || len(f.Data) != media.FrameSize(want.Width, want.Height) {
		return &SizeMismatchError{Seq: f.Seq, Got: f.Size(), Want: want, DataLen: len(f.Data)}
	}
	return nil
}

// Enqueue appends f for the background writer without validating it. Frames
// are written in enqueue order. Once the writer has failed, frames are
// refused with ErrWriterFailed wrapping the writer's error.
func (s *Sink) Enqueue(f media.Frame) error {
	if s.closing.Load() {
		return ErrClosed
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriterFailed, err)
	}
	if !s.queue.Push(f) {
		return ErrClosed
	}
	s.enqueued.Add(1)
	s.log.Trace().Uint64("seq", f.Seq).Int("pending", s.queue.Len()).Msg("frame enqueued")
	return nil
}

// StartBackgroundWriter launches the goroutine that drains the queue.
func (s *Sink) StartBackgroundWriter() error {
	if s.closing.Load() {
		return ErrClosed
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if s.writerStarted {
		return ErrWriterRunning
	}
	s.writerStarted = true
	s.writerDone = make(chan struct{})

	go s.writeLoop(s.writerDone)
	s.log.Debug().Msg("background writer started")
	return nil
}

func (s *Sink) writeLoop(done chan struct{}) {
	defer close(done)

	for {
		if s.stopping.Load() {
			return
		}

		f, ok := s.queue.Pop()
		if !ok {
			return
		}

		err := s.Write(f)
		s.queue.Done()
		if err != nil {
			s.setErr(err)
			s.log.Error().Err(err).Uint64("seq", f.Seq).Int("pending", s.queue.Len()).Msg("background writer stopped")
			return
		}
	}
}

// Close waits for queued frames to be written, stops the writer and
// finalizes the output. If the writer failed, frames still queued are
// discarded and its error is returned together with any finalize error.
// Later calls return the same result.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)

		s.writerMu.Lock()
		started, writerDone := s.writerStarted, s.writerDone
		s.writerMu.Unlock()

		if started {
			s.drain(writerDone)
			s.stopping.Store(true)
		}

		if n := s.queue.Close(); n > 0 {
			s.discarded.Store(int64(n))
			s.log.Warn().Int("frames", n).Msg("discarding unwritten frames")
		}
		if started {
			<-writerDone
		}

		s.encMu.Lock()
		encErr := s.enc.Close()
		s.encClosed = true
		s.encMu.Unlock()

		if encErr != nil {
			encErr = fmt.Errorf("finalize %s: %w", s.params.Path, encErr)
		}
		s.closeErr = multierr.Append(s.Err(), encErr)

		st := s.Stats()
		s.log.Info().
			Uint64("written", st.Written).
			Uint64("enqueued", st.Enqueued).
			Int("discarded", st.Discarded).
			Err(s.closeErr).
			Msg("frame sink closed")
		close(s.done)
	})
	return s.closeErr
}

// drain polls until nothing is pending or the writer has exited.
func (s *Sink) drain(writerDone <-chan struct{}) {
	ticker := time.NewTicker(s.opts.drainPoll)
	defer ticker.Stop()

	for s.queue.Pending() > 0 {
		s.log.Debug().Int("pending", s.queue.Pending()).Msg("waiting for queue to drain")
		select {
		case <-writerDone:
			return
		case <-ticker.C:
		}
	}
}

// Err returns the background writer's fatal error, if any.
func (s *Sink) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Sink) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Done is closed once Close has finished.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Stats returns the current counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Enqueued:  s.enqueued.Load(),
		Written:   s.written.Load(),
		Pending:   s.queue.Pending(),
		Discarded: int(s.discarded.Load()),
		FPS:       s.fps.FPS(),
	}
}
