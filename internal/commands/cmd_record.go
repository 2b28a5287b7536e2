package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/hay-kot/rtscope/internal/capture"
	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/internal/framesink"
	"github.com/hay-kot/rtscope/internal/printer"
	"github.com/hay-kot/rtscope/pkg/executil"
)

// InputPattern selects the built-in test pattern as the frame source.
const InputPattern = "pattern"

type RecordCmd struct {
	flags *Flags

	output   string
	input    string
	fps      float64
	size     string
	codec    string
	quality  int
	frames   int
	duration time.Duration
	async    bool
}

// NewRecordCmd creates a new record command.
func NewRecordCmd(flags *Flags) *RecordCmd {
	return &RecordCmd{flags: flags}
}

// Register adds the record command to the application.
func (cmd *RecordCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "record",
		Usage:     "Record frames to a video file",
		UsageText: "rtscope record [--output <path>] [--input pattern|-|<file>] [options]",
		Description: `Records frames through the frame sink.

Frames come from the built-in test pattern (paced at --fps), from raw BGR24
on stdin ("-"), or from a raw BGR24 file. For a camera, pipe it through
ffmpeg:

  ffmpeg -f v4l2 -i /dev/video0 -f rawvideo -pix_fmt bgr24 -s 640x480 - \
    | rtscope record --input - --size 640x480 -o cam.mp4

With --async frames are queued and written by a background writer; on exit
the queue is drained before the file is finalized.

Codecs: mp4v, avc1, h264, mjpg, xvid and png/jpeg image sequences (output
is then a directory). A JSON manifest of each recording is kept in the data
directory.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output path (default: video.path from config)",
				Destination: &cmd.output,
			},
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "frame source: pattern, - for stdin, or a raw BGR24 file",
				Value:       InputPattern,
				Destination: &cmd.input,
			},
			&cli.FloatFlag{
				Name:        "fps",
				Usage:       "frame rate (default: video.fps from config)",
				Destination: &cmd.fps,
			},
			&cli.StringFlag{
				Name:        "size",
				Aliases:     []string{"s"},
				Usage:       "frame size as WIDTHxHEIGHT (default: video.width x video.height)",
				Destination: &cmd.size,
			},
			&cli.StringFlag{
				Name:        "codec",
				Usage:       "fourcc (default: video.codec from config)",
				Destination: &cmd.codec,
			},
			&cli.IntFlag{
				Name:        "quality",
				Usage:       "encoder quality 1-5 (default: video.quality from config)",
				Destination: &cmd.quality,
			},
			&cli.IntFlag{
				Name:        "frames",
				Aliases:     []string{"n"},
				Usage:       "stop after N frames",
				Destination: &cmd.frames,
			},
			&cli.DurationFlag{
				Name:        "duration",
				Aliases:     []string{"d"},
				Usage:       "stop after this long",
				Destination: &cmd.duration,
			},
			&cli.BoolFlag{
				Name:        "async",
				Usage:       "queue frames for a background writer (default: video.async from config)",
				Destination: &cmd.async,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List recording manifests as JSON",
				UsageText: "rtscope record list",
				Action:    cmd.runList,
			},
		},
		Action: cmd.run,
	})

	return app
}

// recording is the manifest written next to each finished recording.
type recording struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	Codec      string          `json:"codec"`
	FPS        float64         `json:"fps"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Async      bool            `json:"async"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stats      framesink.Stats `json:"stats"`
	Error      string          `json:"error,omitempty"`
}

func (cmd *RecordCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config.Video

	size := media.Size{Width: cfg.Width, Height: cfg.Height}
	if cmd.size != "" {
		var err error
		if size, err = parseSize(cmd.size); err != nil {
			return err
		}
	}

	var (
		path    = firstNonEmpty(cmd.output, cfg.Path)
		codec   = firstNonEmpty(cmd.codec, cfg.Codec)
		fps     = cfg.FPS
		quality = cfg.Quality
		async   = cmd.async || cfg.Async
	)
	if cmd.fps > 0 {
		fps = cmd.fps
	}
	if cmd.quality > 0 {
		quality = cmd.quality
	}

	src, closeSrc, err := cmd.openSource(size)
	if err != nil {
		return err
	}
	defer closeSrc()

	sink, err := framesink.Open(path, fps, size.Width, size.Height, codec,
		framesink.WithLogger(log.Logger),
		framesink.WithDrainPoll(cfg.DrainPoll),
		framesink.WithQuality(quality),
		framesink.WithFFmpeg(cmd.flags.Config.FFmpegPath, &executil.RealExecutor{}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cmd.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.duration)
		defer cancel()
	}

	// Only the synthetic source needs pacing; piped input arrives at its own rate.
	var limiter *rate.Limiter
	if cmd.input == InputPattern {
		limiter = rate.NewLimiter(rate.Limit(fps), 1)
	}

	started := time.Now()
	recErr := recordFrames(ctx, src, sink, limiter, cmd.frames, async)
	closeErr := sink.Close()

	rec := recording{
		ID:         uuid.NewString(),
		Path:       sink.Path(),
		Codec:      codec,
		FPS:        fps,
		Width:      size.Width,
		Height:     size.Height,
		Async:      async,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Stats:      sink.Stats(),
	}

	err = multierr.Combine(recErr, closeErr)
	if err != nil {
		rec.Error = err.Error()
	}
	manifest, merr := writeManifest(cmd.flags.Config.RecordingsDir(), rec)
	if merr != nil {
		log.Warn().Err(merr).Msg("could not write recording manifest")
	}

	if err != nil {
		return err
	}

	printer.Ctx(ctx).Success(
		fmt.Sprintf("recorded %d frames to %s", rec.Stats.Written, rec.Path),
		manifest,
	)
	return nil
}

func (cmd *RecordCmd) runList(_ context.Context, c *cli.Command) error {
	recs, err := readManifests(cmd.flags.Config.RecordingsDir())
	if err != nil {
		return fmt.Errorf("read recordings: %w", err)
	}

	enc := json.NewEncoder(c.Root().Writer)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *RecordCmd) openSource(size media.Size) (capture.Source, func(), error) {
	switch cmd.input {
	case InputPattern:
		return capture.NewTestPattern(size, uint64(max(cmd.frames, 0))), func() {}, nil
	case "-":
		return capture.NewRawReader(os.Stdin, size), func() {}, nil
	default:
		f, err := os.Open(cmd.input)
		if err != nil {
			return nil, nil, fmt.Errorf("open input: %w", err)
		}
		return capture.NewRawReader(f, size), func() { _ = f.Close() }, nil
	}
}

// frameWriter is the part of a sink the record loop needs.
type frameWriter interface {
	Write(media.Frame) error
	Enqueue(media.Frame) error
	StartBackgroundWriter() error
	Err() error
}

// recordFrames copies frames from src into sink until the source ends, ctx
// is done, or limit frames were taken. A nil limiter takes frames as fast as
// the source yields them.
func recordFrames(ctx context.Context, src capture.Source, sink frameWriter, limiter *rate.Limiter, limit int, async bool) error {
	if async {
		if err := sink.StartBackgroundWriter(); err != nil {
			return err
		}
	}

	for n := 0; limit <= 0 || n < limit; n++ {
		if ctx.Err() != nil {
			return nil
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		f, err := src.Next()
		if errors.Is(err, capture.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		if !async {
			if err := sink.Write(f); err != nil {
				return err
			}
			continue
		}

		// The writer stops on its first failure; Close reports it.
		if err := sink.Enqueue(f); err != nil {
			if errors.Is(err, framesink.ErrWriterFailed) {
				return nil
			}
			return err
		}
		if sink.Err() != nil {
			return nil
		}
	}
	return nil
}

func writeManifest(dir string, rec recording) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings directory: %w", err)
	}

	path := filepath.Join(dir, rec.StartedAt.Format("20060102_150405")+"_"+rec.ID[:8]+".json")
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// readManifests loads every manifest in dir, newest first by file name.
func readManifests(dir string) ([]recording, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []recording
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var rec recording
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseSize parses WIDTHxHEIGHT.
func parseSize(s string) (media.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return media.Size{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	width, werr := strconv.Atoi(w)
	height, herr := strconv.Atoi(h)
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return media.Size{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	return media.Size{Width: width, Height: height}, nil
}
