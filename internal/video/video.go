// Package video turns BGR24 frames into files on disk. Container codecs are
// encoded by an ffmpeg child process; JPEG and PNG write an image sequence.
package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/pkg/executil"
)

// Params describes an output.
type Params struct {
	Path  string
	FPS   float64
	Size  media.Size
	Codec media.FourCC

	// Quality is 1 (smallest) to 5 (best). Zero means 3.
	Quality int

	// FFmpegPath defaults to "ffmpeg" on PATH.
	FFmpegPath string
	Executor   executil.Executor
	Log        zerolog.Logger
}

// Validate checks parameters and that the output directory accepts new
// files. The probe file is removed before returning.
func (p Params) Validate() error {
	switch {
	case p.Path == "":
		return fmt.Errorf("%w: empty output path", media.ErrInvalidConfig)
	case p.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive, got %g", media.ErrInvalidConfig, p.FPS)
	case p.Size.Width <= 0 || p.Size.Height <= 0:
		return fmt.Errorf("%w: frame size must be positive, got %s", media.ErrInvalidConfig, p.Size)
	case p.Quality < 0 || p.Quality > 5:
		return fmt.Errorf("%w: quality must be 1-5, got %d", media.ErrInvalidConfig, p.Quality)
	}

	if _, err := media.ParseFourCC(string(p.Codec)); err != nil {
		return err
	}

	dir := filepath.Dir(p.Path)
	if p.Codec.IsImageSequence() {
		dir = filepath.Dir(filepath.Clean(p.Path))
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: output directory: %w", media.ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", media.ErrInvalidConfig, dir)
	}
	return probeWritable(dir)
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".rtscope-probe-*")
	if err != nil {
		return fmt.Errorf("%w: output directory not writable: %w", media.ErrInvalidConfig, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func (p Params) withDefaults() Params {
	if p.Codec == "" {
		p.Codec = media.DefaultCodec
	}
	if p.Quality == 0 {
		p.Quality = 3
	}
	if p.FFmpegPath == "" {
		p.FFmpegPath = "ffmpeg"
	}
	if p.Executor == nil {
		p.Executor = &executil.RealExecutor{}
	}
	return p
}

// Open validates p and starts the backend for its codec.
func Open(p Params) (media.Encoder, error) {
	p = p.withDefaults()

	codec, err := media.ParseFourCC(string(p.Codec))
	if err != nil {
		return nil, err
	}
	p.Codec = codec

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if codec.IsImageSequence() {
		return openImageSequence(p)
	}
	return openFFmpeg(p)
}

// CheckFFmpeg reports whether ffmpeg can be executed.
func CheckFFmpeg(ctx context.Context, exec executil.Executor, path string) (string, error) {
	if path == "" {
		path = "ffmpeg"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.Run(ctx, path, "-hide_banner", "-version")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not available: %w", err)
	}
	return firstLine(out), nil
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
