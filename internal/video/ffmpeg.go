package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/pkg/executil"
	"github.com/hay-kot/rtscope/pkg/randid"
)

// ffmpegEncoder pipes raw frames into ffmpeg. Output goes to a temporary
// sibling that is renamed into place once ffmpeg exits cleanly.
type ffmpegEncoder struct {
	params Params
	tmp    string
	proc   executil.Process
	stderr *lockedBuffer
	log    zerolog.Logger
	frames uint64
	closed bool
}

func openFFmpeg(p Params) (media.Encoder, error) {
	tmp := randid.TempName(p.Path)
	args := ffmpegArgs(p, tmp)

	stderr := &lockedBuffer{}
	// The process must outlive any request context; Close finalizes it.
	proc, err := p.Executor.Spawn(context.Background(), nil, stderr, p.FFmpegPath, args...)
	if err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	log := p.Log.With().Str("component", "ffmpeg").Str("path", p.Path).Logger()
	log.Debug().Strs("args", args).Msg("ffmpeg started")

	return &ffmpegEncoder{
		params: p,
		tmp:    tmp,
		proc:   proc,
		stderr: stderr,
		log:    log,
	}, nil
}

// ffmpegArgs builds the command line for reading bgr24 on stdin.
func ffmpegArgs(p Params, out string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", p.Size.String(),
		"-r", strconv.FormatFloat(p.FPS, 'f', -1, 64),
		"-i", "-",
		"-an",
	}
	args = append(args, codecArgs(p.Codec, p.Quality)...)
	return append(args, out)
}

func codecArgs(c media.FourCC, quality int) []string {
	switch c {
	case media.CodecAVC1, media.CodecH264:
		return []string{"-c:v", "libx264", "-preset", "fast", "-crf", qualityToCRF(quality), "-pix_fmt", "yuv420p"}
	case media.CodecXVID:
		return []string{"-c:v", "mpeg4", "-vtag", "xvid", "-q:v", qualityToQScale(quality)}
	case media.CodecMJPG:
		return []string{"-c:v", "mjpeg", "-q:v", qualityToQScale(quality), "-pix_fmt", "yuvj420p"}
	default:
		return []string{"-c:v", "mpeg4", "-q:v", qualityToQScale(quality)}
	}
}

// qualityToCRF maps 1 (low) to CRF 28 and 5 (high) to CRF 18.
func qualityToCRF(quality int) string {
	crf := 28.0 - float64(quality-1)*2.5
	crf = min(max(crf, 18), 28)
	return strconv.FormatFloat(crf, 'f', 1, 64)
}

// qualityToQScale maps 1 (low) to qscale 13 and 5 (high) to 2.
func qualityToQScale(quality int) string {
	q := 13 - (quality-1)*11/4
	q = min(max(q, 2), 13)
	return strconv.Itoa(q)
}

func (e *ffmpegEncoder) WriteFrame(f media.Frame) error {
	if e.closed {
		return fmt.Errorf("ffmpeg: write after close")
	}
	if f.Width != e.params.Size.Width || f.Height != e.params.Size.Height {
		return fmt.Errorf("ffmpeg: frame %s, encoder %s", f.Size(), e.params.Size)
	}
	if err := f.Validate(); err != nil {
		return err
	}

	if _, err := e.proc.Stdin().Write(f.Data); err != nil {
		return fmt.Errorf("ffmpeg: write frame %d: %w%s", f.Seq, err, e.stderrSuffix())
	}
	e.frames++
	return nil
}

func (e *ffmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	closeErr := e.proc.Stdin().Close()
	if err := e.proc.Wait(); err != nil {
		_ = os.Remove(e.tmp)
		return fmt.Errorf("ffmpeg: %w%s", err, e.stderrSuffix())
	}
	if closeErr != nil {
		_ = os.Remove(e.tmp)
		return fmt.Errorf("ffmpeg: close stdin: %w", closeErr)
	}

	if e.frames == 0 {
		// ffmpeg produces no file for empty input.
		_ = os.Remove(e.tmp)
		e.log.Debug().Msg("no frames written, output skipped")
		return nil
	}

	if err := os.Rename(e.tmp, e.params.Path); err != nil {
		return fmt.Errorf("ffmpeg: finalize %s: %w", e.params.Path, err)
	}

	e.log.Debug().Uint64("frames", e.frames).Msg("ffmpeg finished")
	return nil
}

func (e *ffmpegEncoder) stderrSuffix() string {
	out := strings.TrimSpace(e.stderr.String())
	if out == "" {
		return ""
	}
	return " (output: " + out + ")"
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
