// Package capture produces frames for recording. Camera control is left to
// external tools; RawReader consumes their raw BGR24 output.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hay-kot/rtscope/internal/core/media"
)

// ErrEndOfStream is returned once a source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Source yields frames in order.
type Source interface {
	Next() (media.Frame, error)
	Size() media.Size
}

// TestPattern draws a vertical bar that sweeps across a gradient. Frame n is
// always identical for the same size.
type TestPattern struct {
	size  media.Size
	limit uint64
	seq   uint64
	now   func() time.Time
}

// NewTestPattern creates a pattern source. A limit of 0 never ends.
func NewTestPattern(size media.Size, limit uint64) *TestPattern {
	return &TestPattern{size: size, limit: limit, now: time.Now}
}

func (p *TestPattern) Size() media.Size { return p.size }

func (p *TestPattern) Next() (media.Frame, error) {
	if p.limit > 0 && p.seq >= p.limit {
		return media.Frame{}, ErrEndOfStream
	}

	f := Pattern(p.size, p.seq)
	f.CapturedAt = p.now()
	p.seq++
	return f, nil
}

// Pattern renders frame seq of the test pattern.
func Pattern(size media.Size, seq uint64) media.Frame {
	f := media.NewFrame(size.Width, size.Height)
	f.Seq = seq

	barWidth := max(size.Width/16, 1)
	barX := int(seq*4) % size.Width

	for y := 0; y < size.Height; y++ {
		shade := uint8(y * 255 / max(size.Height-1, 1))
		for x := 0; x < size.Width; x++ {
			if x >= barX && x < barX+barWidth {
				f.SetBGR(x, y, 0, 0, 255)
				continue
			}
			f.SetBGR(x, y, shade, uint8(x*255/max(size.Width-1, 1)), 64)
		}
	}
	return f
}

// RawReader reads consecutive BGR24 frames from r, e.g. the stdout of
// `ffmpeg -f v4l2 -i /dev/video0 -f rawvideo -pix_fmt bgr24 -`.
type RawReader struct {
	r    io.Reader
	size media.Size
	seq  uint64
	now  func() time.Time
}

func NewRawReader(r io.Reader, size media.Size) *RawReader {
	return &RawReader{r: r, size: size, now: time.Now}
}

func (r *RawReader) Size() media.Size { return r.size }

// Next reads one frame. A clean end of input returns ErrEndOfStream; a
// partial trailing frame is an error.
func (r *RawReader) Next() (media.Frame, error) {
	f := media.NewFrame(r.size.Width, r.size.Height)
	n, err := io.ReadFull(r.r, f.Data)
	switch {
	case errors.Is(err, io.EOF):
		return media.Frame{}, ErrEndOfStream
	case errors.Is(err, io.ErrUnexpectedEOF):
		return media.Frame{}, fmt.Errorf("frame %d: truncated after %d of %d bytes", r.seq, n, len(f.Data))
	case err != nil:
		return media.Frame{}, fmt.Errorf("frame %d: %w", r.seq, err)
	}

	f.Seq = r.seq
	f.CapturedAt = r.now()
	r.seq++
	return f, nil
}
