package framesink

import (
	"errors"
	"fmt"

	"github.com/hay-kot/rtscope/internal/core/media"
)

var (
	// ErrInvalidConfig is returned by Open for unusable parameters.
	ErrInvalidConfig = media.ErrInvalidConfig

	// ErrSizeMismatch matches every *SizeMismatchError.
	ErrSizeMismatch = errors.New("frame size mismatch")

	// ErrClosed is returned by Write, Enqueue and StartBackgroundWriter once
	// Close has begun.
	ErrClosed = errors.New("frame sink closed")

	// ErrWriterFailed is returned by Enqueue once the background writer has
	// stopped on a fatal error. It wraps that error.
	ErrWriterFailed = errors.New("background writer failed")

	// ErrWriterRunning is returned by a second StartBackgroundWriter.
	ErrWriterRunning = errors.New("background writer already started")
)

// SizeMismatchError reports a frame whose dimensions or buffer length differ
// from the sink's configuration. Frames are never resized.
type SizeMismatchError struct {
	Seq     uint64
	Got     media.Size
	Want    media.Size
	DataLen int
}

func (e *SizeMismatchError) Error() string {
	want := media.FrameSize(e.Want.Width, e.Want.Height)
	if e.Got == e.Want {
		return fmt.Sprintf("frame %d: %d bytes, want %d for %s", e.Seq, e.DataLen, want, e.Want)
	}
	return fmt.Sprintf("frame %d: size %s, sink expects %s", e.Seq, e.Got, e.Want)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}
