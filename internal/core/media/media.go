// Package media defines the frame and encoder types shared by capture sources,
// the frame sink and the video backends.
package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"
)

var (
	// ErrUnsupportedCodec is returned for a fourcc no backend can encode.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrInvalidConfig is returned for unusable encoder parameters.
	ErrInvalidConfig = errors.New("invalid video configuration")
)

// BytesPerPixel is the size of one BGR24 pixel.
const BytesPerPixel = 3

// Frame is one BGR24 image, rows top to bottom with no padding.
type Frame struct {
	Seq        uint64
	Width      int
	Height     int
	Data       []byte
	CapturedAt time.Time
}

// NewFrame allocates a black frame of the given size.
func NewFrame(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Data:   make([]byte, FrameSize(width, height)),
	}
}

// FrameSize is the byte length of a BGR24 frame.
func FrameSize(width, height int) int {
	return width * height * BytesPerPixel
}

// Size returns the frame dimensions.
func (f Frame) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// Validate checks that Data matches the declared dimensions.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame %d: non-positive size %dx%d", f.Seq, f.Width, f.Height)
	}
	if want := FrameSize(f.Width, f.Height); len(f.Data) != want {
		return fmt.Errorf("frame %d: %d bytes for %dx%d, want %d", f.Seq, len(f.Data), f.Width, f.Height, want)
	}
	return nil
}

// SetBGR writes one pixel. Out of range coordinates are ignored.
func (f Frame) SetBGR(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * BytesPerPixel
	f.Data[i], f.Data[i+1], f.Data[i+2] = b, g, r
}

// Image converts the frame to an RGBA image for the still-image encoders.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		row := y * f.Width * BytesPerPixel
		for x := 0; x < f.Width; x++ {
			i := row + x*BytesPerPixel
			img.SetRGBA(x, y, color.RGBA{R: f.Data[i+2], G: f.Data[i+1], B: f.Data[i], A: 0xff})
		}
	}
	return img
}

// Size is a frame resolution.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Encoder writes frames to a container. Implementations are not safe for
// concurrent use; the frame sink serializes access.
type Encoder interface {
	WriteFrame(Frame) error
	Close() error
}
