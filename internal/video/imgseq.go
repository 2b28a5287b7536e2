package video

import (
	"bufio"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/hay-kot/rtscope/internal/core/media"
)

// imageSequence writes frame_000000.jpg, frame_000001.jpg, ... into a
// directory, for players and tools that want stills.
type imageSequence struct {
	dir    string
	size   media.Size
	ext    string
	encode func(io.Writer, media.Frame) error
	next   int
	closed bool
}

func openImageSequence(p Params) (media.Encoder, error) {
	if err := os.MkdirAll(p.Path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", media.ErrInvalidConfig, p.Path, err)
	}

	s := &imageSequence{dir: p.Path, size: p.Size}
	switch p.Codec {
	case media.CodecPNG:
		s.ext = ".png"
		s.encode = func(w io.Writer, f media.Frame) error {
			return png.Encode(w, f.Image())
		}
	default:
		opts := &jpeg.Options{Quality: 50 + p.Quality*9}
		s.ext = ".jpg"
		s.encode = func(w io.Writer, f media.Frame) error {
			return jpeg.Encode(w, f.Image(), opts)
		}
	}
	return s, nil
}

// FrameName is the file name of the n-th frame in a sequence.
func FrameName(n int, ext string) string {
	return fmt.Sprintf("frame_%06d%s", n, ext)
}

func (s *imageSequence) WriteFrame(f media.Frame) error {
	if s.closed {
		return fmt.Errorf("image sequence: write after close")
	}
	if f.Width != s.size.Width || f.Height != s.size.Height {
		return fmt.Errorf("image sequence: frame %s, encoder %s", f.Size(), s.size)
	}
	if err := f.Validate(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, FrameName(s.next, s.ext))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("image sequence: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := s.encode(w, f); err != nil {
		_ = file.Close()
		return fmt.Errorf("image sequence: encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("image sequence: write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("image sequence: close %s: %w", path, err)
	}

	s.next++
	return nil
}

func (s *imageSequence) Close() error {
	s.closed = true
	return nil
}
