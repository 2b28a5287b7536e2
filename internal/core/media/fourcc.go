package media

import (
	"fmt"
	"strings"
)

// FourCC is a four character codec code such as "mp4v".
type FourCC string

// Codecs understood by the video backends.
const (
	CodecMP4V FourCC = "mp4v"
	CodecAVC1 FourCC = "avc1"
	CodecH264 FourCC = "H264"
	CodecXVID FourCC = "XVID"
	CodecMJPG FourCC = "MJPG"
	CodecJPEG FourCC = "JPEG"
	CodecPNG  FourCC = "PNG "
)

// DefaultCodec matches the reference recorder.
const DefaultCodec = CodecMP4V

var known = []FourCC{CodecMP4V, CodecAVC1, CodecH264, CodecXVID, CodecMJPG, CodecJPEG, CodecPNG}

// ParseFourCC resolves s case-insensitively. "PNG" is accepted for "PNG ".
func ParseFourCC(s string) (FourCC, error) {
	if s == "" {
		return DefaultCodec, nil
	}
	if len(s) == 3 {
		s += " "
	}
	if len(s) != 4 {
		return "", fmt.Errorf("%w: %q is not a four character code", ErrUnsupportedCodec, s)
	}
	for _, c := range known {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCodec, s)
}

// Codecs lists every supported fourcc.
func Codecs() []FourCC {
	out := make([]FourCC, len(known))
	copy(out, known)
	return out
}

// IsImageSequence reports whether the codec writes one still image per frame.
func (c FourCC) IsImageSequence() bool {
	return c == CodecJPEG || c == CodecPNG
}

func (c FourCC) String() string {
	return string(c)
}
