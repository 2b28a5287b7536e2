package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFourCC(t *testing.T) {
	tests := []struct {
		in      string
		want    FourCC
		wantErr bool
	}{
		{"", CodecMP4V, false},
		{"mp4v", CodecMP4V, false},
		{"MP4V", CodecMP4V, false},
		{"h264", CodecH264, false},
		{"xvid", CodecXVID, false},
		{"png", CodecPNG, false},
		{"PNG ", CodecPNG, false},
		{"jpeg", CodecJPEG, false},
		{"vp09", "", true},
		{"toolong", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFourCC(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrame_Validate(t *testing.T) {
	f := NewFrame(4, 2)
	require.NoError(t, f.Validate())
	assert.Len(t, f.Data, 24)

	f.Data = f.Data[:10]
	assert.Error(t, f.Validate())

	assert.Error(t, Frame{Width: 0, Height: 2}.Validate())
}

func TestFrame_Image(t *testing.T) {
	f := NewFrame(2, 1)
	f.SetBGR(1, 0, 10, 20, 30)
	f.SetBGR(5, 5, 1, 1, 1) // ignored

	img := f.Image()
	c := img.RGBAAt(1, 0)
	assert.Equal(t, uint8(30), c.R)
	assert.Equal(t, uint8(20), c.G)
	assert.Equal(t, uint8(10), c.B)
	assert.Equal(t, uint8(0xff), c.A)
}

func TestFourCC_IsImageSequence(t *testing.T) {
	assert.True(t, CodecPNG.IsImageSequence())
	assert.True(t, CodecJPEG.IsImageSequence())
	assert.False(t, CodecMP4V.IsImageSequence())
}
