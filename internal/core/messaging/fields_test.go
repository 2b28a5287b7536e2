package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloats(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		expect  []float64
		wantErr bool
	}{
		{name: "three fields", payload: "1,2.5,-3", want: 3, expect: []float64{1, 2.5, -3}},
		{name: "whitespace trimmed", payload: " 1 , 2 ", want: 2, expect: []float64{1, 2}},
		{name: "any count", payload: "4,5,6,7", want: 0, expect: []float64{4, 5, 6, 7}},
		{name: "count mismatch", payload: "1,2", want: 3, wantErr: true},
		{name: "not a number", payload: "1,x,3", want: 3, wantErr: true},
		{name: "empty", payload: "", want: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Floats(tt.payload, tt.want)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestFloat(t *testing.T) {
	v, err := Float("0.1,0.2,0.3", 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, v, 1e-9)

	_, err = Float("0.1", 1)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Float("0.1,abc", 1)
	assert.ErrorIs(t, err, ErrMalformed)
}
