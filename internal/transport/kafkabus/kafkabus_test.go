package kafkabus

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		address string
		want    Endpoint
		wantErr bool
	}{
		{
			address: "kafka://localhost/samples",
			want:    Endpoint{Brokers: []string{"localhost:9092"}, Topic: "samples"},
		},
		{
			address: "kafka://b1:19092, b2 /bench.force",
			want:    Endpoint{Brokers: []string{"b1:19092", "b2:9092"}, Topic: "bench.force"},
		},
		{
			address: "kafka://b1",
			want:    Endpoint{Brokers: []string{"b1:9092"}},
		},
		{address: "kafka:///samples", wantErr: true},
		{address: "tcp://b1/samples", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := ParseAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDial_RequiresTopic(t *testing.T) {
	tr := New(zerolog.Nop(), Options{})

	_, err := tr.Dial(context.Background(), "kafka://localhost", "")
	assert.ErrorContains(t, err, "requires a topic")
}
