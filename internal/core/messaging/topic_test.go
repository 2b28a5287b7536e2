package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"", "anything", true},
		{"*", "force", true},
		{"force", "force", true},
		{"force", "force/left", true},
		{"force", "grip", false},
		{"arm/*", "arm/x", true},
		{"arm/*", "arm/x/y", false},
		{"arm/**", "arm/x/y", true},
		{"sensor.?", "sensor.1", true},
		{"[bad", "bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"->"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchTopic(tt.filter, tt.topic))
		})
	}
}
