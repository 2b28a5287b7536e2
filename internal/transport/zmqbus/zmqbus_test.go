package zmqbus

import (
	"testing"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEnvelopeOf(t *testing.T) {
	tests := []struct {
		name      string
		msg       zmq4.Msg
		filter    string
		wantOK    bool
		wantTopic string
		wantBody  string
	}{
		{
			name:   "empty",
			msg:    zmq4.Msg{},
			wantOK: false,
		},
		{
			name:      "single frame keeps filter as topic",
			msg:       zmq4.NewMsg([]byte("force1,2,3")),
			filter:    "force",
			wantOK:    true,
			wantTopic: "force",
			wantBody:  "force1,2,3",
		},
		{
			name:      "multipart",
			msg:       zmq4.NewMsgFrom([]byte("grip"), []byte("42")),
			filter:    "",
			wantOK:    true,
			wantTopic: "grip",
			wantBody:  "42",
		},
		{
			name:      "payload is last frame",
			msg:       zmq4.NewMsgFrom([]byte("arm"), []byte("meta"), []byte("1,2")),
			wantOK:    true,
			wantTopic: "arm",
			wantBody:  "1,2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := envelopeOf(tt.msg, tt.filter)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantTopic, env.Topic)
			assert.Equal(t, tt.wantBody, string(env.Payload))
		})
	}
}

func TestNew_DefaultsHWM(t *testing.T) {
	tr := New(zerolog.Nop(), Options{})
	assert.Equal(t, 100, tr.opts.HWM)
}
