package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/series"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddress, cfg.Subscriber.Address)
	assert.Equal(t, "text", cfg.Subscriber.Decoder)
	assert.Equal(t, 100, cfg.Subscriber.HWM)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Len(t, cfg.Channels, 3)
	assert.Equal(t, "mp4v", cfg.Video.Codec)
	assert.Equal(t, series.DefaultFilenameTemplate, cfg.Export.Template)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
subscriber:
  address: tcp://192.168.1.2:5556
  topic: force
  decoder: msgpack
  poll_interval: 5ms
  history: true
render:
  interval: 100ms
channels:
  - title: Fx
    field: 0
    mode: compress
  - title: gripper
    field: 3
    mode: bar
    y_range: {min: 0, max: 50}
video:
  codec: avc1
  fps: 25
mqtt:
  qos: 1
export:
  dir: /tmp/exports
  on_exit: true
`)
	dataDir := t.TempDir()

	cfg, err := Load(path, dataDir)
	require.NoError(t, err)

	assert.Equal(t, "tcp://192.168.1.2:5556", cfg.Subscriber.Address)
	assert.Equal(t, "force", cfg.Subscriber.Topic)
	assert.Equal(t, 5*time.Millisecond, cfg.Subscriber.PollInterval)
	assert.True(t, cfg.Subscriber.History)
	assert.Equal(t, 100*time.Millisecond, cfg.Render.Interval)
	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, series.ModeCompress, cfg.Channels[0].Mode)
	assert.Equal(t, series.Range{Min: 0, Max: 50}, cfg.Channels[1].YRange)
	assert.Equal(t, "avc1", cfg.Video.Codec)
	assert.InDelta(t, 25.0, cfg.Video.FPS, 0)
	assert.Equal(t, 640, cfg.Video.Width, "unset keys keep defaults")
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.True(t, cfg.Export.OnExit)
	assert.Equal(t, dataDir, cfg.DataDir, "data dir is not read from the file")

	opts, err := cfg.SubscriberOptions()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, opts.PollInterval)
	assert.True(t, opts.History)
	require.NotNil(t, opts.Decoder)
}

func TestLoad_EmptyValuesFallBackToDefaults(t *testing.T) {
	path := writeConfig(t, `
subscriber:
  address: ""
  decoder: ""
channels: []
export:
  template: ""
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Subscriber.Address, cfg.Subscriber.Address)
	assert.Equal(t, defaults.Subscriber.Decoder, cfg.Subscriber.Decoder)
	assert.Equal(t, defaults.Channels, cfg.Channels)
	assert.Equal(t, defaults.Export.Template, cfg.Export.Template)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
video:
  quality: 9
mqtt:
  qos: 3
`)

	_, err := Load(path, t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ElementsMatch(t, []string{"video.quality", "mqtt.qos"}, fieldNames(fieldErrs))
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "subscriber: [not, a, map]\n")

	_, err := Load(path, t.TempDir())
	assert.ErrorContains(t, err, "parse config file")
}

func TestTransportSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Subscriber.HWM = 42
	cfg.MQTT.Username = "robot"
	cfg.Kafka.Group = "scopes"

	s := cfg.TransportSettings()
	assert.Equal(t, 42, s.ZMQ.HWM)
	assert.Equal(t, 42, s.MQTT.HWM)
	assert.Equal(t, "robot", s.MQTT.Username)
	assert.Equal(t, "scopes", s.Kafka.Group)
	assert.Equal(t, 42, s.File.HWM)
	assert.Equal(t, cfg.File.PollInterval, s.File.PollInterval)
}

func TestDirs(t *testing.T) {
	cfg := Config{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "topics"), cfg.TopicsDir())
	assert.Equal(t, filepath.Join("/data", "recordings"), cfg.RecordingsDir())
}
