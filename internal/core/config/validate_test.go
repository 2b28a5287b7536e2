package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/series"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func fieldNames(errs criterio.FieldErrors) []string {
	names := make([]string, len(errs))
	for i, fe := range errs {
		names[i] = fe.Field
	}
	return names
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Channels = append(cfg.Channels, series.Channel{
		Title:  "gripper",
		Field:  3,
		Mode:   series.ModeBar,
		YRange: series.Range{Min: 0, Max: 50},
	})

	err := cfg.ValidateDeep("")
	assert.NoError(t, err, "expected valid config")
}

func TestValidateDeep_Addresses(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"tcp://127.0.0.1:5555", true},
		{"ipc:///tmp/feed", true},
		{"mqtt://broker/sensors/#", true},
		{"kafka://b1:9092,b2:9092/imu", true},
		{"ws://localhost:8080/feed", true},
		{"file:///var/lib/rtscope/topics", true},
		{"mem://demo", true},
		{"127.0.0.1:5555", false},
		{"udp://127.0.0.1:5555", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Subscriber.Address = tt.address

			err := cfg.ValidateDeep("")
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			assert.Equal(t, []string{"subscriber.address"}, fieldNames(fieldErrs))
		})
	}
}

func TestValidateDeep_UnknownDecoder(t *testing.T) {
	cfg := validConfig(t)
	cfg.Subscriber.Decoder = "protobuf"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 1)
	assert.Equal(t, "subscriber.decoder", fieldErrs[0].Field)
}

func TestValidateDeep_InvalidChannels(t *testing.T) {
	cfg := validConfig(t)
	cfg.Channels = []series.Channel{
		{Title: "X", Field: 0},
		{Title: "X", Field: 1},
		{Title: "", Field: 2},
		{Title: "force", Field: -1, Mode: "scatter"},
		{Title: "bar", Field: 3, Mode: series.ModeBar, YRange: series.Range{Min: 50, Max: 0}},
	}

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ElementsMatch(t, []string{
		"channels[1].title",
		"channels[2].title",
		"channels[3].mode",
		"channels[3].field",
		"channels[4].y_range",
	}, fieldNames(fieldErrs))
}

func TestValidateDeep_InvalidExportTemplate(t *testing.T) {
	cfg := validConfig(t)
	cfg.Export.Template = "{{ .Time }_{{ .Invalid }}.csv"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 1)
	assert.Contains(t, fieldErrs[0].Field, "export.template")
	assert.Contains(t, fieldErrs[0].Err.Error(), "template error")
}

func TestValidateDeep_UnknownFieldInExportTemplate(t *testing.T) {
	cfg := validConfig(t)
	cfg.Export.Template = "{{ .Invalid }}.csv"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "export.template", fieldErrs[0].Field)
}

func TestValidateDeep_Video(t *testing.T) {
	cfg := validConfig(t)
	cfg.Video.Codec = "WMV3"
	cfg.Video.FPS = 0
	cfg.Video.Width = 0
	cfg.Video.Quality = 7

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ElementsMatch(t, []string{
		"video.quality",
		"video.codec",
		"video.fps",
		"video.size",
	}, fieldNames(fieldErrs))
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "data_dir", fieldErrs[0].Field)
}

func TestValidateDeep_MissingDataDirIsFine(t *testing.T) {
	cfg := validConfig(t)
	cfg.DataDir = filepath.Join(t.TempDir(), "later")

	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	cfg.Subscriber.PollInterval = 0
	cfg.Subscriber.History = true
	cfg.FFmpegPath = "ffmpeg-that-does-not-exist"
	cfg.Export.Dir = filepath.Join(t.TempDir(), "exports")
	cfg.MQTT.Password = "secret"

	var items []string
	for _, w := range cfg.Warnings() {
		items = append(items, w.Category+"/"+w.Item)
	}

	assert.ElementsMatch(t, []string{
		"Subscriber/poll_interval",
		"Subscriber/history",
		"Video/ffmpeg-that-does-not-exist",
		"Export/dir",
		"MQTT/password",
	}, items)
}

func TestWarnings_ImageSequenceSkipsFFmpeg(t *testing.T) {
	cfg := validConfig(t)
	cfg.Video.Codec = "PNG"
	cfg.FFmpegPath = "ffmpeg-that-does-not-exist"

	assert.Empty(t, cfg.Warnings())
}
