// Package config handles configuration loading and validation for rtscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/rtscope/internal/core/media"
	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/series"
	"github.com/hay-kot/rtscope/internal/store/jsonfile"
	"github.com/hay-kot/rtscope/internal/subscriber"
	"github.com/hay-kot/rtscope/internal/transport"
	"github.com/hay-kot/rtscope/internal/transport/kafkabus"
	"github.com/hay-kot/rtscope/internal/transport/mqttbus"
	"github.com/hay-kot/rtscope/internal/transport/wsbus"
	"github.com/hay-kot/rtscope/internal/transport/zmqbus"
)

// DefaultAddress is where the subscriber connects when nothing is configured.
const DefaultAddress = "tcp://127.0.0.1:5555"

// Config holds the application configuration.
type Config struct {
	Subscriber SubscriberConfig `yaml:"subscriber"`
	Render     RenderConfig     `yaml:"render"`
	Channels   []series.Channel `yaml:"channels"`
	Video      VideoConfig      `yaml:"video"`
	ZMQ        ZMQConfig        `yaml:"zmq"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	File       FileConfig       `yaml:"file"`
	Export     ExportConfig     `yaml:"export"`
	FFmpegPath string           `yaml:"ffmpeg_path"`
	DataDir    string           `yaml:"-"` // set by caller, not from config file
}

// SubscriberConfig controls the receive loop.
type SubscriberConfig struct {
	Address      string        `yaml:"address"`
	Topic        string        `yaml:"topic"`
	Decoder      string        `yaml:"decoder"` // text, msgpack
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	History      bool          `yaml:"history"`
	HWM          int           `yaml:"hwm"`
}

// RenderConfig controls how often the watch view redraws.
type RenderConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// VideoConfig holds defaults for `rtscope record`.
type VideoConfig struct {
	Path      string        `yaml:"path"`
	FPS       float64       `yaml:"fps"`
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	Codec     string        `yaml:"codec"`
	Quality   int           `yaml:"quality"`
	DrainPoll time.Duration `yaml:"drain_poll"`
	Async     bool          `yaml:"async"`
}

// ZMQConfig holds ZeroMQ dial behaviour.
type ZMQConfig struct {
	DialRetry   time.Duration `yaml:"dial_retry"`
	DialRetries int           `yaml:"dial_retries"`
}

// MQTTConfig holds broker session settings.
type MQTTConfig struct {
	QoS            byte          `yaml:"qos"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientIDPrefix string        `yaml:"client_id_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// KafkaConfig holds consumer settings.
type KafkaConfig struct {
	ClientID string `yaml:"client_id"`
	Group    string `yaml:"group"`
}

// FileConfig configures file:// topics.
type FileConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRecords   int           `yaml:"max_records"`
}

// ExportConfig controls CSV export of plotted series.
type ExportConfig struct {
	// Dir defaults to the current directory.
	Dir      string `yaml:"dir"`
	Template string `yaml:"template"`
	OnExit   bool   `yaml:"on_exit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	sub := subscriber.DefaultOptions()
	zmq := zmqbus.DefaultOptions()
	mqtt := mqttbus.DefaultOptions()

	return Config{
		Subscriber: SubscriberConfig{
			Address:      DefaultAddress,
			Decoder:      messaging.DecoderText,
			PollInterval: sub.PollInterval,
			MaxBackoff:   sub.MaxBackoff,
			HWM:          messaging.DefaultHWM,
		},
		Render: RenderConfig{
			Interval: 50 * time.Millisecond,
		},
		Channels: series.DefaultChannels(),
		Video: VideoConfig{
			Path:      "output.mp4",
			FPS:       30,
			Width:     640,
			Height:    480,
			Codec:     media.DefaultCodec.String(),
			Quality:   3,
			DrainPoll: 50 * time.Millisecond,
		},
		ZMQ: ZMQConfig{
			DialRetry:   zmq.DialRetry,
			DialRetries: zmq.DialRetries,
		},
		MQTT: MQTTConfig{
			ClientIDPrefix: mqtt.ClientIDPrefix,
			ConnectTimeout: mqtt.ConnectTimeout,
			PublishTimeout: mqtt.PublishTimeout,
		},
		Kafka: KafkaConfig{
			ClientID: "rtscope",
		},
		File: FileConfig{
			PollInterval: jsonfile.DefaultPollInterval,
			MaxRecords:   jsonfile.DefaultMaxRecords,
		},
		Export: ExportConfig{
			Template: series.DefaultFilenameTemplate,
		},
		FFmpegPath: "ffmpeg",
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Subscriber.Address == "" {
		c.Subscriber.Address = defaults.Subscriber.Address
	}
	if c.Subscriber.Decoder == "" {
		c.Subscriber.Decoder = defaults.Subscriber.Decoder
	}
	if c.Subscriber.HWM == 0 {
		c.Subscriber.HWM = defaults.Subscriber.HWM
	}
	if c.Subscriber.MaxBackoff == 0 {
		c.Subscriber.MaxBackoff = defaults.Subscriber.MaxBackoff
	}
	if c.Render.Interval == 0 {
		c.Render.Interval = defaults.Render.Interval
	}
	if len(c.Channels) == 0 {
		c.Channels = defaults.Channels
	}
	if c.Video.Codec == "" {
		c.Video.Codec = defaults.Video.Codec
	}
	if c.Video.DrainPoll == 0 {
		c.Video.DrainPoll = defaults.Video.DrainPoll
	}
	if c.ZMQ.DialRetry == 0 {
		c.ZMQ.DialRetry = defaults.ZMQ.DialRetry
	}
	if c.ZMQ.DialRetries == 0 {
		c.ZMQ.DialRetries = defaults.ZMQ.DialRetries
	}
	if c.MQTT.ClientIDPrefix == "" {
		c.MQTT.ClientIDPrefix = defaults.MQTT.ClientIDPrefix
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = defaults.MQTT.ConnectTimeout
	}
	if c.MQTT.PublishTimeout == 0 {
		c.MQTT.PublishTimeout = defaults.MQTT.PublishTimeout
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = defaults.Kafka.ClientID
	}
	if c.File.PollInterval == 0 {
		c.File.PollInterval = defaults.File.PollInterval
	}
	if c.File.MaxRecords == 0 {
		c.File.MaxRecords = defaults.File.MaxRecords
	}
	if c.Export.Template == "" {
		c.Export.Template = defaults.Export.Template
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = defaults.FFmpegPath
	}
}

// Validate checks the values Load cannot default. It stays cheap; ValidateDeep
// covers templates, channels and external tools.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.Subscriber.PollInterval < 0 {
		errs = errs.Append("subscriber.poll_interval", fmt.Errorf("must not be negative"))
	}
	if c.Subscriber.HWM < 0 {
		errs = errs.Append("subscriber.hwm", fmt.Errorf("must not be negative"))
	}
	if c.Render.Interval < 0 {
		errs = errs.Append("render.interval", fmt.Errorf("must not be negative"))
	}
	if c.Video.FPS < 0 {
		errs = errs.Append("video.fps", fmt.Errorf("must not be negative"))
	}
	if c.Video.Quality < 0 || c.Video.Quality > 5 {
		errs = errs.Append("video.quality", fmt.Errorf("must be between 1 and 5, got %d", c.Video.Quality))
	}
	if c.MQTT.QoS > 2 {
		errs = errs.Append("mqtt.qos", fmt.Errorf("must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}

	return errs.ToError()
}

// SubscriberOptions converts the subscriber section to receive-loop options.
func (c *Config) SubscriberOptions() (subscriber.Options, error) {
	dec, err := messaging.DecoderByName(c.Subscriber.Decoder)
	if err != nil {
		return subscriber.Options{}, err
	}
	return subscriber.Options{
		PollInterval: c.Subscriber.PollInterval,
		MaxBackoff:   c.Subscriber.MaxBackoff,
		History:      c.Subscriber.History,
		Decoder:      dec,
	}, nil
}

// TransportSettings converts the transport sections to per-transport options.
func (c *Config) TransportSettings() transport.Settings {
	hwm := c.Subscriber.HWM
	return transport.Settings{
		ZMQ: zmqbus.Options{
			HWM:         hwm,
			DialRetry:   c.ZMQ.DialRetry,
			DialRetries: c.ZMQ.DialRetries,
		},
		MQTT: mqttbus.Options{
			QoS:            c.MQTT.QoS,
			Username:       c.MQTT.Username,
			Password:       c.MQTT.Password,
			ClientIDPrefix: c.MQTT.ClientIDPrefix,
			ConnectTimeout: c.MQTT.ConnectTimeout,
			PublishTimeout: c.MQTT.PublishTimeout,
			HWM:            hwm,
		},
		Kafka: kafkabus.Options{
			ClientID: c.Kafka.ClientID,
			Group:    c.Kafka.Group,
			HWM:      hwm,
		},
		WS: wsbus.Options{HWM: hwm},
		File: jsonfile.TransportOptions{
			PollInterval: c.File.PollInterval,
			HWM:          hwm,
			MaxRecords:   c.File.MaxRecords,
		},
	}
}

// TopicsDir returns the directory backing the default file:// store, used by
// `rtscope sub --record`.
func (c *Config) TopicsDir() string {
	return filepath.Join(c.DataDir, "topics")
}

// RecordingsDir returns the directory for recording manifests.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.DataDir, "recordings")
}
