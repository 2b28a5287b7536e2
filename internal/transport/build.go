package transport

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/hay-kot/rtscope/internal/store/jsonfile"
	"github.com/hay-kot/rtscope/internal/transport/kafkabus"
	"github.com/hay-kot/rtscope/internal/transport/memory"
	"github.com/hay-kot/rtscope/internal/transport/mqttbus"
	"github.com/hay-kot/rtscope/internal/transport/wsbus"
	"github.com/hay-kot/rtscope/internal/transport/zmqbus"
)

// Settings carries the per-transport options used by Build.
type Settings struct {
	ZMQ   zmqbus.Options
	MQTT  mqttbus.Options
	Kafka kafkabus.Options
	WS    wsbus.Options
	File  jsonfile.TransportOptions

	// Memory is the in-process bus served under mem://. Build creates one
	// when nil.
	Memory *memory.Bus
}

// DefaultSettings returns each transport's defaults.
func DefaultSettings() Settings {
	return Settings{
		ZMQ:  zmqbus.DefaultOptions(),
		MQTT: mqttbus.DefaultOptions(),
		File: jsonfile.TransportOptions{PollInterval: jsonfile.DefaultPollInterval},
	}
}

// Build returns a registry serving every built-in transport.
func Build(log zerolog.Logger, s Settings) *Registry {
	if s.Memory == nil {
		s.Memory = memory.New(s.ZMQ.HWM)
	}

	r := NewRegistry()
	r.Register(zmqbus.New(log, s.ZMQ), zmqbus.Schemes...)
	r.Register(mqttbus.New(log, s.MQTT), mqttbus.Schemes...)
	r.Register(kafkabus.New(log, s.Kafka), kafkabus.Schemes...)
	r.Register(wsbus.New(log, s.WS), wsbus.Schemes...)
	r.Register(jsonfile.NewTransport(log, s.File), jsonfile.Scheme)
	r.Register(s.Memory, memory.Scheme)
	return r
}

// KnownSchemes lists the schemes Build registers.
func KnownSchemes() []string {
	schemes := []string{memory.Scheme, jsonfile.Scheme}
	schemes = append(schemes, zmqbus.Schemes...)
	schemes = append(schemes, mqttbus.Schemes...)
	schemes = append(schemes, kafkabus.Schemes...)
	schemes = append(schemes, wsbus.Schemes...)
	slices.Sort(schemes)
	return schemes
}
