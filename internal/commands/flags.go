package commands

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/hay-kot/rtscope/internal/core/config"
	"github.com/hay-kot/rtscope/internal/transport"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	registry *transport.Registry
}

// Registry returns the transport registry built from the loaded config. It is
// created on first use so commands that never touch a bus don't pay for it.
func (f *Flags) Registry() *transport.Registry {
	if f.registry == nil {
		settings := transport.DefaultSettings()
		if f.Config != nil {
			settings = f.Config.TransportSettings()
		}
		f.registry = transport.Build(log.Logger, settings)
	}
	return f.registry
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "rtscope", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "rtscope")
}
