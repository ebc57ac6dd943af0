// Package config defines runtime configuration for the matching core and
// its TCP transport. Config is loaded from a YAML file with fields
// overridable via VALKYRIE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapping directly onto the YAML
// file structure.
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ListenConfig is the TCP bind address and port the server listens on.
type ListenConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// EngineConfig sizes the buffered channels that stand in for the engine's
// unbounded command/event/report queues.
type EngineConfig struct {
	CommandBuffer    int `mapstructure:"command_buffer"`
	EventBuffer      int `mapstructure:"event_buffer"`
	ReportQueueDepth int `mapstructure:"report_queue_depth"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Defaults returns the configuration a server boots with absent a config
// file or environment overrides.
func Defaults() Config {
	return Config{
		Listen: ListenConfig{
			Address: "0.0.0.0",
			Port:    9010,
		},
		Engine: EngineConfig{
			CommandBuffer:    65536,
			EventBuffer:      65536,
			ReportQueueDepth: 4096,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from a YAML file at path, seeded with Defaults, with
// VALKYRIE_* environment variables taking precedence over both.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("VALKYRIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// AutomaticEnv only resolves keys viper already knows about (from a
	// config file or SetDefault); absent a config file there's nothing to
	// Unmarshal from, so apply VALKYRIE_* overrides explicitly.
	if addr := os.Getenv("VALKYRIE_LISTEN_ADDRESS"); addr != "" {
		cfg.Listen.Address = addr
	}
	if port := os.Getenv("VALKYRIE_LISTEN_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Listen.Port = n
		}
	}
	if n, err := strconv.Atoi(os.Getenv("VALKYRIE_ENGINE_COMMAND_BUFFER")); err == nil {
		cfg.Engine.CommandBuffer = n
	}
	if n, err := strconv.Atoi(os.Getenv("VALKYRIE_ENGINE_EVENT_BUFFER")); err == nil {
		cfg.Engine.EventBuffer = n
	}
	if n, err := strconv.Atoi(os.Getenv("VALKYRIE_ENGINE_REPORT_QUEUE_DEPTH")); err == nil {
		cfg.Engine.ReportQueueDepth = n
	}
	if level := os.Getenv("VALKYRIE_LOGGING_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port must be in (0, 65535]")
	}
	if c.Engine.CommandBuffer <= 0 {
		return fmt.Errorf("engine.command_buffer must be > 0")
	}
	if c.Engine.EventBuffer <= 0 {
		return fmt.Errorf("engine.event_buffer must be > 0")
	}
	if c.Engine.ReportQueueDepth <= 0 {
		return fmt.Errorf("engine.report_queue_depth must be > 0")
	}
	return nil
}
