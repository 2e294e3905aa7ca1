package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/roomlog/internal/actionlog"
)

// EnvPrefix prefixes every environment override, e.g. ROOMLOG_SERVER_PORT.
const EnvPrefix = "ROOMLOG"

// Config holds all configuration for the server
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Room     RoomConfig     `mapstructure:"room"`
	Grouping GroupingConfig `mapstructure:"grouping"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP and websocket listener configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects where action logs are kept
type StorageConfig struct {
	Type             string `mapstructure:"type"` // memory, sqlite, postgres
	ConnectionString string `mapstructure:"connection_string"`
	MaxConnections   int    `mapstructure:"max_connections"`
}

// RoomConfig bounds what a room keeps and accepts
type RoomConfig struct {
	HistoryLimit     int `mapstructure:"history_limit"`
	MaxMessageLength int `mapstructure:"max_message_length"`
}

// GroupingConfig configures how action logs are grouped for display
type GroupingConfig struct {
	Window  time.Duration `mapstructure:"window"`
	UserKey string        `mapstructure:"user_key"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// Load reads configPath (YAML) if given, then applies ROOMLOG_* environment
// overrides over the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.connection_string", "")
	v.SetDefault("storage.max_connections", 10)

	v.SetDefault("room.history_limit", 500)
	v.SetDefault("room.max_message_length", 1000)

	v.SetDefault("grouping.window", actionlog.DefaultWindow.String())
	v.SetDefault("grouping.user_key", actionlog.DefaultUserKey)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "")
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Storage.Type) {
	case "memory":
	case "sqlite", "postgres", "postgresql":
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage connection string is required for %s", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Room.HistoryLimit < 0 {
		return errors.New("room history limit must not be negative")
	}
	if c.Room.MaxMessageLength <= 0 {
		return errors.New("room max message length must be positive")
	}
	if _, err := actionlog.NewGrouper(c.Grouping.Window, c.Grouping.UserKey); err != nil {
		return fmt.Errorf("invalid grouping config: %w", err)
	}
	if c.Logging.Output == "file" && c.Logging.File == "" {
		return errors.New("logging file is required when output is file")
	}
	return nil
}
