// Package config provides Viper-based configuration loading for the impostor server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is the server operation mode. Only "standalone" is supported.
	Mode string `mapstructure:"mode"`
	// Type is the server type identifier reported in logs.
	Type string `mapstructure:"type"`
}

// DatabaseConfig holds PostgreSQL connection settings for the round archive.
type DatabaseConfig struct {
	// Enabled turns the round archive on. The remaining fields are only
	// validated when it is set.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// GatewayConfig holds WebSocket gateway settings.
type GatewayConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// Path is the WebSocket endpoint path.
	Path string `mapstructure:"path"`
	// ReadTimeout is how long a connection may stay silent, pongs included.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is the keepalive ping period. Must be shorter than ReadTimeout.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// MaxMessageBytes caps inbound frame size.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	// OutboxSize is the per-connection outbound event buffer.
	OutboxSize int `mapstructure:"outbox_size"`
	// AllowedOrigins lists accepted Origin headers. Empty accepts same-host
	// origins only; "*" accepts any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// HealthConfig holds the gRPC health service settings.
type HealthConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.GRPCHost, h.GRPCPort)
}

// RoomConfig holds room lifecycle and round settings.
type RoomConfig struct {
	// CodeLength is the number of characters in a room code.
	CodeLength int `mapstructure:"code_length"`
	// CodeAttempts bounds random code sampling per room creation.
	CodeAttempts int `mapstructure:"code_attempts"`
	// MaxPlayers caps the member count of a room.
	MaxPlayers int `mapstructure:"max_players"`
	// MaxNameLength caps display names in characters.
	MaxNameLength int `mapstructure:"max_name_length"`
	// DefaultCategory is used when a room is created without a known category.
	DefaultCategory string `mapstructure:"default_category"`
	// OfflineGrace is how long an offline member keeps its slot.
	OfflineGrace time.Duration `mapstructure:"offline_grace"`
	// AutoStartWhenReady starts a round once every member is ready.
	AutoStartWhenReady bool `mapstructure:"auto_start_when_ready"`
	// MinReadyPlayers is the member count required for a ready-consensus start.
	MinReadyPlayers int `mapstructure:"min_ready_players"`
}

// WordsConfig locates the word bank.
type WordsConfig struct {
	// Dir holds one YAML file per category.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// OutputPaths are zap sink URLs or file paths. Empty means stderr.
	OutputPaths []string `mapstructure:"output_paths"`
	// Sampling enables zap's per-second sampling of repeated entries.
	Sampling bool `mapstructure:"sampling"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Health   HealthConfig   `mapstructure:"health"`
	Room     RoomConfig     `mapstructure:"room"`
	Words    WordsConfig    `mapstructure:"words"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateGateway(c.Gateway),
		validateHealth(c.Health),
		validateRoom(c.Room),
		validateWords(c.Words),
		validateLogging(c.Logging),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Mode != "standalone" {
		return fmt.Errorf("server.mode must be one of [standalone], got %q", s.Mode)
	}
	if s.Type == "" {
		return errors.New("server.type must not be empty")
	}
	return nil
}

func validatePort(field string, port int) string {
	if port < 1 || port > 65535 {
		return fmt.Sprintf("%s must be 1-65535, got %d", field, port)
	}
	return ""
}

func validateGateway(g GatewayConfig) error {
	var errs []string
	if msg := validatePort("gateway.port", g.Port); msg != "" {
		errs = append(errs, msg)
	}
	if !strings.HasPrefix(g.Path, "/") {
		errs = append(errs, fmt.Sprintf("gateway.path must start with /, got %q", g.Path))
	}
	if g.ReadTimeout <= 0 {
		errs = append(errs, "gateway.read_timeout must be positive")
	}
	if g.WriteTimeout <= 0 {
		errs = append(errs, "gateway.write_timeout must be positive")
	}
	if g.PingInterval <= 0 || g.PingInterval >= g.ReadTimeout {
		errs = append(errs, "gateway.ping_interval must be positive and shorter than gateway.read_timeout")
	}
	if g.MaxMessageBytes < 64 {
		errs = append(errs, fmt.Sprintf("gateway.max_message_bytes must be >= 64, got %d", g.MaxMessageBytes))
	}
	if g.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("gateway.outbox_size must be >= 1, got %d", g.OutboxSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	var errs []string
	if h.GRPCHost == "" {
		errs = append(errs, "health.grpc_host must not be empty")
	}
	if msg := validatePort("health.grpc_port", h.GRPCPort); msg != "" {
		errs = append(errs, msg)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRoom(r RoomConfig) error {
	var errs []string
	if r.CodeLength < 3 || r.CodeLength > 8 {
		errs = append(errs, fmt.Sprintf("room.code_length must be 3-8, got %d", r.CodeLength))
	}
	if r.CodeAttempts < 1 {
		errs = append(errs, fmt.Sprintf("room.code_attempts must be >= 1, got %d", r.CodeAttempts))
	}
	if r.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("room.max_players must be >= 1, got %d", r.MaxPlayers))
	}
	if r.MaxNameLength < 1 {
		errs = append(errs, fmt.Sprintf("room.max_name_length must be >= 1, got %d", r.MaxNameLength))
	}
	if r.DefaultCategory == "" {
		errs = append(errs, "room.default_category must not be empty")
	}
	if r.OfflineGrace < 0 {
		errs = append(errs, "room.offline_grace must not be negative")
	}
	if r.MinReadyPlayers < 1 || r.MinReadyPlayers > r.MaxPlayers {
		errs = append(errs, fmt.Sprintf("room.min_ready_players must be 1-%d, got %d", r.MaxPlayers, r.MinReadyPlayers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWords(w WordsConfig) error {
	if w.Dir == "" {
		return errors.New("words.dir must not be empty")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if msg := validatePort("database.port", d.Port); msg != "" {
		errs = append(errs, msg)
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and IMPOSTOR_ environment
// overrides applied, e.g. IMPOSTOR_ROOM_OFFLINE_GRACE=30s.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("IMPOSTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "standalone")
	v.SetDefault("server.type", "impostor")

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 3000)
	v.SetDefault("gateway.path", "/ws")
	v.SetDefault("gateway.read_timeout", "60s")
	v.SetDefault("gateway.write_timeout", "10s")
	v.SetDefault("gateway.ping_interval", "25s")
	v.SetDefault("gateway.max_message_bytes", 4096)
	v.SetDefault("gateway.outbox_size", 64)
	v.SetDefault("gateway.allowed_origins", []string{})

	v.SetDefault("health.grpc_host", "127.0.0.1")
	v.SetDefault("health.grpc_port", 50051)

	v.SetDefault("room.code_length", 4)
	v.SetDefault("room.code_attempts", 100)
	v.SetDefault("room.max_players", 16)
	v.SetDefault("room.max_name_length", 24)
	v.SetDefault("room.default_category", "General")
	v.SetDefault("room.offline_grace", "5m")
	v.SetDefault("room.auto_start_when_ready", false)
	v.SetDefault("room.min_ready_players", 3)

	v.SetDefault("words.dir", "content/words")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stderr"})
	v.SetDefault("logging.sampling", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "impostor")
	v.SetDefault("database.password", "impostor")
	v.SetDefault("database.name", "impostor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
}
