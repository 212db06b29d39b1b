// Package config provides the configuration schema and loader for the
// npcforge editor service.
//
// A config is read from YAML with [Load] or [LoadFromReader], overlaid with
// NPCFORGE_* environment variables by [ApplyEnv] and checked by [Validate].
// [Watcher] reloads the file when it changes and reports a [ConfigDiff].
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the npcforge server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the matching [slog.Level]. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreBackend selects the persistence implementation.
type StoreBackend string

const (
	// StoreMemory keeps entities in process memory only.
	StoreMemory StoreBackend = "memory"

	// StoreFile keeps one YAML zone file per scope under Store.Dir.
	StoreFile StoreBackend = "file"

	// StoreSQLite uses the SQLite database at Store.SQLitePath.
	StoreSQLite StoreBackend = "sqlite"

	// StorePostgres uses the PostgreSQL database at Store.PostgresDSN.
	StorePostgres StoreBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreMemory, StoreFile, StoreSQLite, StorePostgres:
		return true
	}
	return false
}

// Config is the root configuration structure for npcforge.
type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Store      StoreConfig      `yaml:"store" envPrefix:"STORE_"`
	Editor     EditorConfig     `yaml:"editor" envPrefix:"EDITOR_"`
	Resilience ResilienceConfig `yaml:"resilience" envPrefix:"RESILIENCE_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// LogLevel controls verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`

	// ShutdownTimeout bounds graceful shutdown. Default 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects and configures the entity store.
type StoreConfig struct {
	// Backend is one of memory, file, sqlite or postgres. Default "memory".
	Backend StoreBackend `yaml:"backend" env:"BACKEND"`

	// Dir is the zone directory for the file backend.
	Dir string `yaml:"dir" env:"DIR"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`

	// MirrorDir, when set, is a directory of zone files that serves entity
	// lists while the primary backend is unavailable.
	MirrorDir string `yaml:"mirror_dir" env:"MIRROR_DIR"`
}

// EditorConfig holds editor defaults.
type EditorConfig struct {
	// DefaultScope is loaded when the editor starts. Empty loads nothing.
	DefaultScope string `yaml:"default_scope" env:"DEFAULT_SCOPE"`
}

// ResilienceConfig tunes the circuit breaker in front of the store.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures" env:"MAX_FAILURES"`
	ResetTimeout time.Duration `yaml:"reset_timeout" env:"RESET_TIMEOUT"`
	HalfOpenMax  int           `yaml:"half_open_max" env:"HALF_OPEN_MAX"`
}

// TelemetryConfig configures the OpenTelemetry providers.
type TelemetryConfig struct {
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreMemory
	}
	if c.Resilience.MaxFailures == 0 {
		c.Resilience.MaxFailures = 5
	}
	if c.Resilience.ResetTimeout == 0 {
		c.Resilience.ResetTimeout = 30 * time.Second
	}
	if c.Resilience.HalfOpenMax == 0 {
		c.Resilience.HalfOpenMax = 3
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "npcforge"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1
	}
}
