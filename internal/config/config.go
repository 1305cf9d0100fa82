// Package config loads knol settings from defaults, an optional YAML file,
// .env, KNOL_ environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "KNOL_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Review  ReviewConfig  `koanf:"review"`
	Sync    SyncConfig    `koanf:"sync"`
	NATS    NATSConfig    `koanf:"nats"`
	Log     LogConfig     `koanf:"log"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	RateLimit      int           `koanf:"rate_limit" validate:"min=0"` // requests per minute per IP, 0 disables
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"min=0"`
}

type StorageConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type ReviewConfig struct {
	MaxAttempts int `koanf:"max_attempts" validate:"min=1,max=20"`
	QueueLimit  int `koanf:"queue_limit" validate:"min=1,max=1000"`
}

type SyncConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// NATSConfig enables review events when URL is set.
type NATSConfig struct {
	URL     string `koanf:"url" validate:"omitempty,url"`
	Token   string `koanf:"token"`
	Subject string `koanf:"subject" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimit:      120,
			RequestTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{Driver: "sqlite", DSN: "knol.db"},
		Review:  ReviewConfig{MaxAttempts: 3, QueueLimit: 20},
		Sync:    SyncConfig{ReposDir: "repos"},
		NATS:    NATSConfig{Subject: "knol.card.reviewed"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// RegisterFlags adds the overridable settings to flags, named by their dotted
// config key. Flag defaults mirror Default so an unset flag changes nothing.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "path to a YAML config file")
	flags.String("server.addr", d.Server.Addr, "HTTP listen address")
	flags.Int("server.rate_limit", d.Server.RateLimit, "requests per minute per client IP, 0 disables")
	flags.Duration("server.request_timeout", d.Server.RequestTimeout, "per-request timeout")
	flags.String("storage.driver", d.Storage.Driver, "storage backend: sqlite or postgres")
	flags.String("storage.dsn", d.Storage.DSN, "SQLite file path or PostgreSQL connection string")
	flags.String("sync.repos_dir", d.Sync.ReposDir, "directory for cloned git sources")
	flags.String("nats.url", d.NATS.URL, "NATS server URL for review events")
	flags.String("log.level", d.Log.Level, "log level: debug, info, warn, error")
	flags.String("log.format", d.Log.Format, "log format: text or json")
}

// Load builds the configuration. flags may be nil. When flags carries a
// --config value it takes precedence over path.
func Load(flags *pflag.FlagSet, path string) (Config, error) {
	k := koanf.New(".")

	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && p != "" {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps KNOL_SERVER__RATE_LIMIT to server.rate_limit.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
