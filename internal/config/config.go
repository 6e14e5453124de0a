package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/agentoven/promptplane/internal/validation"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: PROMPTPLANE_CACHE__DRIVER sets cache.driver.
const EnvPrefix = "PROMPTPLANE_"

// DefaultPath is read when PROMPTPLANE_CONFIG is unset. A missing file is
// not an error.
const DefaultPath = "promptplane.yaml"

// Config holds all configuration for the prompt plane.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Store     StoreConfig     `koanf:"store"`
	Cache     CacheConfig     `koanf:"cache"`
	Objects   ObjectsConfig   `koanf:"objects"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	CoachAPI  CoachAPIConfig  `koanf:"coach_api"`
	Templates TemplatesConfig `koanf:"templates"`
	Models    ModelsConfig    `koanf:"models"`
}

type ServerConfig struct {
	Port    int    `koanf:"port" validate:"gt=0,lte=65535"`
	Version string `koanf:"version"`

	// AdminKeys guard every admin write. Empty leaves the admin API open.
	AdminKeys []string `koanf:"admin_keys" validate:"dive,min=16"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	ServiceName  string `koanf:"service_name"`
}

// StoreConfig selects the configuration store and the template metadata
// store independently.
type StoreConfig struct {
	Configs        string `koanf:"configs" validate:"oneof=memory postgres"`
	Templates      string `koanf:"templates" validate:"oneof=memory sqlite"`
	PostgresURL    string `koanf:"postgres_url" validate:"required_if=Configs postgres"`
	SQLitePath     string `koanf:"sqlite_path" validate:"required_if=Templates sqlite"`
	MaxConnections int32  `koanf:"max_connections" validate:"gte=0"`
	SnapshotDir    string `koanf:"snapshot_dir"` // memory driver only; empty disables persistence
}

type CacheConfig struct {
	Driver     string        `koanf:"driver" validate:"oneof=memory redis"`
	RedisURL   string        `koanf:"redis_url" validate:"required_if=Driver redis"`
	TTL        time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxEntries int64         `koanf:"max_entries" validate:"gt=0"`
}

type ObjectsConfig struct {
	Driver string `koanf:"driver" validate:"oneof=os mem"`
	Root   string `koanf:"root" validate:"required_if=Driver os"`
}

type RetrievalConfig struct {
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxParallel int           `koanf:"max_parallel" validate:"gte=0"`
}

type CoachAPIConfig struct {
	BaseURL    string        `koanf:"base_url" validate:"required,url"`
	APIKey     string        `koanf:"api_key"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryCount int           `koanf:"retry_count" validate:"gte=0"`
}

type TemplatesConfig struct {
	BodyCacheSize int `koanf:"body_cache_size" validate:"gte=0"`
}

type ModelsConfig struct {
	OverridesPath string `koanf:"overrides_path"` // JSON array of model capabilities
}

// Default returns the configuration used when nothing overrides it: every
// backend in-process, suitable for local development.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, Version: "0.1.0"},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{OTLPEndpoint: "localhost:4317", ServiceName: "promptplane"},
		Store: StoreConfig{
			Configs:        "memory",
			Templates:      "memory",
			SQLitePath:     "promptplane.db",
			MaxConnections: 10,
		},
		Cache:     CacheConfig{Driver: "memory", TTL: 5 * time.Minute, MaxEntries: 10_000},
		Objects:   ObjectsConfig{Driver: "os", Root: "data/templates"},
		Retrieval: RetrievalConfig{Timeout: 5 * time.Second, MaxParallel: 8},
		CoachAPI: CoachAPIConfig{
			BaseURL:    "http://localhost:9000",
			Timeout:    10 * time.Second,
			RetryCount: 2,
		},
		Templates: TemplatesConfig{BodyCacheSize: 256},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// PROMPTPLANE_CONFIG (or DefaultPath) and PROMPTPLANE_* overrides, then
// validates it.
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks field ranges and driver-specific requirements.
func (c *Config) Validate() error {
	if err := validation.New().Struct("config", c); err != nil {
		return err
	}
	return nil
}
