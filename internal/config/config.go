package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Verbose enables debug logging when true
var Verbose bool

// Config is the top-level configuration for blesync.
type Config struct {
	Sampler      SamplerConfig      `yaml:"sampler"`
	Storage      StorageConfig      `yaml:"storage"`
	Sync         SyncConfig         `yaml:"sync"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	BLE          BLEConfig          `yaml:"ble"`
	Logger       LoggerConfig       `yaml:"logger"`
	HTTP         HTTPConfig         `yaml:"http"`
}

// SamplerConfig controls the reading loop.
type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// StorageConfig selects the persisted key-value backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Path    string `yaml:"path"`    // directory for file, database file for sqlite
	Key     string `yaml:"key"`
}

// SyncConfig configures the remote endpoint the reading log is pushed to.
type SyncConfig struct {
	Transport string        `yaml:"transport"` // "http" or "mqtt"
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"` // 0 = no timeout
	MQTT      MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig is used when Sync.Transport is "mqtt".
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// ConnectivityConfig configures the reachability probe.
type ConnectivityConfig struct {
	CheckURL    string        `yaml:"check_url"`    // empty disables probing
	CheckPeriod time.Duration `yaml:"check_period"`
}

// BLEConfig holds connection settings.
type BLEConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // 0 = no timeout
}

// LoggerConfig holds log output settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	Output string `yaml:"output"` // "stderr", "stdout" or a file path
}

// HTTPConfig configures the optional status server.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// BaseDir returns ~/.blesync.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".blesync"), nil
}

// DefaultPath returns the default config file path (~/.blesync/config.yaml).
func DefaultPath() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Defaults returns a Config with every field set to its default.
func Defaults() *Config {
	storagePath := filepath.Join(".blesync", "data")
	if base, err := BaseDir(); err == nil {
		storagePath = filepath.Join(base, "data")
	}

	return &Config{
		Sampler: SamplerConfig{Interval: 5 * time.Second},
		Storage: StorageConfig{
			Backend: "file",
			Path:    storagePath,
			Key:     "bluetoothData",
		},
		Sync: SyncConfig{
			Transport: "http",
			URL:       "https://your-cloud-api.com/sync",
			MQTT: MQTTConfig{
				Topic:    "blesync/readings",
				ClientID: "blesync",
			},
		},
		Connectivity: ConnectivityConfig{
			CheckURL:    "https://1.1.1.1",
			CheckPeriod: 30 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps BLESYNC_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BLESYNC_SAMPLER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BLESYNC_SAMPLER_INTERVAL: %w", err)
		}
		cfg.Sampler.Interval = d
	}
	if v := os.Getenv("BLESYNC_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("BLESYNC_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("BLESYNC_SYNC_TRANSPORT"); v != "" {
		cfg.Sync.Transport = v
	}
	if v := os.Getenv("BLESYNC_SYNC_URL"); v != "" {
		cfg.Sync.URL = v
	}
	if v := os.Getenv("BLESYNC_MQTT_BROKER"); v != "" {
		cfg.Sync.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv("BLESYNC_CHECK_URL"); ok {
		cfg.Connectivity.CheckURL = v
	}
	if v := os.Getenv("BLESYNC_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BLESYNC_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	return nil
}

// Validate checks the config for values the program cannot run with.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Sampler.Interval <= 0 {
		errs = append(errs, "sampler.interval must be positive")
	}
	switch cfg.Storage.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q: want file or sqlite", cfg.Storage.Backend))
	}
	if cfg.Storage.Path == "" {
		errs = append(errs, "storage.path is required")
	}
	if cfg.Storage.Key == "" {
		errs = append(errs, "storage.key is required")
	}
	switch cfg.Sync.Transport {
	case "http":
		if cfg.Sync.URL == "" {
			errs = append(errs, "sync.url is required for http transport")
		}
	case "mqtt":
		if cfg.Sync.MQTT.Broker == "" {
			errs = append(errs, "sync.mqtt.broker is required for mqtt transport")
		}
		if cfg.Sync.MQTT.Topic == "" {
			errs = append(errs, "sync.mqtt.topic is required for mqtt transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("sync.transport %q: want http or mqtt", cfg.Sync.Transport))
	}
	if cfg.Sync.Timeout < 0 {
		errs = append(errs, "sync.timeout must not be negative")
	}
	if cfg.BLE.ConnectTimeout < 0 {
		errs = append(errs, "ble.connect_timeout must not be negative")
	}
	if cfg.Connectivity.CheckURL != "" && cfg.Connectivity.CheckPeriod <= 0 {
		errs = append(errs, "connectivity.check_period must be positive when check_url is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
