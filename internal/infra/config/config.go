package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Relay  RelayConfig  `yaml:"relay"`
	Store  StoreConfig  `yaml:"store"`
	Chat   ChatConfig   `yaml:"chat"`
	Bridge BridgeConfig `yaml:"bridge"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// RelayConfig holds the remote AI relay settings.
type RelayConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Function          string        `yaml:"function"`
	ConnTimeout       time.Duration `yaml:"conn_timeout"`
	Timeout           time.Duration `yaml:"timeout"`
	Temperature       *float64      `yaml:"temperature,omitempty"`
	MaxTokens         int           `yaml:"max_tokens,omitempty"`
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 = unlimited
	Burst             int           `yaml:"burst"`
	Breaker           BreakerConfig `yaml:"circuit_breaker"`
}

// BreakerConfig configures the relay circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file, ":memory:" for a throwaway store
	// Passphrase encrypts the credential at rest. Prefer RELAYCHAT_STORE_KEY
	// over putting it in the file.
	Passphrase string `yaml:"passphrase,omitempty"`
}

// ChatConfig holds view-model tuning.
type ChatConfig struct {
	EffectBuffer int           `yaml:"effect_buffer"`
	SavedFlash   time.Duration `yaml:"saved_flash"`
	Markdown     bool          `yaml:"markdown"`
}

// BridgeConfig holds the WebSocket presentation bridge settings.
// An empty Token accepts every local client.
type BridgeConfig struct {
	Addr              string `yaml:"addr"`
	Token             string `yaml:"token"`
	ConnectsPerMinute int    `yaml:"connects_per_minute"` // 0 = unlimited
	ConnectBurst      int    `yaml:"connect_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "relaychat")
	}
	return "./data"
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Relay: RelayConfig{
			BaseURL:           "http://localhost:5001",
			Function:          "chat",
			ConnTimeout:       10 * time.Second,
			Timeout:           60 * time.Second,
			RequestsPerMinute: 30,
			Burst:             3,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Store: StoreConfig{
			Path: filepath.Join(defaultDataDir(), "relaychat.db"),
		},
		Chat: ChatConfig{
			EffectBuffer: 16,
			SavedFlash:   2 * time.Second,
			Markdown:     true,
		},
		Bridge: BridgeConfig{
			Addr:              "127.0.0.1:8787",
			ConnectsPerMinute: 30,
			ConnectBurst:      5,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env overrides and validates.
// A missing file is not an error: defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overlays RELAYCHAT_* environment variables onto cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAYCHAT_RELAY_BASE_URL"); v != "" {
		cfg.Relay.BaseURL = v
	}
	if v := os.Getenv("RELAYCHAT_RELAY_FUNCTION"); v != "" {
		cfg.Relay.Function = v
	}
	if v := os.Getenv("RELAYCHAT_RELAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Relay.Timeout = d
		}
	}
	if v := os.Getenv("RELAYCHAT_RELAY_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Relay.Temperature = &f
		}
	}
	if v := os.Getenv("RELAYCHAT_RELAY_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Relay.MaxTokens = n
		}
	}
	if v := os.Getenv("RELAYCHAT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("RELAYCHAT_STORE_KEY"); v != "" {
		cfg.Store.Passphrase = v
	}
	if v := os.Getenv("RELAYCHAT_BRIDGE_ADDR"); v != "" {
		cfg.Bridge.Addr = v
	}
	if v := os.Getenv("RELAYCHAT_BRIDGE_TOKEN"); v != "" {
		cfg.Bridge.Token = v
	}
	if v := os.Getenv("RELAYCHAT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("RELAYCHAT_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("RELAYCHAT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("RELAYCHAT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable or executable)
	if mode&0o033 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
