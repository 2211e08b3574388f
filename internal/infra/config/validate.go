package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateRelay(cfg, ve)
	validateStore(cfg, ve)
	validateChat(cfg, ve)
	validateBridge(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateRelay(cfg *Config, ve *ValidationError) {
	r := cfg.Relay
	u, err := url.Parse(r.BaseURL)
	if r.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("relay.base_url must be an http(s) URL, got %q", r.BaseURL)
	}
	if strings.Trim(r.Function, "/") == "" {
		ve.Add("relay.function must not be empty")
	}
	if r.Timeout <= 0 {
		ve.Add("relay.timeout must be > 0")
	}
	if r.ConnTimeout < 0 {
		ve.Add("relay.conn_timeout must be >= 0")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		ve.Add("relay.temperature must be within [0, 2]")
	}
	if r.MaxTokens < 0 {
		ve.Add("relay.max_tokens must be >= 0")
	}
	if r.RequestsPerMinute < 0 {
		ve.Add("relay.requests_per_minute must be >= 0")
	}
	if r.RequestsPerMinute > 0 && r.Burst <= 0 {
		ve.Add("relay.burst must be > 0 when rate limiting is enabled")
	}
	if r.Breaker.Timeout < 0 || r.Breaker.Interval < 0 {
		ve.Add("relay.circuit_breaker durations must be >= 0")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Path == "" {
		ve.Add("store.path must not be empty")
	}
}

func validateChat(cfg *Config, ve *ValidationError) {
	if cfg.Chat.EffectBuffer <= 0 {
		ve.Add("chat.effect_buffer must be > 0")
	}
	if cfg.Chat.SavedFlash <= 0 {
		ve.Add("chat.saved_flash must be > 0")
	}
}

func validateBridge(cfg *Config, ve *ValidationError) {
	if cfg.Bridge.Token != "" && len(cfg.Bridge.Token) < 16 {
		ve.Add("bridge.token must be at least 16 characters")
	}
	if cfg.Bridge.ConnectsPerMinute < 0 {
		ve.Add("bridge.connects_per_minute must be >= 0")
	}
	if cfg.Bridge.ConnectBurst < 0 {
		ve.Add("bridge.connect_burst must be >= 0")
	}
	if cfg.Bridge.Addr == "" {
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Bridge.Addr); err != nil {
		ve.Add("bridge.addr %q is not host:port: %v", cfg.Bridge.Addr, err)
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is not one of text, json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is not supported (stdout, noop)", cfg.Tracer.Exporter)
	}
}
