package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"relaychat/internal/adapter/store"
	"relaychat/internal/domain"
	"relaychat/internal/infra/config"
	"relaychat/internal/infra/logger"
	"relaychat/internal/security"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Store", Fn: checkStore},
		{Name: "Credential", Fn: checkCredential},
		{Name: "Relay", Fn: checkRelay},
		{Name: "Bridge", Fn: checkBridge},
		{Name: "Tracing", Fn: checkTracer},
	}

	fmt.Println("relaychat doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
}

// checkConfigFile reports whether the config file exists and is valid. A
// missing file only warns: defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			var ve *config.ValidationError
			if errors.As(cfgErr, &ve) {
				return CheckResult{
					Status:  StatusFail,
					Message: fmt.Sprintf("invalid config: %s", strings.Join(ve.Errors, "; ")),
					Fix:     fmt.Sprintf("Edit %s", cfgPath),
				}
			}
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Check %s syntax and permissions (0600)", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkStore verifies the preferences database can be opened.
func checkStore(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if err := ensureDir(cfg.Store.Path); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot create %s: %v", filepath.Dir(cfg.Store.Path), err),
		}
	}
	prefs, err := store.OpenPreferences(cfg.Store.Path)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Set store.path to a writable location",
		}
	}
	prefs.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("preferences at %s", cfg.Store.Path)}
}

// checkCredential reads the stored configuration and reports the mode and
// whether a credential is set.
func checkCredential(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	prefs, err := store.OpenPreferences(cfg.Store.Path)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "store unavailable"}
	}
	defer prefs.Close()

	var sealer *security.Sealer
	if cfg.Store.Passphrase != "" {
		if sealer, err = security.NewSealer(cfg.Store.Passphrase); err != nil {
			return CheckResult{Status: StatusFail, Message: err.Error()}
		}
		defer sealer.Zeroize()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stored, err := store.NewConfigurationStore(prefs, sealer, logger.Discard()).Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return CheckResult{
				Status:  StatusFail,
				Message: "stored credential cannot be decrypted",
				Fix:     "Set RELAYCHAT_STORE_KEY to the passphrase used when it was saved",
			}
		}
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	if !stored.HasCredential() {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("mode %s, no credential", stored.Mode),
			Fix:     "Open Settings (Ctrl+S) and save a credential",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("mode %s, credential set (encrypted: %t)", stored.Mode, sealer != nil),
	}
}

// checkRelay tests whether the relay endpoint answers.
func checkRelay(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(cfg.Relay.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("bad relay URL: %v", err)}
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check relay.base_url and that the relay is running",
		}
	}
	resp.Body.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", endpoint, latency.Milliseconds()),
	}
}

// checkBridge verifies the bridge address is free and a token is set.
func checkBridge(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	ln, err := net.Listen("tcp", cfg.Bridge.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s unavailable: %v", cfg.Bridge.Addr, err),
			Fix:     "Change bridge.addr or stop the process using it",
		}
	}
	ln.Close()

	if cfg.Bridge.Token == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s free, no token set", cfg.Bridge.Addr),
			Fix:     "Set RELAYCHAT_BRIDGE_TOKEN before running 'relaychat serve'",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s free, token set", cfg.Bridge.Addr)}
}

// checkTracer warns when spans would be printed over the terminal UI.
func checkTracer(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if !cfg.Tracer.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	if cfg.Tracer.Exporter == "stdout" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "stdout exporter draws over the chat screen",
			Fix:     "Use the stdout exporter with 'relaychat serve' only",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("exporter %s", cfg.Tracer.Exporter)}
}
