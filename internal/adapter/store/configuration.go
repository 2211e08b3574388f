package store

import (
	"context"
	"fmt"
	"log/slog"

	"relaychat/internal/domain"
	"relaychat/internal/security"
)

// Preference keys holding the configuration.
const (
	prefMode       = "config.mode"
	prefCredential = "config.credential"
)

// ConfigurationStore is the configuration gateway over Preferences. When a
// sealer is supplied the credential is encrypted at rest.
type ConfigurationStore struct {
	prefs  *Preferences
	sealer *security.Sealer // nil = plaintext
	logger *slog.Logger
}

// NewConfigurationStore creates a configuration gateway. sealer may be nil.
func NewConfigurationStore(prefs *Preferences, sealer *security.Sealer, logger *slog.Logger) *ConfigurationStore {
	return &ConfigurationStore{prefs: prefs, sealer: sealer, logger: logger}
}

// Get reads the persisted configuration, falling back to defaults for
// missing keys. Any storage or decryption failure is a configuration error.
func (s *ConfigurationStore) Get(ctx context.Context) (domain.Configuration, error) {
	cfg := domain.DefaultConfiguration()

	mode, ok, err := s.prefs.Get(ctx, prefMode)
	if err != nil {
		return cfg, s.ioError("ConfigurationStore.Get", err)
	}
	if ok {
		m, err := domain.ParseMode(mode)
		if err != nil {
			return cfg, domain.NewDomainError("ConfigurationStore.Get", domain.ErrConfiguration, fmt.Sprintf("stored mode %q is invalid", mode))
		}
		cfg.Mode = m
	}

	cred, ok, err := s.prefs.Get(ctx, prefCredential)
	if err != nil {
		return cfg, s.ioError("ConfigurationStore.Get", err)
	}
	if ok {
		if security.IsSealed(cred) && s.sealer == nil {
			return cfg, domain.NewDomainError("ConfigurationStore.Get", domain.ErrConfiguration, "credential is encrypted but no store key is set")
		}
		if s.sealer != nil {
			plain, err := s.sealer.Open(cred)
			if err != nil {
				return cfg, domain.NewDomainError("ConfigurationStore.Get", domain.ErrConfiguration, "credential cannot be decrypted")
			}
			cred = plain
		}
		cfg.Credential = cred
	}
	return cfg, nil
}

// Save writes the full configuration value.
func (s *ConfigurationStore) Save(ctx context.Context, cfg domain.Configuration) error {
	cred := cfg.Credential
	if cred != "" && s.sealer != nil {
		sealed, err := s.sealer.Seal(cred)
		if err != nil {
			return domain.NewDomainError("ConfigurationStore.Save", domain.ErrConfiguration, "credential cannot be encrypted")
		}
		cred = sealed
	}

	err := s.prefs.SetAll(ctx, map[string]string{
		prefMode:       string(cfg.Mode),
		prefCredential: cred,
	})
	if err != nil {
		return s.ioError("ConfigurationStore.Save", err)
	}
	s.logger.Debug("configuration saved", "mode", string(cfg.Mode), "credential_set", cfg.HasCredential())
	return nil
}

// Observe reads the configuration once synchronously, then re-reads after
// every preferences write until ctx is done.
func (s *ConfigurationStore) Observe(ctx context.Context) (<-chan domain.ConfigurationUpdate, error) {
	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}

	revs := s.prefs.Watch(ctx)
	out := make(chan domain.ConfigurationUpdate, 1)
	go func() {
		defer close(out)
		for range revs {
			cfg, err := s.Get(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.logger.Warn("configuration re-read failed", "error", err)
			}
			select {
			case out <- domain.ConfigurationUpdate{Configuration: cfg, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ioError keeps the storage cause in the chain so cancellation stays detectable.
func (s *ConfigurationStore) ioError(op string, err error) error {
	return domain.NewDomainError(op, fmt.Errorf("%w: %w", domain.ErrConfiguration, err), "")
}

var _ domain.ConfigurationRepository = (*ConfigurationStore)(nil)
