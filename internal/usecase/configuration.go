package usecase

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"relaychat/internal/domain"
	"relaychat/internal/infra/tracer"
)

// SaveConfiguration validates and persists a full configuration value.
type SaveConfiguration struct {
	repo domain.ConfigurationRepository
	bus  domain.EventBus // may be nil
}

// NewSaveConfiguration creates the save use case.
func NewSaveConfiguration(repo domain.ConfigurationRepository, bus domain.EventBus) *SaveConfiguration {
	return &SaveConfiguration{repo: repo, bus: bus}
}

// Execute trims and validates the credential and the mode, then writes cfg.
// A malformed value never reaches the repository.
func (uc *SaveConfiguration) Execute(ctx context.Context, cfg domain.Configuration) error {
	const op = "SaveConfiguration.Execute"

	ctx, span := tracer.StartSpan(ctx, "usecase.save_configuration",
		trace.WithAttributes(tracer.StringAttr("config.mode", string(cfg.Mode))),
	)
	defer span.End()

	cfg.Credential = strings.TrimSpace(cfg.Credential)
	if err := domain.ValidateCredential(cfg.Credential); err != nil {
		err = domain.NewDomainError(op, err, "")
		tracer.RecordError(span, err)
		return err
	}
	mode, err := domain.ParseMode(string(cfg.Mode))
	if err != nil {
		err = domain.NewDomainError(op, err, "")
		tracer.RecordError(span, err)
		return err
	}
	cfg.Mode = mode

	if err := uc.repo.Save(ctx, cfg); err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	publish(ctx, uc.bus, domain.EventConfigurationSaved, configPayload{Mode: cfg.Mode, HasCredential: cfg.HasCredential()})
	return nil
}

// ChangeMode switches the persisted mode, keeping the credential.
type ChangeMode struct {
	repo domain.ConfigurationRepository
	bus  domain.EventBus // may be nil
}

// NewChangeMode creates the change-mode use case.
func NewChangeMode(repo domain.ConfigurationRepository, bus domain.EventBus) *ChangeMode {
	return &ChangeMode{repo: repo, bus: bus}
}

// Execute reads the current configuration and writes it back with mode.
func (uc *ChangeMode) Execute(ctx context.Context, mode domain.Mode) error {
	const op = "ChangeMode.Execute"

	ctx, span := tracer.StartSpan(ctx, "usecase.change_mode",
		trace.WithAttributes(tracer.StringAttr("config.mode", string(mode))),
	)
	defer span.End()

	parsed, err := domain.ParseMode(string(mode))
	if err != nil {
		err = domain.NewDomainError(op, err, "")
		tracer.RecordError(span, err)
		return err
	}

	current, err := uc.repo.Get(ctx)
	if err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return err
	}
	if current.Mode == parsed {
		tracer.SetOK(span)
		return nil
	}
	current.Mode = parsed
	if err := uc.repo.Save(ctx, current); err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	publish(ctx, uc.bus, domain.EventModeChanged, configPayload{Mode: parsed, HasCredential: current.HasCredential()})
	return nil
}

// ObserveConfiguration exposes the configuration stream.
type ObserveConfiguration struct {
	repo domain.ConfigurationRepository
}

// NewObserveConfiguration creates the observe-configuration use case.
func NewObserveConfiguration(repo domain.ConfigurationRepository) *ObserveConfiguration {
	return &ObserveConfiguration{repo: repo}
}

// Execute returns a stream yielding the current configuration and then every
// change. Read failures arrive as updates with Err set, already wrapped.
func (uc *ObserveConfiguration) Execute(ctx context.Context) (<-chan domain.ConfigurationUpdate, error) {
	const op = "ObserveConfiguration.Execute"

	_, span := tracer.StartSpan(ctx, "usecase.observe_configuration")
	defer span.End()

	src, err := uc.repo.Observe(ctx)
	if err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)

	out := make(chan domain.ConfigurationUpdate, 1)
	go func() {
		defer close(out)
		for u := range src {
			if u.Err != nil {
				u.Err = wrap(op, u.Err)
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
