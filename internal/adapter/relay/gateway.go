package relay

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"relaychat/internal/domain"
	"relaychat/internal/infra/config"
	"relaychat/internal/infra/tracer"
)

// ConfigurationReader provides the current mode and credential.
type ConfigurationReader interface {
	Get(ctx context.Context) (domain.Configuration, error)
}

// Gateway implements domain.AIGateway on top of the relay callable. It
// establishes the caller identity from the persisted credential before every
// call and maps every failure onto the domain taxonomy.
type Gateway struct {
	caller Caller
	config ConfigurationReader
	params Parameters
	logger *slog.Logger
}

// NewGateway creates the AI gateway.
func NewGateway(caller Caller, cfgReader ConfigurationReader, cfg config.RelayConfig, logger *slog.Logger) *Gateway {
	var params Parameters
	if cfg.Temperature != nil {
		t := *cfg.Temperature
		params.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		params.MaxTokens = &n
	}
	return &Gateway{caller: caller, config: cfgReader, params: params, logger: logger}
}

// Ask implements domain.AIGateway.
func (g *Gateway) Ask(ctx context.Context, prompt domain.Message) (domain.Message, error) {
	const op = "Gateway.Ask"

	ctx, span := tracer.StartSpan(ctx, "relay.ask",
		trace.WithAttributes(tracer.StringAttr("message.id", prompt.ID)),
	)
	defer span.End()

	if domain.IsBlank(prompt.Text) {
		err := domain.NewDomainError(op, domain.ErrBlankMessage, "")
		tracer.RecordError(span, err)
		return domain.Message{}, err
	}

	token, err := g.identity(ctx)
	if err != nil {
		err = Classify(op, err)
		tracer.RecordError(span, err)
		return domain.Message{}, err
	}

	resp, err := g.caller.Call(ctx, token, Request{Message: prompt.Text, Parameters: g.params})
	if err != nil {
		err = Classify(op, err)
		tracer.RecordError(span, err)
		if domain.KindOf(err) != domain.KindCanceled {
			g.logger.Warn("relay call failed", "kind", string(domain.KindOf(err)), "error", err)
		}
		return domain.Message{}, err
	}

	tracer.SetOK(span)
	return domain.NewAssistantMessage(resp.Text, prompt.ID), nil
}

// identity returns the bearer token for the call, refusing offline mode and
// a missing credential before any network traffic.
func (g *Gateway) identity(ctx context.Context) (string, error) {
	cfg, err := g.config.Get(ctx)
	if err != nil {
		return "", err
	}
	if cfg.Mode == domain.ModeOffline {
		return "", domain.ErrOfflineMode
	}
	if !cfg.HasCredential() {
		return "", domain.ErrMissingIdentity
	}
	return cfg.Credential, nil
}

var _ domain.AIGateway = (*Gateway)(nil)
