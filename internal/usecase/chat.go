// Package usecase holds the application operations invoked by the view models.
// Each operation delegates to one repository call and returns errors as
// *domain.DomainError so the caller can decide on presentation by kind.
package usecase

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"relaychat/internal/domain"
	"relaychat/internal/infra/tracer"
)

// SendMessage records a user message, asks the assistant and records the reply.
type SendMessage struct {
	messages domain.MessageRepository
	gateway  domain.AIGateway
	bus      domain.EventBus // may be nil
	logger   *slog.Logger
}

// NewSendMessage creates the send use case.
func NewSendMessage(messages domain.MessageRepository, gateway domain.AIGateway, bus domain.EventBus, logger *slog.Logger) *SendMessage {
	return &SendMessage{messages: messages, gateway: gateway, bus: bus, logger: logger}
}

// Execute validates text, appends it as a user message so it is visible before
// the reply arrives, then asks the gateway and appends the reply.
// A failed ask leaves the user message in place for a later retry and still
// returns it in Exchange.Prompt.
func (uc *SendMessage) Execute(ctx context.Context, text string) (domain.Exchange, error) {
	const op = "SendMessage.Execute"

	ctx, span := tracer.StartSpan(ctx, "usecase.send_message",
		trace.WithAttributes(tracer.IntAttr("message.length", len(text))),
	)
	defer span.End()

	if domain.IsBlank(text) {
		err := domain.NewDomainError(op, domain.ErrBlankMessage, "")
		tracer.RecordError(span, err)
		return domain.Exchange{}, err
	}

	prompt := domain.NewUserMessage(text)
	if err := uc.messages.Append(ctx, prompt); err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return domain.Exchange{}, err
	}
	span.SetAttributes(tracer.StringAttr("message.id", prompt.ID))

	reply, err := ask(ctx, uc.gateway, uc.messages, prompt)
	if err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		publishFailure(ctx, uc.bus, prompt, err)
		return domain.Exchange{Prompt: prompt}, err
	}

	tracer.SetOK(span)
	publish(ctx, uc.bus, domain.EventMessageSent, messagePayload{ID: prompt.ID, ReplyID: reply.ID})
	uc.logger.Debug("message sent", "id", prompt.ID, "reply", reply.ID)
	return domain.Exchange{Prompt: prompt, Reply: reply}, nil
}

// RetryMessage resends an existing user message without appending it again.
type RetryMessage struct {
	messages domain.MessageRepository
	gateway  domain.AIGateway
	bus      domain.EventBus // may be nil
	logger   *slog.Logger
}

// NewRetryMessage creates the retry use case.
func NewRetryMessage(messages domain.MessageRepository, gateway domain.AIGateway, bus domain.EventBus, logger *slog.Logger) *RetryMessage {
	return &RetryMessage{messages: messages, gateway: gateway, bus: bus, logger: logger}
}

// Execute asks the gateway again for prompt and appends only the reply.
func (uc *RetryMessage) Execute(ctx context.Context, prompt domain.Message) (domain.Message, error) {
	const op = "RetryMessage.Execute"

	ctx, span := tracer.StartSpan(ctx, "usecase.retry_message",
		trace.WithAttributes(tracer.StringAttr("message.id", prompt.ID)),
	)
	defer span.End()

	if prompt.Sender != domain.SenderUser || prompt.ID == "" {
		err := domain.NewDomainError(op, domain.ErrValidation, "only stored user messages can be retried")
		tracer.RecordError(span, err)
		return domain.Message{}, err
	}
	if domain.IsBlank(prompt.Text) {
		err := domain.NewDomainError(op, domain.ErrBlankMessage, "")
		tracer.RecordError(span, err)
		return domain.Message{}, err
	}

	reply, err := ask(ctx, uc.gateway, uc.messages, prompt)
	if err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		publishFailure(ctx, uc.bus, prompt, err)
		return domain.Message{}, err
	}

	tracer.SetOK(span)
	publish(ctx, uc.bus, domain.EventMessageSent, messagePayload{ID: prompt.ID, ReplyID: reply.ID, Retry: true})
	uc.logger.Debug("message retried", "id", prompt.ID, "reply", reply.ID)
	return reply, nil
}

func ask(ctx context.Context, gateway domain.AIGateway, messages domain.MessageRepository, prompt domain.Message) (domain.Message, error) {
	reply, err := gateway.Ask(ctx, prompt)
	if err != nil {
		return domain.Message{}, err
	}
	if reply.ReplyTo == "" {
		reply.ReplyTo = prompt.ID
	}
	if err := messages.Append(ctx, reply); err != nil {
		return domain.Message{}, err
	}
	return reply, nil
}

// ObserveMessages exposes the conversation snapshot stream.
type ObserveMessages struct {
	messages domain.MessageRepository
}

// NewObserveMessages creates the observe use case.
func NewObserveMessages(messages domain.MessageRepository) *ObserveMessages {
	return &ObserveMessages{messages: messages}
}

// Execute returns a stream that yields the current conversation and then
// every change until ctx is done.
func (uc *ObserveMessages) Execute(ctx context.Context) (<-chan []domain.Message, error) {
	const op = "ObserveMessages.Execute"

	_, span := tracer.StartSpan(ctx, "usecase.observe_messages")
	defer span.End()

	ch, err := uc.messages.Observe(ctx)
	if err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return ch, nil
}

// ClearConversation empties the message store.
type ClearConversation struct {
	messages domain.MessageRepository
	bus      domain.EventBus // may be nil
}

// NewClearConversation creates the clear use case.
func NewClearConversation(messages domain.MessageRepository, bus domain.EventBus) *ClearConversation {
	return &ClearConversation{messages: messages, bus: bus}
}

// Execute removes every message.
func (uc *ClearConversation) Execute(ctx context.Context) error {
	const op = "ClearConversation.Execute"

	ctx, span := tracer.StartSpan(ctx, "usecase.clear_conversation")
	defer span.End()

	if err := uc.messages.Clear(ctx); err != nil {
		err = wrap(op, err)
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	publish(ctx, uc.bus, domain.EventConversationCleared, nil)
	return nil
}
