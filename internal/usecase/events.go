package usecase

import (
	"context"
	"errors"

	"relaychat/internal/domain"
)

type messagePayload struct {
	ID      string `json:"id"`
	ReplyID string `json:"reply_id,omitempty"`
	Retry   bool   `json:"retry,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type configPayload struct {
	Mode          domain.Mode `json:"mode"`
	HasCredential bool        `json:"has_credential"`
}

func publish(ctx context.Context, bus domain.EventBus, t domain.EventType, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(context.WithoutCancel(ctx), domain.NewEvent(t, payload))
}

func publishFailure(ctx context.Context, bus domain.EventBus, prompt domain.Message, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindCanceled {
		return
	}
	publish(ctx, bus, domain.EventMessageFailed, messagePayload{ID: prompt.ID, Kind: string(kind)})
}

// wrap attaches op to err as a *domain.DomainError. Repository errors that are
// already kinded keep their sentinel in the chain; unkinded ones are reported
// as unknown.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DomainError
	if errors.As(err, &de) && de.Op == op {
		return err
	}
	return domain.NewDomainError(op, err, "")
}
