// Package store holds the local repositories: the in-memory conversation log,
// the SQLite-backed configuration and the saved-state draft slot.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relaychat/internal/domain"
	"relaychat/internal/infra/watch"
)

// MessageStore is the in-memory, append-only, clearable conversation log.
// Snapshots handed out are never mutated afterwards.
type MessageStore struct {
	msgs   *watch.Value[[]domain.Message]
	logger *slog.Logger
}

// NewMessageStore creates a message store, optionally seeded with history.
func NewMessageStore(logger *slog.Logger, seed ...domain.Message) *MessageStore {
	initial := make([]domain.Message, len(seed))
	copy(initial, seed)
	return &MessageStore{
		msgs:   watch.New(initial),
		logger: logger,
	}
}

// Append adds msg at the end of the log.
func (s *MessageStore) Append(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapOp("MessageStore.Append", err)
	}
	if msg.ID == "" {
		return domain.NewDomainError("MessageStore.Append", domain.ErrValidation, "message has no id")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var dup bool
	s.msgs.Update(func(cur []domain.Message) []domain.Message {
		for _, m := range cur {
			if m.ID == msg.ID {
				dup = true
				return cur
			}
		}
		next := make([]domain.Message, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, msg)
	})
	if dup {
		return domain.NewDomainError("MessageStore.Append", domain.ErrValidation, fmt.Sprintf("duplicate id %s", msg.ID))
	}

	s.logger.Debug("message appended", "id", msg.ID, "sender", string(msg.Sender))
	return nil
}

// Clear removes every message.
func (s *MessageStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapOp("MessageStore.Clear", err)
	}
	s.msgs.Set([]domain.Message{})
	s.logger.Debug("conversation cleared")
	return nil
}

// List returns the current snapshot.
func (s *MessageStore) List(ctx context.Context) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapOp("MessageStore.List", err)
	}
	return s.msgs.Get(), nil
}

// Observe streams snapshots until ctx is done.
func (s *MessageStore) Observe(ctx context.Context) (<-chan []domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapOp("MessageStore.Observe", err)
	}
	return s.msgs.Subscribe(ctx), nil
}

var _ domain.MessageRepository = (*MessageStore)(nil)
