package domain

import "context"

// MessageRepository is the in-memory ordered conversation log.
type MessageRepository interface {
	Append(ctx context.Context, msg Message) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]Message, error)
	// Observe emits the current snapshot immediately and then every change
	// until ctx is done.
	Observe(ctx context.Context) (<-chan []Message, error)
}

// AIGateway asks the remote assistant for a reply to a user message.
type AIGateway interface {
	Ask(ctx context.Context, prompt Message) (Message, error)
}

// ConfigurationRepository reads and writes the persisted configuration.
type ConfigurationRepository interface {
	Get(ctx context.Context) (Configuration, error)
	Save(ctx context.Context, cfg Configuration) error
	// Observe emits the current configuration immediately and then every
	// change until ctx is done. A failed re-read is delivered as an update
	// with Err set rather than dropped.
	Observe(ctx context.Context) (<-chan ConfigurationUpdate, error)
}

// ConfigurationUpdate is one element of the configuration stream.
type ConfigurationUpdate struct {
	Configuration Configuration
	Err           error
}

// DraftStore is a scoped key-value slot for transient, unsent input.
type DraftStore interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}
