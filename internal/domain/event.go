package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ChatEvent is a user intent raised on the chat screen.
type ChatEvent interface {
	chatEvent()
}

// SendMessage asks to send Text to the assistant.
type SendMessage struct{ Text string }

// ClearConversation empties the conversation.
type ClearConversation struct{}

// DismissError clears the error banner.
type DismissError struct{}

// RetryMessage resends the most recent unanswered user message.
type RetryMessage struct{}

// NavigateToSettings opens the settings screen.
type NavigateToSettings struct{}

// ScreenLoaded signals that the chat screen became visible.
type ScreenLoaded struct{}

func (SendMessage) chatEvent()        {}
func (ClearConversation) chatEvent()  {}
func (DismissError) chatEvent()       {}
func (RetryMessage) chatEvent()       {}
func (NavigateToSettings) chatEvent() {}
func (ScreenLoaded) chatEvent()       {}

// SettingsEvent is a user intent raised on the settings screen.
type SettingsEvent interface {
	settingsEvent()
}

// SettingsLoaded signals that the settings screen became visible.
type SettingsLoaded struct{}

// UpdateCredential records in-progress credential text.
type UpdateCredential struct{ Text string }

// SaveCredential persists the credential draft.
type SaveCredential struct{}

// ChangeMode switches between online and offline.
type ChangeMode struct{ Mode Mode }

// NavigateBack leaves the settings screen.
type NavigateBack struct{}

func (SettingsLoaded) settingsEvent()   {}
func (UpdateCredential) settingsEvent() {}
func (SaveCredential) settingsEvent()   {}
func (ChangeMode) settingsEvent()       {}
func (NavigateBack) settingsEvent()     {}

// EventType identifies a lifecycle notification published on the event bus.
type EventType string

const (
	EventMessageSent         EventType = "message.sent"
	EventMessageFailed       EventType = "message.failed"
	EventConversationCleared EventType = "conversation.cleared"
	EventConfigurationSaved  EventType = "config.saved"
	EventModeChanged         EventType = "config.mode_changed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus is an in-process publish/subscribe channel for lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
	Close()
}

// NewEvent builds an event with the current time and a JSON payload.
// A payload that cannot be marshalled is omitted.
func NewEvent(t EventType, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}
