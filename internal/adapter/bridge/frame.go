package bridge

import (
	"encoding/json"
	"fmt"

	"relaychat/internal/domain"
)

// FrameType identifies the kind of frame sent over the WebSocket connection.
type FrameType string

const (
	// Server to client.
	FrameTypeState  FrameType = "state"
	FrameTypeEffect FrameType = "effect"
	FrameTypeDraft  FrameType = "draft"
	FrameTypeError  FrameType = "error"
	FrameTypeNotice FrameType = "notice"

	// Client to server. Draft frames flow both ways.
	FrameTypeEvent FrameType = "event"
)

// Frame is the envelope exchanged between client and server over WebSocket.
type Frame struct {
	Type    FrameType       `json:"type"`
	Event   string          `json:"event,omitempty"`   // chat event name (event only)
	Text    string          `json:"text,omitempty"`    // event argument or draft text (client only)
	Payload json.RawMessage `json:"payload,omitempty"` // server frames
}

// Chat event names accepted in event frames.
const (
	EventScreenLoaded       = "screen_loaded"
	EventSendMessage        = "send_message"
	EventClearConversation  = "clear_conversation"
	EventDismissError       = "dismiss_error"
	EventRetryMessage       = "retry_message"
	EventNavigateToSettings = "navigate_to_settings"
)

// ParseEvent converts an event frame into a chat event.
func ParseEvent(name, text string) (domain.ChatEvent, error) {
	switch name {
	case EventScreenLoaded:
		return domain.ScreenLoaded{}, nil
	case EventSendMessage:
		return domain.SendMessage{Text: text}, nil
	case EventClearConversation:
		return domain.ClearConversation{}, nil
	case EventDismissError:
		return domain.DismissError{}, nil
	case EventRetryMessage:
		return domain.RetryMessage{}, nil
	case EventNavigateToSettings:
		return domain.NavigateToSettings{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, name)
	}
}

// EventName is the inverse of ParseEvent. It returns "" for a nil event.
func EventName(e domain.ChatEvent) string {
	switch e.(type) {
	case domain.ScreenLoaded:
		return EventScreenLoaded
	case domain.SendMessage:
		return EventSendMessage
	case domain.ClearConversation:
		return EventClearConversation
	case domain.DismissError:
		return EventDismissError
	case domain.RetryMessage:
		return EventRetryMessage
	case domain.NavigateToSettings:
		return EventNavigateToSettings
	default:
		return ""
	}
}

// StateView is the wire form of a conversation state.
type StateView struct {
	State        string           `json:"state"`
	Messages     []domain.Message `json:"messages,omitempty"`
	IsProcessing bool             `json:"is_processing,omitempty"`
	Error        string           `json:"error,omitempty"`
	Recoverable  bool             `json:"recoverable,omitempty"`
}

// NewStateView flattens s for the wire.
func NewStateView(s domain.ConversationState) StateView {
	v := StateView{State: domain.StateName(s)}
	switch st := s.(type) {
	case domain.Success:
		v.Messages = st.Messages
		v.IsProcessing = st.IsProcessing
		v.Error = st.Error
	case domain.Failed:
		v.Error = st.Message
		v.Recoverable = st.Recoverable
	}
	return v
}

// EffectView is the wire form of an effect.
type EffectView struct {
	Kind        string `json:"kind"`
	Text        string `json:"text,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
	Action      string `json:"action,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// NewEffectView flattens e for the wire.
func NewEffectView(e domain.Effect) EffectView {
	switch ef := e.(type) {
	case domain.ShowToast:
		return EffectView{Kind: "toast", Text: ef.Text}
	case domain.ShowSnackbar:
		return EffectView{Kind: "snackbar", Text: ef.Text, ActionLabel: ef.ActionLabel, Action: EventName(ef.Action)}
	case domain.Navigate:
		return EffectView{Kind: "navigate", Destination: string(ef.Destination)}
	default:
		return EffectView{Kind: "unknown"}
	}
}

type draftView struct {
	Text string `json:"text"`
}

type errorView struct {
	Message string `json:"message"`
}

func newFrame(t FrameType, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s frame: %w", t, err)
	}
	return Frame{Type: t, Payload: data}, nil
}
