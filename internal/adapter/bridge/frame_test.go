package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
)

func TestParseEventRoundTrip(t *testing.T) {
	events := []domain.ChatEvent{
		domain.ScreenLoaded{},
		domain.SendMessage{Text: "hi"},
		domain.ClearConversation{},
		domain.DismissError{},
		domain.RetryMessage{},
		domain.NavigateToSettings{},
	}
	for _, e := range events {
		name := EventName(e)
		require.NotEmpty(t, name, "%T", e)
		text := ""
		if sm, ok := e.(domain.SendMessage); ok {
			text = sm.Text
		}
		got, err := ParseEvent(name, text)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestParseEventUnknown(t *testing.T) {
	_, err := ParseEvent("reboot", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestNewStateView(t *testing.T) {
	msg := domain.NewUserMessage("hi")
	tests := []struct {
		name  string
		state domain.ConversationState
		want  StateView
	}{
		{"initial", domain.Initial{}, StateView{State: "initial"}},
		{"loading", domain.Loading{}, StateView{State: "loading"}},
		{"success", domain.Success{Messages: []domain.Message{msg}, IsProcessing: true, Error: "Connection Problem: try again"},
			StateView{State: "success", Messages: []domain.Message{msg}, IsProcessing: true, Error: "Connection Problem: try again"}},
		{"failed", domain.Failed{Message: "Access Denied: no", Recoverable: false},
			StateView{State: "error", Error: "Access Denied: no"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewStateView(tt.state))
		})
	}
}

func TestNewEffectView(t *testing.T) {
	assert.Equal(t, EffectView{Kind: "toast", Text: "x"}, NewEffectView(domain.ShowToast{Text: "x"}))
	assert.Equal(t,
		EffectView{Kind: "snackbar", Text: "Connection Problem", ActionLabel: "Retry", Action: EventRetryMessage},
		NewEffectView(domain.ShowSnackbar{Text: "Connection Problem", ActionLabel: "Retry", Action: domain.RetryMessage{}}))
	assert.Equal(t, EffectView{Kind: "navigate", Destination: "settings"},
		NewEffectView(domain.Navigate{Destination: domain.DestinationSettings}))
}

func TestTokenAuth(t *testing.T) {
	assert.NoError(t, NewTokenAuth("").Authenticate(""), "empty token accepts everyone")

	a := NewTokenAuth("secret-token-0123456")
	assert.NoError(t, a.Authenticate("secret-token-0123456"))
	assert.ErrorIs(t, a.Authenticate("secret"), ErrUnauthorized)
	assert.ErrorIs(t, a.Authenticate(""), ErrUnauthorized)
}
