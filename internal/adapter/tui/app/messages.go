// Package app is the Bubble Tea terminal UI for relaychat. It renders the
// chat and settings view models and turns key presses into their events.
package app

import "relaychat/internal/domain"

// ChatStateMsg carries a published conversation state.
type ChatStateMsg struct {
	State domain.ConversationState
}

// SettingsStateMsg carries a published settings state.
type SettingsStateMsg struct {
	State domain.SettingsState
}

// EffectMsg carries a one-time effect from either view model.
type EffectMsg struct {
	Effect domain.Effect
}
