package store

import (
	"sync"

	"relaychat/internal/domain"
)

// Saved-state keys used by the view models.
const (
	KeyChatDraft       = "chat.draft"
	KeyCredentialDraft = "settings.credential_draft"
)

// SavedState is a goroutine-safe string slot map owned by the host scope. It
// outlives view-model and presentation reconstruction but is never persisted.
type SavedState struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSavedState creates an empty saved-state holder.
func NewSavedState() *SavedState {
	return &SavedState{values: make(map[string]string)}
}

// Get returns the value for key, or "" when unset.
func (s *SavedState) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores value under key.
func (s *SavedState) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key.
func (s *SavedState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

var _ domain.DraftStore = (*SavedState)(nil)
