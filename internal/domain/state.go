package domain

// ConversationState is the published state of the chat screen. It is a closed
// set: Initial, Loading, Success and Failed are the only implementations.
type ConversationState interface {
	conversationState()
}

// Initial means nothing has been loaded yet.
type Initial struct{}

// Loading means a bulk load of the conversation is in flight.
type Loading struct{}

// Success is the steady state. Error is an optional, dismissible banner.
type Success struct {
	Messages     []Message
	IsProcessing bool
	Error        string
}

// Failed is a fatal load or permission failure. Recoverable controls whether
// a restart action is offered.
type Failed struct {
	Message     string
	Recoverable bool
}

func (Initial) conversationState() {}
func (Loading) conversationState() {}
func (Success) conversationState() {}
func (Failed) conversationState()  {}

// StateName returns a short label for logging.
func StateName(s ConversationState) string {
	switch s.(type) {
	case Initial:
		return "initial"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// SettingsState is the published state of the settings screen.
type SettingsState interface {
	settingsState()
}

// SettingsInitial means the configuration has not been read yet.
type SettingsInitial struct{}

// SettingsLoading means the first configuration read is in flight.
type SettingsLoading struct{}

// SettingsSuccess holds the persisted configuration. Saved is the transient
// "save succeeded" flag.
type SettingsSuccess struct {
	Configuration Configuration
	Saved         bool
}

// SettingsFailed means the persisted configuration could not be read.
type SettingsFailed struct {
	Message     string
	Recoverable bool
}

func (SettingsInitial) settingsState() {}
func (SettingsLoading) settingsState() {}
func (SettingsSuccess) settingsState() {}
func (SettingsFailed) settingsState()  {}
