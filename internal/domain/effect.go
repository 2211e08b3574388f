package domain

// Effect is a one-time notification for the presentation layer. Effects are
// delivered at most once and never replayed.
type Effect interface {
	effect()
}

// ShowToast displays a short transient message.
type ShowToast struct{ Text string }

// ShowSnackbar displays a message with an optional action. When the user
// triggers the action, the presentation layer dispatches Action.
type ShowSnackbar struct {
	Text        string
	ActionLabel string
	Action      ChatEvent
}

// Navigate moves the presentation layer to Destination.
type Navigate struct{ Destination Destination }

func (ShowToast) effect()    {}
func (ShowSnackbar) effect() {}
func (Navigate) effect()     {}

// Destination names a screen.
type Destination string

const (
	DestinationChat     Destination = "chat"
	DestinationSettings Destination = "settings"
	DestinationBack     Destination = "back"
)
