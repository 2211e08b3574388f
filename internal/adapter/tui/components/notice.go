package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"relaychat/internal/adapter/tui/theme"
	"relaychat/internal/domain"
)

// Notice durations.
const (
	ToastTTL    = 3 * time.Second
	SnackbarTTL = 8 * time.Second
)

// NoticeExpiredMsg hides the notice with the matching ID.
type NoticeExpiredMsg struct{ ID uint64 }

// notice is a toast, or a snackbar when action is set.
type notice struct {
	id     uint64
	text   string
	label  string
	action domain.ChatEvent
}

// NoticeModel shows one transient notice at a time. A newer notice replaces
// the current one.
type NoticeModel struct {
	current *notice
	seq     uint64
}

// ShowToast displays text for ToastTTL.
func (m *NoticeModel) ShowToast(text string) tea.Cmd {
	return m.show(notice{text: text}, ToastTTL)
}

// ShowSnackbar displays text with an action for SnackbarTTL.
func (m *NoticeModel) ShowSnackbar(text, label string, action domain.ChatEvent) tea.Cmd {
	return m.show(notice{text: text, label: label, action: action}, SnackbarTTL)
}

func (m *NoticeModel) show(n notice, ttl time.Duration) tea.Cmd {
	m.seq++
	n.id = m.seq
	m.current = &n
	id := n.id
	return tea.Tick(ttl, func(time.Time) tea.Msg { return NoticeExpiredMsg{ID: id} })
}

// Expire hides the notice if it is still the one identified by id.
func (m *NoticeModel) Expire(id uint64) {
	if m.current != nil && m.current.id == id {
		m.current = nil
	}
}

// Text returns the visible notice text, or "".
func (m NoticeModel) Text() string {
	if m.current == nil {
		return ""
	}
	return m.current.text
}

// TakeAction returns the pending snackbar action and hides the snackbar.
func (m *NoticeModel) TakeAction() (domain.ChatEvent, bool) {
	if m.current == nil || m.current.action == nil {
		return nil, false
	}
	a := m.current.action
	m.current = nil
	return a, true
}

// View renders the notice line, or "" when nothing is shown.
func (m NoticeModel) View() string {
	if m.current == nil {
		return ""
	}
	line := theme.Toast.Render(theme.SymbolInfo + " " + m.current.text)
	if m.current.action != nil {
		line += "  " + theme.SnackbarAction.Render("[Ctrl+A] "+m.current.label)
	}
	return line
}
