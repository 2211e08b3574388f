package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"relaychat/internal/adapter/tui/components"
	"relaychat/internal/adapter/tui/theme"
	"relaychat/internal/domain"
	"relaychat/internal/viewmodel"
)

// ChatSurface is the presentation contract of the chat view model.
type ChatSurface interface {
	WatchState(ctx context.Context) <-chan domain.ConversationState
	Effects() *viewmodel.EffectQueue
	Dispatch(event domain.ChatEvent)
	UpdateDraft(text string)
	Draft() string
}

// SettingsSurface is the presentation contract of the settings view model.
type SettingsSurface interface {
	WatchState(ctx context.Context) <-chan domain.SettingsState
	Effects() *viewmodel.EffectQueue
	Dispatch(event domain.SettingsEvent)
	CredentialDraft() string
}

// Deps are the collaborators of the root model.
type Deps struct {
	Chat     ChatSurface
	Settings SettingsSurface
	Markdown bool
	Logger   *slog.Logger
}

type screen int

const (
	screenChat screen = iota
	screenSettings
)

// Model is the root Bubble Tea model.
type Model struct {
	deps Deps

	chatView   components.ChatViewModel
	input      components.InputAreaModel
	credential textinput.Model
	statusBar  components.StatusBarModel
	notice     components.NoticeModel
	spinner    spinner.Model

	screen        screen
	chatState     domain.ConversationState
	settingsState domain.SettingsState
	seeded        bool // credential input filled from the draft
	width         int
	height        int
	quitting      bool
}

// NewModel creates the root model showing the chat screen. The input starts
// with the saved draft.
func NewModel(deps Deps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	input := components.NewInputArea()
	input.SetValue(deps.Chat.Draft())

	cred := textinput.New()
	cred.Placeholder = "paste your relay credential"
	cred.EchoMode = textinput.EchoPassword
	cred.EchoCharacter = '*'
	cred.Prompt = "Credential: "
	cred.PromptStyle = theme.InputPrompt

	sb := components.NewStatusBar()
	sb.Screen = "chat"
	sb.Hints = chatHints()

	return Model{
		deps:          deps,
		chatView:      components.NewChatView(deps.Markdown),
		input:         input,
		credential:    cred,
		statusBar:     sb,
		spinner:       s,
		chatState:     domain.Initial{},
		settingsState: domain.SettingsInitial{},
	}
}

// Init announces the chat screen and starts the spinner.
func (m Model) Init() tea.Cmd {
	chat := m.deps.Chat
	return tea.Batch(
		func() tea.Msg {
			chat.Dispatch(domain.ScreenLoaded{})
			return nil
		},
		m.spinner.Tick,
	)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case ChatStateMsg:
		m.applyChatState(msg.State)
		return m, nil

	case SettingsStateMsg:
		m.applySettingsState(msg.State)
		return m, nil

	case EffectMsg:
		return m, m.applyEffect(msg.Effect)

	case components.NoticeExpiredMsg:
		m.notice.Expire(msg.ID)
		return m, nil

	case components.InputSubmitMsg:
		m.deps.Chat.Dispatch(domain.SendMessage{Text: msg.Value})
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.screen == screenSettings {
			return m.handleSettingsKey(msg)
		}
		return m.handleChatKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applyChatState(s domain.ConversationState) {
	m.chatState = s
	m.statusBar.Extra = ""
	if st, ok := s.(domain.Success); ok {
		m.chatView.SetMessages(st.Messages)
		m.input.SetEnabled(!st.IsProcessing)
		if st.IsProcessing {
			m.statusBar.Extra = theme.SymbolSpinner + " Thinking..."
		}
	}
	// The draft holder is the source of truth; a successful send clears it.
	if draft := m.deps.Chat.Draft(); draft != m.input.Value() {
		m.input.SetValue(draft)
	}
}

func (m *Model) applySettingsState(s domain.SettingsState) {
	m.settingsState = s
	if _, ok := s.(domain.SettingsSuccess); ok && !m.seeded {
		m.credential.SetValue(m.deps.Settings.CredentialDraft())
		m.credential.CursorEnd()
		m.seeded = true
	}
}

func (m *Model) applyEffect(e domain.Effect) tea.Cmd {
	switch ef := e.(type) {
	case domain.ShowToast:
		return m.notice.ShowToast(ef.Text)
	case domain.ShowSnackbar:
		return m.notice.ShowSnackbar(ef.Text, ef.ActionLabel, ef.Action)
	case domain.Navigate:
		switch ef.Destination {
		case domain.DestinationSettings:
			m.openSettings()
		case domain.DestinationBack, domain.DestinationChat:
			m.openChat()
		}
	default:
		if m.deps.Logger != nil {
			m.deps.Logger.Warn("unhandled effect", "type", fmt.Sprintf("%T", e))
		}
	}
	return nil
}

func (m *Model) openSettings() {
	m.screen = screenSettings
	m.seeded = false
	m.input.SetEnabled(false)
	m.credential.Focus()
	m.statusBar.Screen = "settings"
	m.statusBar.Hints = settingsHints()
	m.deps.Settings.Dispatch(domain.SettingsLoaded{})
}

func (m *Model) openChat() {
	m.screen = screenChat
	m.credential.Blur()
	m.statusBar.Screen = "chat"
	m.statusBar.Hints = chatHints()
	st, ok := m.chatState.(domain.Success)
	m.input.SetEnabled(!ok || !st.IsProcessing)
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	chat := m.deps.Chat
	switch msg.Type {
	case tea.KeyCtrlL:
		chat.Dispatch(domain.ClearConversation{})
		return m, nil
	case tea.KeyCtrlR:
		chat.Dispatch(domain.RetryMessage{})
		return m, nil
	case tea.KeyCtrlS:
		chat.Dispatch(domain.NavigateToSettings{})
		return m, nil
	case tea.KeyCtrlA:
		if action, ok := m.notice.TakeAction(); ok {
			chat.Dispatch(action)
		}
		return m, nil
	case tea.KeyEsc:
		chat.Dispatch(domain.DismissError{})
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		chat.UpdateDraft(after)
	}
	return m, cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	settings := m.deps.Settings
	switch msg.Type {
	case tea.KeyEsc:
		settings.Dispatch(domain.NavigateBack{})
		return m, nil
	case tea.KeyEnter:
		settings.Dispatch(domain.SaveCredential{})
		return m, nil
	case tea.KeyCtrlO:
		if st, ok := m.settingsState.(domain.SettingsSuccess); ok {
			next := domain.ModeOffline
			if st.Configuration.Mode == domain.ModeOffline {
				next = domain.ModeOnline
			}
			settings.Dispatch(domain.ChangeMode{Mode: next})
		}
		return m, nil
	case tea.KeyCtrlR:
		if _, ok := m.settingsState.(domain.SettingsFailed); ok {
			settings.Dispatch(domain.SettingsLoaded{})
		}
		return m, nil
	}

	before := m.credential.Value()
	var cmd tea.Cmd
	m.credential, cmd = m.credential.Update(msg)
	if after := m.credential.Value(); after != before {
		settings.Dispatch(domain.UpdateCredential{Text: after})
	}
	return m, cmd
}

// View renders the active screen.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	var body string
	if m.screen == screenSettings {
		body = m.settingsView()
	} else {
		body = m.chatBody()
	}

	parts := []string{body}
	if n := m.notice.View(); n != "" {
		parts = append(parts, n)
	}
	if m.screen == screenChat {
		parts = append(parts, components.Divider(m.width), m.inputView())
	}
	parts = append(parts, m.statusBar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) chatBody() string {
	switch st := m.chatState.(type) {
	case domain.Success:
		view := m.chatView.View()
		if st.Error != "" {
			view += "\n" + theme.Banner.Render(theme.SymbolError+" "+st.Error+"  (Esc to dismiss)")
		}
		return view
	case domain.Failed:
		var sb strings.Builder
		sb.WriteString(theme.TextError.Render(theme.SymbolError + " " + st.Message))
		if st.Recoverable {
			sb.WriteString("\n\n" + theme.TextMuted.Render("Press Ctrl+R to try again."))
		}
		return sb.String()
	default:
		return "  " + m.spinner.View() + " Loading conversation..."
	}
}

func (m Model) inputView() string {
	if st, ok := m.chatState.(domain.Success); ok && st.IsProcessing {
		return theme.Dim.Render("> waiting for reply...") + "\n" + m.spinner.View() + " " + m.statusBar.Extra
	}
	return m.input.View()
}

func (m Model) settingsView() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Settings") + "\n")
	switch st := m.settingsState.(type) {
	case domain.SettingsSuccess:
		mode := theme.TextSuccess.Render(string(st.Configuration.Mode))
		if st.Configuration.Mode == domain.ModeOffline {
			mode = theme.TextWarning.Render(string(st.Configuration.Mode))
		}
		sb.WriteString("Mode: " + mode + "  " + theme.TextMuted.Render("(Ctrl+O to toggle)") + "\n\n")
		sb.WriteString(m.credential.View() + "\n")
		if st.Saved {
			sb.WriteString("\n" + theme.TextSuccess.Render(theme.SymbolSuccess+" Saved"))
		}
	case domain.SettingsFailed:
		sb.WriteString(theme.TextError.Render(theme.SymbolError + " " + st.Message))
		if st.Recoverable {
			sb.WriteString("\n\n" + theme.TextMuted.Render("Press Ctrl+R to try again."))
		}
	default:
		sb.WriteString("  " + m.spinner.View() + " Loading settings...")
	}

	content := sb.String()
	h := m.height - 2
	if h < 5 {
		h = 5
	}
	return theme.BorderNormal.Width(components.ContentWidth(m.width)).Height(h - 2).Render(content)
}

// layout recalculates sizes for all sub-models.
func (m *Model) layout() {
	inputH := 3
	statusH := 1
	dividerH := 1
	noticeH := 2 // notice line plus a possible banner
	contentH := m.height - inputH - statusH - dividerH - noticeH
	if contentH < 5 {
		contentH = 5
	}
	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
	m.credential.Width = components.ContentWidth(m.width) - 16
}

func chatHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Ctrl+R", Desc: "Retry"},
		{Key: "Ctrl+L", Desc: "Clear"},
		{Key: "Ctrl+S", Desc: "Settings"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

func settingsHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Save"},
		{Key: "Ctrl+O", Desc: "Mode"},
		{Key: "Esc", Desc: "Back"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}
