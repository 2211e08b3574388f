package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"relaychat/internal/adapter/tui/theme"
	"relaychat/internal/domain"
)

// MessageListModel renders the conversation snapshot. Rendered assistant
// bodies are cached by message ID and width.
type MessageListModel struct {
	Messages   []domain.Message
	Markdown   bool
	width      int
	mdRenderer *glamour.TermRenderer
	rendered   map[string]string
}

// NewMessageList creates an empty message list.
func NewMessageList(markdown bool) MessageListModel {
	return MessageListModel{Markdown: markdown, rendered: make(map[string]string)}
}

// SetWidth updates the rendering width and clears cached renders.
func (m *MessageListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.mdRenderer = nil
	m.rendered = make(map[string]string)
}

// SetMessages replaces the snapshot. Cached renders of messages that are no
// longer present are dropped.
func (m *MessageListModel) SetMessages(msgs []domain.Message) {
	m.Messages = msgs
	if len(m.rendered) > len(msgs) {
		keep := make(map[string]string, len(msgs))
		for _, msg := range msgs {
			if r, ok := m.rendered[msg.ID]; ok {
				keep[msg.ID] = r
			}
		}
		m.rendered = keep
	}
}

// View renders all messages as a single string.
func (m *MessageListModel) View() string {
	if len(m.Messages) == 0 {
		return theme.TextMuted.Render("  No messages yet. Start a conversation!")
	}

	width := ContentWidth(m.width)
	var sb strings.Builder
	for i := range m.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(m.Messages[i], width))
	}
	return sb.String()
}

func (m *MessageListModel) renderMessage(msg domain.Message, width int) string {
	label := theme.UserLabel.Render(theme.SymbolUser)
	if msg.Sender == domain.SenderAssistant {
		label = theme.BotLabel.Render(theme.SymbolBot)
	}
	header := label + " " + theme.Timestamp.Render(RelativeTime(msg.CreatedAt))
	headerWidth := lipgloss.Width(header)

	var body string
	if msg.Sender == domain.SenderAssistant && m.Markdown {
		r, ok := m.rendered[msg.ID]
		if !ok {
			r = m.renderMarkdown(msg.Text, width)
			m.rendered[msg.ID] = r
		}
		body = strings.TrimSpace(r)
	} else {
		inlineW := width - headerWidth - 2
		if inlineW < 20 {
			inlineW = width - 2
		}
		body = wrapText(msg.Text, inlineW)
	}

	if body == "" {
		return header
	}
	if width-headerWidth-2 < 20 {
		return header + "\n  " + body
	}
	lines := strings.SplitN(body, "\n", 2)
	result := header + "  " + strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		result += "\n" + lines[1]
	}
	return result
}

func (m *MessageListModel) renderMarkdown(content string, width int) string {
	if m.mdRenderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "  " + content
		}
		m.mdRenderer = r
	}
	rendered, err := m.mdRenderer.Render(content)
	if err != nil {
		return "  " + content
	}
	return rendered
}

// RelativeTime returns a human-readable relative time string.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps text to the given width with a 2-space indent on
// continuation lines. Uses rune-based indexing for multibyte UTF-8.
func wrapText(s string, width int) string {
	var out []string
	for _, para := range strings.Split(s, "\n") {
		out = append(out, wrapLine(para, width))
	}
	return strings.Join(out, "\n  ")
}

func wrapLine(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	var lines []string
	for len(runes) > width {
		idx := -1
		for i := width - 1; i > 0; i-- {
			if runes[i] == ' ' {
				idx = i
				break
			}
		}
		if idx <= 0 {
			idx = width
		}
		lines = append(lines, string(runes[:idx]))
		runes = runes[idx:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n  ")
}

// ContentWidth calculates the content width respecting MaxContentWidth.
func ContentWidth(termWidth int) int {
	return theme.Clamp(termWidth-4, 40, theme.MaxContentWidth)
}

// Divider renders a horizontal line at the given width.
func Divider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat("─", width))
}
