package domain

import (
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sender identifies who authored a message.
type Sender string

// Sender values.
const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is a single immutable entry of the conversation.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	ReplyTo   string    `json:"reply_to,omitempty"` // user message ID answered by an assistant message
	CreatedAt time.Time `json:"created_at"`
}

// Exchange is a prompt recorded by a send and, once the ask succeeded, its
// reply. Prompt is set whenever the prompt was stored, even if the ask failed.
type Exchange struct {
	Prompt Message
	Reply  Message
}

// NewUserMessage creates a user message with a fresh ULID.
func NewUserMessage(text string) Message {
	now := time.Now()
	return Message{
		ID:        NewID(now),
		Text:      text,
		Sender:    SenderUser,
		CreatedAt: now,
	}
}

// NewAssistantMessage creates an assistant reply to the user message replyTo.
func NewAssistantMessage(text, replyTo string) Message {
	now := time.Now()
	return Message{
		ID:        NewID(now),
		Text:      text,
		Sender:    SenderAssistant,
		ReplyTo:   replyTo,
		CreatedAt: now,
	}
}

// NewID returns a ULID string for t.
func NewID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// IsBlank reports whether s has no visible content.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// FindRetryTarget returns the most recent user message that has not been
// answered by an assistant message. Assistant messages without ReplyTo are
// treated as answering the nearest preceding user message.
func FindRetryTarget(msgs []Message) (Message, bool) {
	answered := make(map[string]bool)
	lastUser := ""
	for _, m := range msgs {
		switch m.Sender {
		case SenderUser:
			lastUser = m.ID
		case SenderAssistant:
			if m.ReplyTo != "" {
				answered[m.ReplyTo] = true
			} else if lastUser != "" {
				answered[lastUser] = true
			}
		}
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Sender == SenderUser && !answered[m.ID] {
			return m, true
		}
	}
	return Message{}, false
}
