package components

import (
	"strings"
	"testing"
	"time"

	"relaychat/internal/domain"
)

func TestWrapTextBreaksOnSpaces(t *testing.T) {
	got := wrapText("the quick brown fox jumps", 10)
	for _, line := range strings.Split(got, "\n") {
		if n := len([]rune(strings.TrimPrefix(line, "  "))); n > 10 {
			t.Errorf("line %q is %d runes, want <= 10", line, n)
		}
	}
	if !strings.Contains(got, "\n  ") {
		t.Errorf("continuation lines should be indented: %q", got)
	}
}

func TestWrapTextKeepsNewlines(t *testing.T) {
	got := wrapText("one\ntwo", 40)
	if got != "one\n  two" {
		t.Errorf("wrapText = %q", got)
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
	}
	for _, tt := range tests {
		if got := RelativeTime(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if RelativeTime(time.Time{}) != "" {
		t.Error("zero time should render empty")
	}
}

func TestMessageListPlainRendering(t *testing.T) {
	l := NewMessageList(false)
	l.SetWidth(80)
	if !strings.Contains(l.View(), "No messages yet") {
		t.Error("empty list should show the placeholder")
	}

	user := domain.NewUserMessage("hello there")
	l.SetMessages([]domain.Message{user, domain.NewAssistantMessage("**hi**", user.ID)})
	view := l.View()
	if !strings.Contains(view, "hello there") || !strings.Contains(view, "**hi**") {
		t.Errorf("plain view should contain raw texts: %q", view)
	}
}

func TestNoticeReplaceAndExpire(t *testing.T) {
	var n NoticeModel
	n.ShowToast("first")
	n.ShowToast("second")
	if n.Text() != "second" {
		t.Fatalf("Text = %q, want second", n.Text())
	}

	n.Expire(1)
	if n.Text() != "second" {
		t.Error("expiring a replaced notice must not hide the current one")
	}
	n.Expire(2)
	if n.Text() != "" {
		t.Error("notice should be hidden after its own expiry")
	}
}

func TestNoticeTakeAction(t *testing.T) {
	var n NoticeModel
	n.ShowToast("plain")
	if _, ok := n.TakeAction(); ok {
		t.Error("a toast has no action")
	}

	n.ShowSnackbar("Connection Problem", "Retry", domain.RetryMessage{})
	a, ok := n.TakeAction()
	if !ok || a != (domain.RetryMessage{}) {
		t.Fatalf("TakeAction = %v, %v", a, ok)
	}
	if n.View() != "" {
		t.Error("taking the action hides the snackbar")
	}
}
