// Package uxerror translates domain errors into user-facing titles, messages
// and recovery hints. The view models use it for banners, snackbars and toasts
// so no raw error text reaches the screen.
package uxerror

import (
	"errors"
	"strings"

	"relaychat/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Kind    domain.ErrorKind
	Title   string   // short heading, e.g. "Connection Problem"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for logs)
}

// Render formats the FriendlyError as a multi-line block.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	for _, h := range fe.Hints {
		sb.WriteString("\n    • ")
		sb.WriteString(h)
	}
	return sb.String()
}

// Banner is the single-line text shown in the chat error banner.
func (fe FriendlyError) Banner() string {
	if fe.Message == "" {
		return fe.Title
	}
	return fe.Title + ": " + fe.Message
}

type errorPattern struct {
	match   func(err error) bool
	produce FriendlyError
}

// Specific sentinels first so their wording wins over the generic kind text.
var patterns = []errorPattern{
	{
		match:   is(domain.ErrBlankMessage),
		produce: FriendlyError{Title: "Empty Message", Message: "Message cannot be empty."},
	},
	{
		match: is(domain.ErrInvalidCredential),
		produce: FriendlyError{
			Title:   "Invalid Credential",
			Message: "The credential must be 20 to 256 letters, digits, dots, dashes or underscores.",
			Hints:   []string{"Paste the credential again without spaces"},
		},
	},
	{
		match: is(domain.ErrMissingIdentity),
		produce: FriendlyError{
			Title:   "Not Signed In",
			Message: "No credential is configured.",
			Hints:   []string{"Open Settings and enter your credential"},
		},
	},
	{
		match: is(domain.ErrOfflineMode),
		produce: FriendlyError{
			Title:   "Offline Mode",
			Message: "Messages cannot be sent while offline mode is on.",
			Hints:   []string{"Switch to online mode in Settings"},
		},
	},
	{
		match: is(domain.ErrCircuitOpen),
		produce: FriendlyError{
			Title:   "Service Paused",
			Message: "The assistant failed several times in a row and is cooling down.",
			Hints:   []string{"Wait a few seconds and retry"},
		},
	},
	{
		match: containsAny("rate limit", "resource_exhausted", "429"),
		produce: FriendlyError{
			Title:   "Rate Limited",
			Message: "Too many messages in a short time.",
			Hints:   []string{"Wait a moment before retrying"},
		},
	},
	{
		match:   containsAny("invalid_argument"),
		produce: FriendlyError{Title: "Request Rejected", Message: "The assistant could not process this message."},
	},
}

var kindDefaults = map[domain.ErrorKind]FriendlyError{
	domain.KindValidation: {
		Title:   "Invalid Input",
		Message: "Please check what you entered.",
	},
	domain.KindAuthentication: {
		Title:   "Authentication Failed",
		Message: "Your credential was rejected.",
		Hints:   []string{"Open Settings and update your credential"},
	},
	domain.KindAuthorization: {
		Title:   "Access Denied",
		Message: "This account is not allowed to use the assistant.",
		Hints:   []string{"Contact the service administrator"},
	},
	domain.KindTransient: {
		Title:   "Connection Problem",
		Message: "The assistant could not be reached.",
		Hints:   []string{"Check your network connection", "Retry in a moment"},
	},
	domain.KindConfiguration: {
		Title:   "Settings Unavailable",
		Message: "Your settings could not be read or written.",
		Hints:   []string{"Open Settings and save again"},
	},
	domain.KindCanceled: {
		Title: "Canceled",
	},
}

// Humanize converts err into a FriendlyError.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Kind: domain.KindUnknown, Title: "Unknown Error", Raw: "nil"}
	}

	kind := domain.KindOf(err)
	for _, p := range patterns {
		if p.match(err) {
			return finish(p.produce, kind, err)
		}
	}
	if fe, ok := kindDefaults[kind]; ok {
		return finish(fe, kind, err)
	}
	return finish(FriendlyError{
		Title:   "Something Went Wrong",
		Message: "An unexpected error occurred.",
		Hints:   []string{"Try again"},
	}, kind, err)
}

func finish(fe FriendlyError, kind domain.ErrorKind, err error) FriendlyError {
	fe.Kind = kind
	fe.Raw = err.Error()
	if fe.Hints != nil {
		fe.Hints = append([]string(nil), fe.Hints...)
	}
	return fe
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}
