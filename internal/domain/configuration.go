package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects whether the relay may be contacted.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// ParseMode converts s to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOnline:
		return ModeOnline, nil
	case ModeOffline:
		return ModeOffline, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Configuration is the persisted client configuration.
type Configuration struct {
	Mode       Mode   `json:"mode"`
	Credential string `json:"credential,omitempty"`
}

// DefaultConfiguration is used when nothing has been persisted yet.
func DefaultConfiguration() Configuration {
	return Configuration{Mode: ModeOnline}
}

// HasCredential reports whether a credential is set.
func (c Configuration) HasCredential() bool {
	return strings.TrimSpace(c.Credential) != ""
}

var credentialPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{20,256}$`)

// ValidateCredential checks the credential format. An empty credential is
// valid and means "not configured".
func ValidateCredential(credential string) error {
	c := strings.TrimSpace(credential)
	if c == "" {
		return nil
	}
	if !credentialPattern.MatchString(c) {
		return ErrInvalidCredential
	}
	return nil
}
