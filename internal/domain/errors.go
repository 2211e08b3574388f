package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind sentinels. Every error that leaves a repository or use case wraps
// exactly one of these, usually through a *DomainError.
var (
	ErrValidation     = fmt.Errorf("invalid input")
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrAuthorization  = fmt.Errorf("permission denied")
	ErrTransient      = fmt.Errorf("temporarily unavailable")
	ErrConfiguration  = fmt.Errorf("configuration unavailable")
)

// Specific sentinels, each classified under one kind.
var (
	ErrBlankMessage      = fmt.Errorf("%w: message is blank", ErrValidation)
	ErrInvalidCredential = fmt.Errorf("%w: credential is malformed", ErrValidation)
	ErrInvalidMode       = fmt.Errorf("%w: unknown mode", ErrValidation)
	ErrMissingIdentity   = fmt.Errorf("%w: no credential configured", ErrAuthentication)
	ErrOfflineMode       = fmt.Errorf("%w: offline mode is enabled", ErrConfiguration)
	ErrCircuitOpen       = fmt.Errorf("%w: relay circuit open", ErrTransient)
)

// ErrorKind is the coarse category the orchestrators use to choose between a
// blocking error state and a dismissible banner.
type ErrorKind string

const (
	KindUnknown        ErrorKind = "UNKNOWN"
	KindValidation     ErrorKind = "VALIDATION"
	KindAuthentication ErrorKind = "AUTHENTICATION"
	KindAuthorization  ErrorKind = "AUTHORIZATION"
	KindTransient      ErrorKind = "TRANSIENT"
	KindConfiguration  ErrorKind = "CONFIGURATION"
	KindCanceled       ErrorKind = "CANCELED"
)

var kindSentinels = []struct {
	err  error
	kind ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrAuthentication, KindAuthentication},
	{ErrAuthorization, KindAuthorization},
	{ErrTransient, KindTransient},
	{ErrConfiguration, KindConfiguration},
}

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "SendMessage.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Kind returns the category of the wrapped error.
func (e *DomainError) Kind() ErrorKind { return KindOf(e.Err) }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// KindOf resolves the category of err by walking its chain.
// Context cancellation is reported as KindCanceled so callers can drop it silently.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return KindOf(err) == KindTransient
}

// Recoverable reports whether a failure of this kind leaves the screen usable.
// Authentication and authorization failures cannot be fixed by retrying.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindAuthentication, KindAuthorization:
		return false
	default:
		return true
	}
}
