package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker/v2"

	"relaychat/internal/domain"
)

// codeSentinels maps relay codes to the domain taxonomy.
var codeSentinels = map[Code]error{
	CodeUnauthenticated:   domain.ErrAuthentication,
	CodePermissionDenied:  domain.ErrAuthorization,
	CodeInternal:          domain.ErrTransient,
	CodeUnavailable:       domain.ErrTransient,
	CodeDeadlineExceeded:  domain.ErrTransient,
	CodeResourceExhausted: domain.ErrTransient,
}

// transientPatterns are network failure fragments seen in errors that did not
// come back as a CallError.
var transientPatterns = []string{
	"connection refused", "no such host", "timeout",
	"deadline exceeded", "connection reset", "eof",
}

// Classify translates any error produced while calling the relay into a
// *domain.DomainError so transport-specific types never leak upward.
// Cancellation passes through so callers can drop it silently.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return domain.WrapOp(op, err)
	}

	// Already classified (identity, offline mode).
	if domain.KindOf(err) != domain.KindUnknown {
		return domain.NewDomainError(op, err, "")
	}

	var ce *CallError
	if errors.As(err, &ce) {
		if sentinel, ok := codeSentinels[ce.Code]; ok {
			return domain.NewDomainError(op, fmt.Errorf("%w: %w", sentinel, ce), "")
		}
		// INVALID_ARGUMENT and unknown codes stay unclassified.
		return domain.NewDomainError(op, ce, "")
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewDomainError(op, fmt.Errorf("%w: %w", domain.ErrCircuitOpen, err), "")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDomainError(op, fmt.Errorf("%w: %w", domain.ErrTransient, err), "")
	}

	lower := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return domain.NewDomainError(op, fmt.Errorf("%w: %w", domain.ErrTransient, err), "")
		}
	}
	return domain.NewDomainError(op, err, "")
}
