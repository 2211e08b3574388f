package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker/v2"

	"relaychat/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"unauthenticated", &CallError{Code: CodeUnauthenticated}, domain.KindAuthentication},
		{"permission denied", &CallError{Code: CodePermissionDenied}, domain.KindAuthorization},
		{"internal", &CallError{Code: CodeInternal}, domain.KindTransient},
		{"unavailable", &CallError{Code: CodeUnavailable}, domain.KindTransient},
		{"deadline", &CallError{Code: CodeDeadlineExceeded}, domain.KindTransient},
		{"rate limited", &CallError{Code: CodeResourceExhausted}, domain.KindTransient},
		{"invalid argument", &CallError{Code: CodeInvalidArgument}, domain.KindUnknown},
		{"unknown code", &CallError{Code: CodeUnknown}, domain.KindUnknown},
		{"circuit open", fmt.Errorf("relay circuit open: %w", gobreaker.ErrOpenState), domain.KindTransient},
		{"half-open busy", gobreaker.ErrTooManyRequests, domain.KindTransient},
		{"deadline exceeded", context.DeadlineExceeded, domain.KindTransient},
		{"connection refused text", errors.New("dial tcp: connection refused"), domain.KindTransient},
		{"missing identity", domain.ErrMissingIdentity, domain.KindAuthentication},
		{"offline", domain.ErrOfflineMode, domain.KindConfiguration},
		{"canceled", context.Canceled, domain.KindCanceled},
		{"opaque", errors.New("something odd"), domain.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("Gateway.Ask", tt.err)
			if k := domain.KindOf(got); k != tt.want {
				t.Errorf("KindOf(Classify(%v)) = %s, want %s", tt.err, k, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error should keep %v in its chain", tt.err)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify("op", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestClassifyKeepsCallError(t *testing.T) {
	err := Classify("Gateway.Ask", &CallError{Code: CodeInvalidArgument, Message: "empty message"})
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CallError in chain, got %v", err)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Op != "Gateway.Ask" {
		t.Errorf("expected DomainError with op, got %v", err)
	}
}
