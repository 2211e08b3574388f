package uxerror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"relaychat/internal/domain"
)

func TestHumanizeByKind(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  domain.ErrorKind
		title string
	}{
		{"auth", fmt.Errorf("%w: expired", domain.ErrAuthentication), domain.KindAuthentication, "Authentication Failed"},
		{"authz", domain.NewDomainError("Gateway.Ask", domain.ErrAuthorization, ""), domain.KindAuthorization, "Access Denied"},
		{"transient", fmt.Errorf("%w: relay UNAVAILABLE", domain.ErrTransient), domain.KindTransient, "Connection Problem"},
		{"configuration", fmt.Errorf("%w: disk", domain.ErrConfiguration), domain.KindConfiguration, "Settings Unavailable"},
		{"validation", fmt.Errorf("%w: bad", domain.ErrValidation), domain.KindValidation, "Invalid Input"},
		{"unknown", errors.New("weird"), domain.KindUnknown, "Something Went Wrong"},
		{"canceled", context.Canceled, domain.KindCanceled, "Canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Humanize(tt.err)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.title, fe.Title)
			assert.Equal(t, tt.err.Error(), fe.Raw)
		})
	}
}

func TestHumanizeSpecificSentinels(t *testing.T) {
	tests := []struct {
		err   error
		title string
		kind  domain.ErrorKind
	}{
		{domain.NewDomainError("SendMessage.Execute", domain.ErrBlankMessage, ""), "Empty Message", domain.KindValidation},
		{domain.ErrInvalidCredential, "Invalid Credential", domain.KindValidation},
		{domain.ErrMissingIdentity, "Not Signed In", domain.KindAuthentication},
		{domain.ErrOfflineMode, "Offline Mode", domain.KindConfiguration},
		{domain.ErrCircuitOpen, "Service Paused", domain.KindTransient},
		{fmt.Errorf("%w: relay RESOURCE_EXHAUSTED: slow down", domain.ErrTransient), "Rate Limited", domain.KindTransient},
		{errors.New("relay INVALID_ARGUMENT (HTTP 400): empty"), "Request Rejected", domain.KindUnknown},
	}
	for _, tt := range tests {
		fe := Humanize(tt.err)
		assert.Equal(t, tt.title, fe.Title, tt.err.Error())
		assert.Equal(t, tt.kind, fe.Kind, tt.err.Error())
	}
}

func TestHumanizeNil(t *testing.T) {
	fe := Humanize(nil)
	assert.Equal(t, "Unknown Error", fe.Title)
}

func TestHumanizeDoesNotShareHints(t *testing.T) {
	a := Humanize(domain.ErrTransient)
	a.Hints[0] = "mutated"
	b := Humanize(domain.ErrTransient)
	assert.NotEqual(t, "mutated", b.Hints[0])
}

func TestRenderAndBanner(t *testing.T) {
	fe := Humanize(domain.ErrMissingIdentity)
	out := fe.Render()
	assert.True(t, strings.HasPrefix(out, "Not Signed In"))
	assert.Contains(t, out, "No credential is configured.")
	assert.Contains(t, out, "• Open Settings")

	assert.Equal(t, "Not Signed In: No credential is configured.", fe.Banner())
	assert.Equal(t, "Canceled", Humanize(context.Canceled).Banner())
}
