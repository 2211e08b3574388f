package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
)

const validCredential = "abcdefghijklmnopqrstuvwxyz0123"

func TestSaveConfiguration(t *testing.T) {
	repo := &mockConfigRepo{}
	bus := &recordingBus{}
	uc := NewSaveConfiguration(repo, bus)

	err := uc.Execute(context.Background(), domain.Configuration{Mode: domain.ModeOnline, Credential: "  " + validCredential + " "})
	require.NoError(t, err)
	assert.Equal(t, validCredential, repo.cfg.Credential)
	assert.Equal(t, domain.ModeOnline, repo.cfg.Mode)

	require.Equal(t, []domain.EventType{domain.EventConfigurationSaved}, bus.types())
	assert.Equal(t, true, bus.payload(0)["has_credential"])
	assert.NotContains(t, string(bus.events[0].Payload), validCredential)
}

func TestSaveConfiguration_EmptyCredentialAllowed(t *testing.T) {
	repo := &mockConfigRepo{}
	uc := NewSaveConfiguration(repo, nil)

	require.NoError(t, uc.Execute(context.Background(), domain.Configuration{Mode: domain.ModeOffline}))
	assert.Equal(t, 1, repo.saves)
}

func TestSaveConfiguration_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.Configuration
		is   error
	}{
		{"too short", domain.Configuration{Mode: domain.ModeOnline, Credential: "short"}, domain.ErrInvalidCredential},
		{"bad chars", domain.Configuration{Mode: domain.ModeOnline, Credential: "abcdefghij klmnopqrstuvwxyz"}, domain.ErrInvalidCredential},
		{"too long", domain.Configuration{Mode: domain.ModeOnline, Credential: strings.Repeat("a", 257)}, domain.ErrInvalidCredential},
		{"bad mode", domain.Configuration{Mode: "sometimes", Credential: validCredential}, domain.ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockConfigRepo{}
			err := NewSaveConfiguration(repo, nil).Execute(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.ErrorIs(t, err, tt.is)
			assert.Zero(t, repo.saves, "malformed input must not reach the repository")
		})
	}
}

func TestSaveConfiguration_RepositoryFailure(t *testing.T) {
	repo := &mockConfigRepo{saveErr: fmt.Errorf("%w: disk full", domain.ErrConfiguration)}
	bus := &recordingBus{}
	err := NewSaveConfiguration(repo, bus).Execute(context.Background(), domain.Configuration{Mode: domain.ModeOnline})
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	assert.Empty(t, bus.types())
}

func TestChangeMode(t *testing.T) {
	repo := &mockConfigRepo{cfg: domain.Configuration{Mode: domain.ModeOnline, Credential: validCredential}}
	bus := &recordingBus{}
	uc := NewChangeMode(repo, bus)

	require.NoError(t, uc.Execute(context.Background(), domain.ModeOffline))
	assert.Equal(t, domain.ModeOffline, repo.cfg.Mode)
	assert.Equal(t, validCredential, repo.cfg.Credential, "credential must be preserved")
	assert.Equal(t, []domain.EventType{domain.EventModeChanged}, bus.types())

	// Same mode again is a no-op write.
	require.NoError(t, uc.Execute(context.Background(), domain.ModeOffline))
	assert.Equal(t, 1, repo.saves)
}

func TestChangeMode_Failures(t *testing.T) {
	repo := &mockConfigRepo{}
	err := NewChangeMode(repo, nil).Execute(context.Background(), "sideways")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	repo = &mockConfigRepo{getErr: fmt.Errorf("%w: unreadable", domain.ErrConfiguration)}
	err = NewChangeMode(repo, nil).Execute(context.Background(), domain.ModeOffline)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	assert.Zero(t, repo.saves)
}

func TestObserveConfiguration_WrapsStreamErrors(t *testing.T) {
	updates := make(chan domain.ConfigurationUpdate, 2)
	repo := &mockConfigRepo{updates: updates}
	uc := NewObserveConfiguration(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := uc.Execute(ctx)
	require.NoError(t, err)

	updates <- domain.ConfigurationUpdate{Configuration: domain.DefaultConfiguration()}
	updates <- domain.ConfigurationUpdate{Err: fmt.Errorf("%w: locked", domain.ErrConfiguration)}
	close(updates)

	first := recv(t, ch)
	assert.NoError(t, first.Err)
	assert.Equal(t, domain.ModeOnline, first.Configuration.Mode)

	second := recv(t, ch)
	require.Error(t, second.Err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(second.Err))
	var de *domain.DomainError
	require.True(t, errors.As(second.Err, &de))
	assert.Equal(t, "ObserveConfiguration.Execute", de.Op)

	_, open := <-ch
	assert.False(t, open, "stream closes when the source closes")
}

func TestObserveConfiguration_Failure(t *testing.T) {
	repo := &mockConfigRepo{getErr: fmt.Errorf("%w: closed", domain.ErrConfiguration)}
	_, err := NewObserveConfiguration(repo).Execute(context.Background())
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func recv(t *testing.T, ch <-chan domain.ConfigurationUpdate) domain.ConfigurationUpdate {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "stream closed early")
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for configuration update")
	}
	return domain.ConfigurationUpdate{}
}
