package viewmodel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/adapter/store"
	"relaychat/internal/domain"
	"relaychat/internal/usecase"
	"relaychat/internal/uxerror"
)

const validCredential = "abcdefghijklmnopqrstuvwxyz0123"

type settingsFixture struct {
	vm      *SettingsViewModel
	repo    *store.ConfigurationStore
	drafts  *store.SavedState
	effects *effectLog
}

func newSettingsFixture(t *testing.T, flash time.Duration, seed *domain.Configuration) *settingsFixture {
	t.Helper()
	log := testLogger()
	prefs, err := store.OpenPreferences(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = prefs.Close() })

	repo := store.NewConfigurationStore(prefs, nil, log)
	if seed != nil {
		require.NoError(t, repo.Save(context.Background(), *seed))
	}
	return newSettingsFixtureWith(t, flash, repo, SettingsUseCases{
		Save:    usecase.NewSaveConfiguration(repo, nil),
		Mode:    usecase.NewChangeMode(repo, nil),
		Observe: usecase.NewObserveConfiguration(repo),
	})
}

func newSettingsFixtureWith(t *testing.T, flash time.Duration, repo *store.ConfigurationStore, uc SettingsUseCases) *settingsFixture {
	t.Helper()
	drafts := store.NewSavedState()
	vm := NewSettingsViewModel(uc, drafts, DefaultEffectBuffer, flash, testLogger())
	t.Cleanup(vm.Close)
	return &settingsFixture{vm: vm, repo: repo, drafts: drafts, effects: collect(t, vm.Effects())}
}

func (f *settingsFixture) waitSuccess(t *testing.T, pred func(domain.SettingsSuccess) bool) domain.SettingsSuccess {
	t.Helper()
	var last domain.SettingsState
	require.Eventually(t, func() bool {
		last = f.vm.State()
		s, ok := last.(domain.SettingsSuccess)
		return ok && pred(s)
	}, waitFor, 5*time.Millisecond, "last state: %#v", last)
	return f.vm.State().(domain.SettingsSuccess)
}

func (f *settingsFixture) loaded(t *testing.T) domain.SettingsSuccess {
	t.Helper()
	f.vm.Dispatch(domain.SettingsLoaded{})
	return f.waitSuccess(t, func(domain.SettingsSuccess) bool { return true })
}

func TestSettings_InitialState(t *testing.T) {
	f := newSettingsFixture(t, 0, nil)
	assert.Equal(t, domain.SettingsInitial{}, f.vm.State())
}

func TestSettings_LoadDefaults(t *testing.T) {
	f := newSettingsFixture(t, 0, nil)
	s := f.loaded(t)

	assert.Equal(t, domain.DefaultConfiguration(), s.Configuration)
	assert.False(t, s.Saved)
	assert.Empty(t, f.vm.CredentialDraft())
}

func TestSettings_LoadSeedsCredentialDraft(t *testing.T) {
	f := newSettingsFixture(t, 0, &domain.Configuration{Mode: domain.ModeOffline, Credential: validCredential})
	s := f.loaded(t)

	assert.Equal(t, domain.ModeOffline, s.Configuration.Mode)
	assert.Equal(t, validCredential, f.vm.CredentialDraft())
}

func TestSettings_LoadKeepsExistingDraft(t *testing.T) {
	f := newSettingsFixture(t, 0, &domain.Configuration{Mode: domain.ModeOnline, Credential: validCredential})
	f.vm.Dispatch(domain.UpdateCredential{Text: "typed-before-load"})
	f.loaded(t)

	assert.Equal(t, "typed-before-load", f.vm.CredentialDraft())
}

func TestSettings_SaveValidCredential(t *testing.T) {
	f := newSettingsFixture(t, 50*time.Millisecond, nil)
	f.loaded(t)

	f.vm.Dispatch(domain.UpdateCredential{Text: "  " + validCredential + " "})
	f.vm.Dispatch(domain.SaveCredential{})

	f.waitSuccess(t, func(s domain.SettingsSuccess) bool {
		return s.Saved && s.Configuration.Credential == validCredential
	})
	f.effects.waitToast(t, ToastSettingsSaved)

	stored, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, validCredential, stored.Credential, "credential is stored trimmed")

	f.waitSuccess(t, func(s domain.SettingsSuccess) bool { return !s.Saved })
}

func TestSettings_SaveInvalidCredential(t *testing.T) {
	f := newSettingsFixture(t, 0, &domain.Configuration{Mode: domain.ModeOnline, Credential: validCredential})
	f.loaded(t)

	f.vm.Dispatch(domain.UpdateCredential{Text: "short"})
	f.vm.Dispatch(domain.SaveCredential{})

	f.effects.waitToast(t, uxerror.Humanize(domain.ErrInvalidCredential).Message)
	flush(t, f.vm.own)

	s := f.vm.State().(domain.SettingsSuccess)
	assert.False(t, s.Saved)
	stored, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, validCredential, stored.Credential, "invalid credential must not be written")
	assert.Equal(t, "short", f.vm.CredentialDraft(), "draft stays for correction")
}

func TestSettings_SaveEmptyCredentialClearsIt(t *testing.T) {
	f := newSettingsFixture(t, 0, &domain.Configuration{Mode: domain.ModeOnline, Credential: validCredential})
	f.loaded(t)

	f.vm.Dispatch(domain.UpdateCredential{Text: ""})
	f.vm.Dispatch(domain.SaveCredential{})

	s := f.waitSuccess(t, func(s domain.SettingsSuccess) bool { return s.Saved && !s.Configuration.HasCredential() })
	assert.Equal(t, domain.ModeOnline, s.Configuration.Mode)
}

func TestSettings_SaveBeforeLoad(t *testing.T) {
	f := newSettingsFixture(t, 0, nil)

	f.vm.Dispatch(domain.SaveCredential{})
	f.effects.waitToast(t, ToastSettingsLoading)
	assert.Equal(t, domain.SettingsInitial{}, f.vm.State())
}

func TestSettings_ChangeModeIsObserved(t *testing.T) {
	f := newSettingsFixture(t, 0, &domain.Configuration{Mode: domain.ModeOnline, Credential: validCredential})
	f.loaded(t)

	f.vm.Dispatch(domain.ChangeMode{Mode: domain.ModeOffline})
	s := f.waitSuccess(t, func(s domain.SettingsSuccess) bool { return s.Configuration.Mode == domain.ModeOffline })
	assert.Equal(t, validCredential, s.Configuration.Credential, "changing mode keeps the credential")

	f.vm.Dispatch(domain.ChangeMode{Mode: domain.ModeOnline})
	f.waitSuccess(t, func(s domain.SettingsSuccess) bool { return s.Configuration.Mode == domain.ModeOnline })
}

func TestSettings_ChangeModeInvalid(t *testing.T) {
	f := newSettingsFixture(t, 0, nil)
	f.loaded(t)

	f.vm.Dispatch(domain.ChangeMode{Mode: domain.Mode("airplane")})
	require.Eventually(t, func() bool { return len(f.effects.toasts()) == 1 }, waitFor, 5*time.Millisecond)

	stored, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeOnline, stored.Mode)
}

func TestSettings_NavigateBack(t *testing.T) {
	f := newSettingsFixture(t, 0, nil)

	f.vm.Dispatch(domain.NavigateBack{})
	require.Eventually(t, func() bool { return len(f.effects.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, domain.Navigate{Destination: domain.DestinationBack}, f.effects.all()[0])
}

// scriptedObserver fails the first fails calls, then streams updates.
type scriptedObserver struct {
	fails   int
	calls   int
	err     error
	updates chan domain.ConfigurationUpdate

	streams atomic.Int32 // streams opened
	live    atomic.Int32 // streams still relaying
}

func (o *scriptedObserver) Execute(ctx context.Context) (<-chan domain.ConfigurationUpdate, error) {
	o.calls++
	if o.calls <= o.fails {
		return nil, o.err
	}
	out := make(chan domain.ConfigurationUpdate)
	o.streams.Add(1)
	o.live.Add(1)
	go func() {
		defer o.live.Add(-1)
		defer close(out)
		for {
			select {
			case u := <-o.updates:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func TestSettings_LoadFailureIsRecoverable(t *testing.T) {
	readErr := domain.NewDomainError("ConfigurationStore.Get", domain.ErrConfiguration, "credential cannot be decrypted")
	obs := &scriptedObserver{fails: 1, err: readErr, updates: make(chan domain.ConfigurationUpdate, 1)}
	f := newSettingsFixtureWith(t, 0, nil, SettingsUseCases{Observe: obs})

	f.vm.Dispatch(domain.SettingsLoaded{})
	require.Eventually(t, func() bool {
		_, ok := f.vm.State().(domain.SettingsFailed)
		return ok
	}, waitFor, 5*time.Millisecond)

	failed := f.vm.State().(domain.SettingsFailed)
	assert.True(t, failed.Recoverable)
	assert.Equal(t, uxerror.Humanize(readErr).Banner(), failed.Message)

	obs.updates <- domain.ConfigurationUpdate{Configuration: domain.DefaultConfiguration()}
	f.vm.Dispatch(domain.SettingsLoaded{})
	f.waitSuccess(t, func(s domain.SettingsSuccess) bool { return s.Configuration.Mode == domain.ModeOnline })
}

func TestSettings_StreamFailureBeforeLoadCanBeRetried(t *testing.T) {
	obs := &scriptedObserver{updates: make(chan domain.ConfigurationUpdate, 1)}
	f := newSettingsFixtureWith(t, 0, nil, SettingsUseCases{Observe: obs})

	readErr := domain.NewDomainError("ConfigurationStore.Get", domain.ErrConfiguration, "credential cannot be decrypted")
	obs.updates <- domain.ConfigurationUpdate{Err: readErr}
	f.vm.Dispatch(domain.SettingsLoaded{})
	require.Eventually(t, func() bool {
		_, ok := f.vm.State().(domain.SettingsFailed)
		return ok
	}, waitFor, 5*time.Millisecond)

	// The failed stream is closed and SettingsLoaded opens a new one.
	f.vm.Dispatch(domain.SettingsLoaded{})
	require.Eventually(t, func() bool {
		return obs.streams.Load() == 2 && obs.live.Load() == 1
	}, waitFor, 5*time.Millisecond)
	_, loading := f.vm.State().(domain.SettingsLoading)
	assert.True(t, loading, "state = %#v", f.vm.State())

	obs.updates <- domain.ConfigurationUpdate{Configuration: domain.DefaultConfiguration()}
	f.waitSuccess(t, func(s domain.SettingsSuccess) bool { return s.Configuration.Mode == domain.ModeOnline })
}

func TestSettings_RefreshFailureAfterLoadIsToast(t *testing.T) {
	obs := &scriptedObserver{updates: make(chan domain.ConfigurationUpdate, 1)}
	f := newSettingsFixtureWith(t, 0, nil, SettingsUseCases{Observe: obs})

	obs.updates <- domain.ConfigurationUpdate{Configuration: domain.DefaultConfiguration()}
	f.vm.Dispatch(domain.SettingsLoaded{})
	f.waitSuccess(t, func(domain.SettingsSuccess) bool { return true })

	refreshErr := domain.NewDomainError("ConfigurationStore.Get", domain.ErrConfiguration, "stored mode is invalid")
	obs.updates <- domain.ConfigurationUpdate{Configuration: domain.DefaultConfiguration(), Err: refreshErr}

	f.effects.waitToast(t, uxerror.Humanize(refreshErr).Message)
	_, ok := f.vm.State().(domain.SettingsSuccess)
	assert.True(t, ok, "a refresh failure keeps the last good configuration")
}

type failingSaver struct{ err error }

func (s failingSaver) Execute(context.Context, domain.Configuration) error { return s.err }

func TestSettings_SaveFailureIsToast(t *testing.T) {
	obs := &scriptedObserver{updates: make(chan domain.ConfigurationUpdate, 1)}
	writeErr := domain.NewDomainError("ConfigurationStore.Save", errors.Join(domain.ErrConfiguration, errors.New("disk full")), "")
	f := newSettingsFixtureWith(t, 0, nil, SettingsUseCases{Observe: obs, Save: failingSaver{err: writeErr}})

	obs.updates <- domain.ConfigurationUpdate{Configuration: domain.DefaultConfiguration()}
	f.vm.Dispatch(domain.SettingsLoaded{})
	f.waitSuccess(t, func(domain.SettingsSuccess) bool { return true })

	f.vm.Dispatch(domain.SaveCredential{})
	f.effects.waitToast(t, uxerror.Humanize(writeErr).Message)
	flush(t, f.vm.own)
	assert.False(t, f.vm.State().(domain.SettingsSuccess).Saved)
}

func TestSettings_CloseIsIdempotentAndStopsDispatch(t *testing.T) {
	f := newSettingsFixture(t, 0, nil)
	f.loaded(t)

	f.vm.Close()
	f.vm.Close()
	f.vm.Dispatch(domain.ChangeMode{Mode: domain.ModeOffline})

	stored, err := f.repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeOnline, stored.Mode)
}
