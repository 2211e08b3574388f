package viewmodel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relaychat/internal/adapter/store"
	"relaychat/internal/domain"
	"relaychat/internal/infra/watch"
	"relaychat/internal/uxerror"
)

// Settings toast texts.
const (
	ToastSettingsSaved   = "Settings saved"
	ToastSettingsLoading = "Settings are still loading"
)

// DefaultSavedFlash is how long the Saved flag stays set after a save.
const DefaultSavedFlash = 2 * time.Second

// ConfigurationSaver persists a full configuration value.
type ConfigurationSaver interface {
	Execute(ctx context.Context, cfg domain.Configuration) error
}

// ModeChanger switches the persisted mode.
type ModeChanger interface {
	Execute(ctx context.Context, mode domain.Mode) error
}

// ConfigurationObserver streams the persisted configuration.
type ConfigurationObserver interface {
	Execute(ctx context.Context) (<-chan domain.ConfigurationUpdate, error)
}

// SettingsUseCases groups the operations the settings view model drives.
type SettingsUseCases struct {
	Save    ConfigurationSaver
	Mode    ModeChanger
	Observe ConfigurationObserver
}

// SettingsViewModel orchestrates the settings screen.
type SettingsViewModel struct {
	uc         SettingsUseCases
	drafts     domain.DraftStore
	state      *watch.Value[domain.SettingsState]
	effects    *EffectQueue
	savedFlash time.Duration
	logger     *slog.Logger
	own        *owner

	// Owned by the owner goroutine.
	observing  bool
	obsID      uint64
	nextObsID  uint64
	stopObs    context.CancelFunc
	flashToken uint64
}

// NewSettingsViewModel creates the settings view model in the Initial state.
// A zero savedFlash uses DefaultSavedFlash.
func NewSettingsViewModel(uc SettingsUseCases, drafts domain.DraftStore, effectBuffer int, savedFlash time.Duration, logger *slog.Logger) *SettingsViewModel {
	if savedFlash <= 0 {
		savedFlash = DefaultSavedFlash
	}
	return &SettingsViewModel{
		uc:         uc,
		drafts:     drafts,
		state:      watch.New[domain.SettingsState](domain.SettingsInitial{}),
		effects:    NewEffectQueue(effectBuffer, logger),
		savedFlash: savedFlash,
		logger:     logger.With("component", "settings_viewmodel"),
		own:        newOwner(context.Background()),
	}
}

// State returns the current settings state.
func (vm *SettingsViewModel) State() domain.SettingsState {
	return vm.state.Get()
}

// WatchState streams the current state and every later change until ctx is done.
func (vm *SettingsViewModel) WatchState(ctx context.Context) <-chan domain.SettingsState {
	return vm.state.Subscribe(ctx)
}

// Effects returns the one-time effect queue.
func (vm *SettingsViewModel) Effects() *EffectQueue {
	return vm.effects
}

// CredentialDraft returns the in-progress credential text.
func (vm *SettingsViewModel) CredentialDraft() string {
	return vm.drafts.Get(store.KeyCredentialDraft)
}

// Dispatch submits event for processing in submission order.
func (vm *SettingsViewModel) Dispatch(event domain.SettingsEvent) {
	vm.own.post(func() { vm.handle(event) })
}

// Close cancels in-flight work and waits for every goroutine.
func (vm *SettingsViewModel) Close() {
	vm.own.close()
	vm.effects.Close()
}

func (vm *SettingsViewModel) handle(event domain.SettingsEvent) {
	switch e := event.(type) {
	case domain.SettingsLoaded:
		vm.load()
	case domain.UpdateCredential:
		vm.drafts.Set(store.KeyCredentialDraft, e.Text)
	case domain.SaveCredential:
		vm.save()
	case domain.ChangeMode:
		vm.changeMode(e.Mode)
	case domain.NavigateBack:
		vm.effects.Emit(domain.Navigate{Destination: domain.DestinationBack})
	default:
		vm.logger.Warn("unknown settings event", "type", typeName(event))
	}
}

func (vm *SettingsViewModel) load() {
	switch vm.state.Get().(type) {
	case domain.SettingsInitial, domain.SettingsFailed:
	default:
		return
	}
	if vm.observing {
		return
	}
	vm.state.Set(domain.SettingsLoading{})

	ctx, cancel := context.WithCancel(vm.own.ctx)
	ch, err := vm.uc.Observe.Execute(ctx)
	if err != nil {
		cancel()
		vm.loadFailed(err)
		return
	}
	vm.nextObsID++
	id := vm.nextObsID
	vm.observing, vm.obsID, vm.stopObs = true, id, cancel
	vm.own.spawn(func() {
		for u := range ch {
			if !vm.own.post(func() { vm.applyUpdate(id, u) }) {
				return
			}
		}
		vm.own.post(func() {
			if vm.obsID == id {
				vm.observing = false
			}
		})
	})
}

// stopObserving ends the current stream so the next SettingsLoaded reads
// the configuration again.
func (vm *SettingsViewModel) stopObserving() {
	if vm.stopObs != nil {
		vm.stopObs()
		vm.stopObs = nil
	}
	vm.obsID = 0
	vm.observing = false
}

func (vm *SettingsViewModel) loadFailed(err error) {
	if domain.KindOf(err) == domain.KindCanceled {
		return
	}
	vm.logger.Warn("read configuration failed", "error", err)
	vm.state.Set(domain.SettingsFailed{Message: uxerror.Humanize(err).Banner(), Recoverable: true})
}

func (vm *SettingsViewModel) applyUpdate(obsID uint64, u domain.ConfigurationUpdate) {
	if obsID != vm.obsID {
		return
	}
	if u.Err != nil {
		switch vm.state.Get().(type) {
		case domain.SettingsSuccess:
			if domain.KindOf(u.Err) != domain.KindCanceled {
				vm.logger.Warn("configuration refresh failed", "error", u.Err)
				vm.effects.Emit(domain.ShowToast{Text: uxerror.Humanize(u.Err).Message})
			}
		default:
			vm.stopObserving()
			vm.loadFailed(u.Err)
		}
		return
	}

	saved := false
	if cur, ok := vm.state.Get().(domain.SettingsSuccess); ok {
		saved = cur.Saved
	}
	if vm.drafts.Get(store.KeyCredentialDraft) == "" && u.Configuration.Credential != "" {
		vm.drafts.Set(store.KeyCredentialDraft, u.Configuration.Credential)
	}
	vm.state.Set(domain.SettingsSuccess{Configuration: u.Configuration, Saved: saved})
}

func (vm *SettingsViewModel) save() {
	cur, ok := vm.state.Get().(domain.SettingsSuccess)
	if !ok {
		vm.effects.Emit(domain.ShowToast{Text: ToastSettingsLoading})
		return
	}
	cfg := cur.Configuration
	cfg.Credential = vm.drafts.Get(store.KeyCredentialDraft)

	vm.own.spawn(func() {
		err := vm.uc.Save.Execute(vm.own.ctx, cfg)
		vm.own.post(func() { vm.saveFinished(cfg, err) })
	})
}

func (vm *SettingsViewModel) saveFinished(cfg domain.Configuration, err error) {
	if err != nil {
		if domain.KindOf(err) == domain.KindCanceled {
			return
		}
		vm.logger.Warn("save configuration failed", "kind", string(domain.KindOf(err)), "error", err)
		vm.effects.Emit(domain.ShowToast{Text: uxerror.Humanize(err).Message})
		return
	}

	// The configuration itself arrives through the observation stream.
	next, ok := vm.state.Get().(domain.SettingsSuccess)
	if !ok {
		next = domain.SettingsSuccess{Configuration: cfg}
	}
	next.Saved = true
	vm.state.Set(next)
	vm.effects.Emit(domain.ShowToast{Text: ToastSettingsSaved})

	vm.flashToken++
	token := vm.flashToken
	vm.own.spawn(func() {
		t := time.NewTimer(vm.savedFlash)
		defer t.Stop()
		select {
		case <-t.C:
			vm.own.post(func() { vm.clearSaved(token) })
		case <-vm.own.ctx.Done():
		}
	})
}

func (vm *SettingsViewModel) clearSaved(token uint64) {
	if token != vm.flashToken {
		return
	}
	if cur, ok := vm.state.Get().(domain.SettingsSuccess); ok && cur.Saved {
		cur.Saved = false
		vm.state.Set(cur)
	}
}

func (vm *SettingsViewModel) changeMode(mode domain.Mode) {
	vm.own.spawn(func() {
		err := vm.uc.Mode.Execute(vm.own.ctx, mode)
		if err == nil || domain.KindOf(err) == domain.KindCanceled {
			return
		}
		vm.own.post(func() {
			vm.logger.Warn("change mode failed", "mode", string(mode), "error", err)
			vm.effects.Emit(domain.ShowToast{Text: uxerror.Humanize(err).Message})
		})
	})
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
