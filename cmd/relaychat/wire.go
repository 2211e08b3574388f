package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"relaychat/internal/adapter/relay"
	"relaychat/internal/adapter/store"
	"relaychat/internal/domain"
	"relaychat/internal/infra/config"
	"relaychat/internal/security"
	"relaychat/internal/usecase"
	"relaychat/internal/usecase/eventbus"
	"relaychat/internal/viewmodel"
)

// components holds everything a presentation surface needs.
type components struct {
	Bus      *eventbus.Bus
	Chat     *viewmodel.ChatViewModel
	Settings *viewmodel.SettingsViewModel
}

// initComponents wires storage, the relay gateway, use cases and view models.
// The returned cleanup closes them in reverse order.
func initComponents(cfg *config.Config, log *slog.Logger) (*components, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// 1. Preferences
	if err := ensureDir(cfg.Store.Path); err != nil {
		return nil, nil, fmt.Errorf("store dir: %w", err)
	}
	prefs, err := store.OpenPreferences(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() {
		if err := prefs.Close(); err != nil {
			log.Warn("preferences close failed", "error", err)
		}
	})

	// 2. Credential sealing
	var sealer *security.Sealer
	if cfg.Store.Passphrase != "" {
		sealer, err = security.NewSealer(cfg.Store.Passphrase)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("sealer: %w", err)
		}
		cleanups = append(cleanups, sealer.Zeroize)
	}

	// 3. Repositories
	configs := store.NewConfigurationStore(prefs, sealer, log)
	messages := store.NewMessageStore(log)
	drafts := store.NewSavedState()

	// 4. Relay gateway
	var caller relay.Caller = relay.NewHTTPCaller(cfg.Relay, log)
	caller = relay.NewGuardedCaller(caller, cfg.Relay, log)
	gateway := relay.NewGateway(caller, configs, cfg.Relay, log)

	// 5. Event bus
	bus := eventbus.New(log)
	unsub := bus.SubscribeAll(logEvent(log))
	cleanups = append(cleanups, func() {
		unsub()
		bus.Close()
	})

	// 6. View models
	chat := viewmodel.NewChatViewModel(viewmodel.ChatUseCases{
		Send:    usecase.NewSendMessage(messages, gateway, bus, log),
		Retry:   usecase.NewRetryMessage(messages, gateway, bus, log),
		Observe: usecase.NewObserveMessages(messages),
		Clear:   usecase.NewClearConversation(messages, bus),
	}, drafts, cfg.Chat.EffectBuffer, log)
	cleanups = append(cleanups, chat.Close)

	settings := viewmodel.NewSettingsViewModel(viewmodel.SettingsUseCases{
		Save:    usecase.NewSaveConfiguration(configs, bus),
		Mode:    usecase.NewChangeMode(configs, bus),
		Observe: usecase.NewObserveConfiguration(configs),
	}, drafts, cfg.Chat.EffectBuffer, cfg.Chat.SavedFlash, log)
	cleanups = append(cleanups, settings.Close)

	return &components{Bus: bus, Chat: chat, Settings: settings}, cleanup, nil
}

// logEvent records lifecycle events in the activity log.
func logEvent(log *slog.Logger) domain.EventHandler {
	return func(_ context.Context, ev domain.Event) {
		log.Info("event", "type", string(ev.Type), "payload", string(ev.Payload))
	}
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dbPath), 0o700)
}
