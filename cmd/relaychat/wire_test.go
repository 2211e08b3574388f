package main

import (
	"testing"
	"time"

	"relaychat/internal/domain"
	"relaychat/internal/infra/config"
	"relaychat/internal/infra/logger"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInitComponents_InMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Path = ":memory:"
	cfg.Store.Passphrase = "correct horse battery staple"

	comp, cleanup, err := initComponents(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("initComponents: %v", err)
	}
	defer cleanup()

	comp.Chat.Dispatch(domain.ScreenLoaded{})
	waitUntil(t, "chat load", func() bool {
		_, ok := comp.Chat.State().(domain.Success)
		return ok
	})

	comp.Settings.Dispatch(domain.SettingsLoaded{})
	waitUntil(t, "settings load", func() bool {
		_, ok := comp.Settings.State().(domain.SettingsSuccess)
		return ok
	})
	s := comp.Settings.State().(domain.SettingsSuccess)
	if s.Configuration.Mode != domain.ModeOnline {
		t.Errorf("default mode = %s, want online", s.Configuration.Mode)
	}
}

func TestEnsureDir(t *testing.T) {
	if err := ensureDir(":memory:"); err != nil {
		t.Errorf("memory store: %v", err)
	}
	path := t.TempDir() + "/nested/dir/relaychat.db"
	if err := ensureDir(path); err != nil {
		t.Fatalf("ensureDir: %v", err)
	}
}
