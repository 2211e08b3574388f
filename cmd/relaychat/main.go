package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relaychat/internal/adapter/bridge"
	"relaychat/internal/adapter/tui/app"
	"relaychat/internal/infra/config"
	"relaychat/internal/infra/logger"
	"relaychat/internal/infra/tracer"
)

var version = "dev"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runChat(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "serve: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			os.Exit(1)
		}
	case "version":
		fmt.Printf("relaychat %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Print(`relaychat - terminal chat client for an AI relay

Usage:
  relaychat [--config PATH]          Open the chat screen
  relaychat serve [--config PATH]    Serve the chat over WebSocket
  relaychat doctor [--config PATH]   Check configuration and connectivity
  relaychat version                  Print the version
  relaychat help                     Show this message

Keys (chat):
  Enter         send            Alt+Enter   new line
  Ctrl+L        clear           Ctrl+R      retry last reply
  Ctrl+S        settings        Ctrl+A      snackbar action
  Esc           dismiss error   Ctrl+C      quit

Environment:
  RELAYCHAT_CONFIG          config file (default relaychat.yaml)
  RELAYCHAT_STORE_KEY       passphrase that encrypts the stored credential
  RELAYCHAT_BRIDGE_TOKEN    token WebSocket clients must present
`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("RELAYCHAT_CONFIG"); p != "" {
		return p
	}
	return "relaychat.yaml"
}

// setup loads the config and starts logging and tracing. The terminal UI owns
// the screen, so console log outputs are discarded when tui is set.
func setup(ctx context.Context, tui bool) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}

	var log *slog.Logger
	logCloser := func() error { return nil }
	switch out := strings.ToLower(cfg.Logger.Output); {
	case tui && (out == "" || out == "stderr" || out == "stdout"):
		log = logger.Discard()
	default:
		log, logCloser, err = logger.New(cfg.Logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("logger: %w", err)
		}
	}

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		logCloser()
		return nil, nil, nil, fmt.Errorf("tracer: %w", err)
	}

	teardown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
		logCloser()
	}
	return cfg, log, teardown, nil
}

func runChat() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, log, teardown, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer teardown()

	comp, cleanup, err := initComponents(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info("relaychat starting", "relay", cfg.Relay.BaseURL, "store", cfg.Store.Path,
		"encryption", cfg.Store.Passphrase != "")

	return app.Run(ctx, app.Deps{
		Chat:     comp.Chat,
		Settings: comp.Settings,
		Markdown: cfg.Chat.Markdown,
		Logger:   log,
	})
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, log, teardown, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer teardown()

	comp, cleanup, err := initComponents(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Bridge.Token == "" {
		log.Warn("bridge token not set, any local client may connect")
	}

	srv := bridge.NewServer(comp.Chat, comp.Bus, bridge.NewTokenAuth(cfg.Bridge.Token), cfg.Bridge.Addr, log,
		bridge.WithConnectLimit(cfg.Bridge.ConnectsPerMinute, cfg.Bridge.ConnectBurst))
	log.Info("relaychat serving", "addr", cfg.Bridge.Addr, "relay", cfg.Relay.BaseURL)
	return srv.Start(ctx)
}
