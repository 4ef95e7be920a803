package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/apkbuilder/internal/builds"
	"git.home.luguber.info/inful/apkbuilder/internal/capacitor"
	"git.home.luguber.info/inful/apkbuilder/internal/config"
	"git.home.luguber.info/inful/apkbuilder/internal/events"
	"git.home.luguber.info/inful/apkbuilder/internal/eventstore"
	"git.home.luguber.info/inful/apkbuilder/internal/git"
	"git.home.luguber.info/inful/apkbuilder/internal/janitor"
	"git.home.luguber.info/inful/apkbuilder/internal/ledger"
	"git.home.luguber.info/inful/apkbuilder/internal/metrics"
	"git.home.luguber.info/inful/apkbuilder/internal/server"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" default:"1" help:"Start the build service"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "serve":
		if err := runServe(CLI.Config); err != nil {
			slog.Error("Service failed", "error", err)
			os.Exit(1)
		}
	default:
		_ = ctx.PrintUsage(false)
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	buildLedger := ledger.New(cfg.Ledger.Path, cfg.Ledger.MaxRecords)

	var journal eventstore.Store = eventstore.NoopStore{}
	if cfg.Events.JournalPath != "" {
		sqliteStore, err := eventstore.NewSQLiteStore(cfg.Events.JournalPath)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		journal = sqliteStore
	}

	publisher := events.NewPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
	defer publisher.Close()

	acquirer := git.NewClient(cfg.Source)
	packager := capacitor.NewBuilder(&capacitor.ExecRunner{Timeout: cfg.Builds.ToolTimeout}, recorder)

	service := builds.NewService(buildLedger, acquirer, packager, builds.Options{
		AllowedHost: cfg.Source.AllowedHost,
		TempDir:     cfg.Builds.TempDir,
		DataDir:     cfg.Builds.DataDir,
		Workers:     cfg.Builds.Workers,
		Journal:     journal,
		Publisher:   publisher,
		Metrics:     recorder,
	})

	sweeper, err := janitor.New(cfg.Builds.TempDir, cfg.Janitor.Interval, cfg.Janitor.TTL)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Stop(); err != nil {
			slog.Warn("Janitor shutdown failed", "error", err)
		}
	}()

	handlers := server.NewHandlers(service, buildLedger, journal, cfg.Builds.DataDir, cfg.Server.PublicHost)
	srv := server.New(cfg.Server.Listen, handlers, registry)

	// Hot-reload the runtime tunables on config file changes.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		buildLedger.SetMaxRecords(next.Ledger.MaxRecords)
		sweeper.SetTTL(next.Janitor.TTL)
	})
	if err != nil {
		slog.Warn("Config watcher unavailable", "error", err)
	} else {
		if err := watcher.Start(watchCtx); err != nil {
			slog.Warn("Config watcher failed to start", "error", err)
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	// In-flight pipelines finish (bounded); completion is observable via the
	// ledger only, so interrupting them would strand processing records.
	if err := service.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Pipelines still running at shutdown deadline", "error", err)
	}
	return nil
}
