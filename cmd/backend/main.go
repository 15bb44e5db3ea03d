package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/suma/external/audio"
	configloader "github.com/foxseedlab/suma/external/config"
	"github.com/foxseedlab/suma/external/discord"
	modelimpl "github.com/foxseedlab/suma/external/model"
	repositoryimpl "github.com/foxseedlab/suma/external/repository"
	transcriberimpl "github.com/foxseedlab/suma/external/transcriber"
	webhookimpl "github.com/foxseedlab/suma/external/webhook"
	"github.com/foxseedlab/suma/internal/config"
	discordpkg "github.com/foxseedlab/suma/internal/discord"
	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/server"
	"github.com/foxseedlab/suma/internal/session"
	"github.com/foxseedlab/suma/internal/support"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/samber/do/v2"
)

const (
	startupTimeout     = 20 * time.Second
	shutdownTimeout    = 30 * time.Second
	retentionInterval  = time.Hour
	supportIdleTimeout = 2 * time.Hour
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "user_transcription", cfg.UserTranscription)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server")
	run(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	triage.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	modelimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	support.RegisterDI(injector)
	server.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) {
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	supportService := do.MustInvoke[*support.Service](injector)
	srv := do.MustInvoke[*server.Server](injector)
	dc := do.MustInvoke[discordpkg.Client](injector)
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	if err := manager.RecoverOrphans(ctx); err != nil {
		slog.Error("failed to recover orphaned consultations", "error", err)
	}
	if dc.Enabled() && cfg.DiscordReportChannelID != "" {
		name, err := dc.ResolveChannelName(cfg.DiscordReportChannelID)
		if err != nil {
			slog.Warn("discord report channel is not reachable", "error", err, "channel_id", cfg.DiscordReportChannelID)
		} else {
			slog.Info("startup: discord report channel resolved", "channel_id", cfg.DiscordReportChannelID, "channel_name", name)
		}
	}
	cancel()

	housekeepingCtx, stopHousekeeping := context.WithCancel(context.Background())
	go runHousekeeping(housekeepingCtx, manager, supportService)

	done := make(chan struct{})
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
	stopHousekeeping()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	manager.Shutdown(shutdownCtx)
}

func runHousekeeping(ctx context.Context, manager *session.Manager, supportService *support.Service) {
	purge := func() {
		if _, err := manager.PurgeExpired(ctx); err != nil {
			slog.Error("failed to purge expired consultations", "error", err)
		}
		if n := supportService.PurgeIdle(supportIdleTimeout); n > 0 {
			slog.Info("idle support conversations removed", "count", n)
		}
	}
	purge()
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
