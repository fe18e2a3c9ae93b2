package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/kaiwarank/external/config"
	"github.com/foxseedlab/kaiwarank/external/discord"
	notifyimpl "github.com/foxseedlab/kaiwarank/external/notify"
	repositoryimpl "github.com/foxseedlab/kaiwarank/external/repository"
	"github.com/foxseedlab/kaiwarank/internal/bot"
	"github.com/foxseedlab/kaiwarank/internal/config"
	discordpkg "github.com/foxseedlab/kaiwarank/internal/discord"
	"github.com/foxseedlab/kaiwarank/internal/httpapi"
	"github.com/foxseedlab/kaiwarank/internal/observability"
	"github.com/foxseedlab/kaiwarank/internal/ranking"
	"github.com/foxseedlab/kaiwarank/internal/repository"
	"github.com/foxseedlab/kaiwarank/internal/scoring"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	shutdownCloseTimeout  = 30 * time.Second
	httpShutdownTimeout   = 5 * time.Second
	metricsNamespace      = "kaiwarank"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
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
	do.ProvideValue(injector, observability.NewMetrics(metricsNamespace))
	repositoryimpl.RegisterDI(injector)
	notifyimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	scoring.RegisterDI(injector)
	ranking.RegisterDI(injector)
	bot.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*bot.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve bot manager", "error", err)
		os.Exit(1)
	}
	tracker, err := do.Invoke[*scoring.Tracker](injector)
	if err != nil {
		slog.Error("failed to resolve conversation tracker", "error", err)
		os.Exit(1)
	}
	apiServer, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http api server", "error", err)
		os.Exit(1)
	}
	metrics := do.MustInvoke[*observability.Metrics](injector)
	repo := do.MustInvoke[repository.Repository](injector)

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	manager.SetBotUserID(botUserID)

	if err := dc.UpsertGlobalSlashCommands(bot.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err)
		os.Exit(1)
	}

	dc.RegisterMessageCreateHandler(manager.HandleMessageCreate)
	dc.RegisterGuildCreateHandler(manager.HandleGuildCreate)
	dc.RegisterSlashCommandHandler(manager.HandleSlashCommand)
	slog.Info("discord handlers registered", "commands", []string{"ranking", "register"})
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	if open, err := repo.ListConversations(ctx); err != nil {
		slog.Warn("failed to count open conversations at startup", "error", err)
	} else {
		metrics.SetActiveConversations(len(open))
	}

	httpServer := &http.Server{Addr: cfg.WebListenAddr, Handler: apiServer.Router()}
	go func() {
		slog.Info("startup: http api listening", "addr", cfg.WebListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http api failed", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownCloseTimeout)
	defer shutdownCancel()
	if err := tracker.ForceCloseAll(shutdownCtx); err != nil {
		slog.Error("some conversations could not be closed during shutdown", "error", err)
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("http api shutdown failed", "error", err)
	}
}
