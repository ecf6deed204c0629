package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/lumebot/lume/internal/audit"
	"github.com/lumebot/lume/internal/bot"
	"github.com/lumebot/lume/internal/chat"
	"github.com/lumebot/lume/internal/config"
	"github.com/lumebot/lume/internal/discord"
	"github.com/lumebot/lume/internal/governor"
	"github.com/lumebot/lume/internal/history"
	"github.com/lumebot/lume/internal/image"
	"github.com/lumebot/lume/internal/logger"
	"github.com/lumebot/lume/internal/server"
	"github.com/lumebot/lume/internal/version"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideGovernor,
			provideAudit,
			history.NewStore,
			provideCompleter,
			provideImageClient,
			provideAdapter,
			provideBotService,
			provideServer,
		),
		fx.Invoke(
			wireAdapter,
			startAdapter,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideGovernor(cfg config.Config) *governor.Governor {
	return governor.New(cfg.Limits.Quota, cfg.Limits.Window())
}

func provideAudit(cfg config.Config) *audit.Log {
	return audit.NewLog(cfg.Limits.AuditCapacity)
}

func provideCompleter(log *slog.Logger, cfg config.Config) bot.Completer {
	g := cfg.Groq
	return chat.NewGroqClient(log, g.BaseURL, g.APIKey, g.Model, g.Temperature, g.MaxTokens, g.Timeout())
}

func provideImageClient(log *slog.Logger, cfg config.Config) *image.Client {
	timeout := time.Duration(cfg.Image.TimeoutSeconds) * time.Second
	return image.NewClient(log, cfg.Image.Endpoint, cfg.Image.APIKey, timeout)
}

func provideAdapter(log *slog.Logger, cfg config.Config) (*discord.Adapter, error) {
	return discord.New(log, cfg.Discord.BotToken, cfg.Discord.CommandPrefix)
}

func provideBotService(log *slog.Logger, cfg config.Config, gov *governor.Governor, store *history.Store, auditLog *audit.Log, completer bot.Completer, adapter *discord.Adapter) *bot.Service {
	return bot.NewService(log, gov, store, auditLog, completer, adapter, cfg.Chat.SystemPrompt, cfg.Discord.AdminID)
}

func provideServer(log *slog.Logger, cfg config.Config, service *bot.Service) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, service)
}

func wireAdapter(adapter *discord.Adapter, service *bot.Service, images *image.Client) {
	adapter.SetService(service)
	adapter.SetImageClient(images)
}

func startAdapter(lc fx.Lifecycle, logger *slog.Logger, adapter *discord.Adapter) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			fmt.Printf("Starting Lume %s\n", version.GetInfo())
			return adapter.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return adapter.Stop()
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
