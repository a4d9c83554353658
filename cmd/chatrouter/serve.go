package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrouter/internal/audit"
	"chatrouter/internal/bus"
	"chatrouter/internal/channel"
	"chatrouter/internal/config"
	"chatrouter/internal/dispatch"
	"chatrouter/internal/domain"
	"chatrouter/internal/metrics"
	"chatrouter/internal/router"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout        = 10 * time.Second
	auditRetentionInterval = time.Hour
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start all enabled channels and the router",
		Long:  "Loads listener declarations, starts every enabled channel and routes their events until Ctrl+C.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := newLogger(cfg.General)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = log

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	reg, n, err := buildRegistry(cfg, logger)
	if err != nil {
		if cfg.Listeners.Strict {
			return fmt.Errorf("listeners: %w", err)
		}
		logger.Warn("some listeners were skipped", "err", err)
	}
	if n == 0 {
		logger.Warn("no listeners registered; events will be dropped", "paths", cfg.Listeners.Paths)
	}
	reg.Freeze()

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithParallelism(cfg.Dispatch.Parallelism),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, dispatch.WithObserver(metrics.NewObserver(metrics.Collector)))
	}

	var journal *audit.Store
	if cfg.Audit.Enabled {
		journal, err = audit.Open(ctx, cfg.Audit.DBPath,
			audit.WithLogger(logger), audit.WithMatchedOnly(cfg.Audit.MatchedOnly))
		if err != nil {
			return fmt.Errorf("audit journal: %w", err)
		}
		defer journal.Close()
		opts = append(opts, dispatch.WithObserver(journal))
	}

	dispatcher := dispatch.New(reg, opts...)

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(cfg.Dispatch.BusBuffer, logger,
		bus.WithPublishTimeout(time.Duration(cfg.Dispatch.BusPublishTimeoutSeconds)*time.Second))

	r := router.New(router.Config{
		Source:              messageBus,
		Dispatcher:          dispatcher,
		Logger:              logger,
		MaxConcurrentEvents: cfg.Dispatch.MaxConcurrentEvents,
		EventTimeout:        time.Duration(cfg.Dispatch.EventTimeoutSeconds) * time.Second,
	})

	channels := buildChannels(cfg)
	if len(channels) == 0 {
		return errors.New("no channels enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.Run(gctx)
		return nil
	})
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, metrics.Collector, messageBus, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if journal != nil {
		retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			journal.RunRetention(gctx, retention, auditRetentionInterval)
			return nil
		})
	}
	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			if err := ch.Start(gctx, messageBus); err != nil {
				logger.Error("channel error", "channel", ch.Name(), "err", err)
			}
			// Ending the terminal session stops a terminal-only router.
			if ch.Name() == "cli" && len(channels) == 1 {
				cancel()
			}
			return nil
		})
		logger.Info("channel enabled", "channel", ch.Name())
	}

	logger.Info("chatrouter started. Press Ctrl+C to stop.", "listeners", n)

	<-gctx.Done()
	logger.Info("shutting down...")

	done := make(chan error, 1)
	go func() {
		for _, ch := range channels {
			if err := ch.Stop(); err != nil {
				logger.Warn("channel stop failed", "channel", ch.Name(), "err", err)
			}
		}
		err := g.Wait()
		messageBus.Close()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
		return errors.New("shutdown timed out")
	}
}

// buildChannels creates every enabled channel adapter.
func buildChannels(cfg *config.Config) []domain.Channel {
	var channels []domain.Channel
	ch := cfg.Channels

	if ch.Telegram.Enabled {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:     ch.Telegram.Token,
			AllowFrom: ch.Telegram.AllowFrom,
			ParseMode: ch.Telegram.ParseMode,
			Logger:    logger,
		}))
	}
	if ch.Discord.Enabled {
		channels = append(channels, channel.NewDiscord(channel.DiscordConfig{
			Token:   ch.Discord.Token,
			GuildID: ch.Discord.GuildID,
			Logger:  logger,
		}))
	}
	if ch.Slack.Enabled {
		channels = append(channels, channel.NewSlack(channel.SlackConfig{
			BotToken: ch.Slack.BotToken,
			AppToken: ch.Slack.AppToken,
			Logger:   logger,
		}))
	}
	if ch.Webhook.Enabled {
		channels = append(channels, channel.NewWebhook(channel.WebhookConfig{
			Port:   ch.Webhook.Port,
			Path:   ch.Webhook.Path,
			Secret: ch.Webhook.Secret,
			BotID:  cfg.General.BotID,
			Logger: logger,
		}))
	}
	if ch.WebSocket.Enabled {
		channels = append(channels, channel.NewWebSocketChannel(channel.WSConfig{
			Port:   ch.WebSocket.Port,
			Path:   ch.WebSocket.Path,
			BotID:  cfg.General.BotID,
			Logger: logger,
		}))
	}
	if ch.CLI.Enabled {
		channels = append(channels, channel.NewCLI(channel.CLIConfig{
			Logger: logger,
			User:   ch.CLI.User,
			BotID:  cfg.General.BotID,
		}))
	}
	return channels
}
