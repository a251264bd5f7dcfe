package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/cwmonitor/fraud-monitor-bot/internal/di"
	messageRepo "github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/repository"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/config"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/ratelimit"
	httpServer "github.com/cwmonitor/fraud-monitor-bot/internal/transport/http"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"
)

func main() {
	// Load .env file before anything reads the environment
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Setup structured logging with multiple handlers using slog-multi
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	multiHandler := slogmulti.Fanout(textHandler, jsonHandler)
	logger := slog.New(multiHandler)
	slog.SetDefault(logger)

	// Setup dependency injection
	injector, err := di.Setup()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	cfg := do.MustInvoke[*config.Config](injector)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Wait for the message store before accepting traffic
	repo := do.MustInvoke[messageRepo.Repository](injector)
	if err := repo.WaitReady(ctx); err != nil {
		slog.Error("Message store never became ready", "error", err)
		os.Exit(1)
	}

	// Start the rate-limiter janitor
	limiter := do.MustInvoke[*ratelimit.Limiter](injector)
	limiter.Start()

	// Start HTTP server
	server := do.MustInvoke[*httpServer.Server](injector)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Failed to start HTTP server", "error", err)
			os.Exit(1)
		}
	}()

	// Start Telegram polling
	b := do.MustInvoke[*bot.Bot](injector)
	go b.Start(ctx)

	slog.Info("Fraud monitor bot started", "http_port", cfg.HTTPPort, "database_path", cfg.DatabasePath)
	slog.Info("Press Ctrl+C to stop")

	<-ctx.Done()
	slog.Info("Shutting down...")
}
