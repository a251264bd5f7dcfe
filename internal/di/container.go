package di

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	alertService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/alert/service"
	feedService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/feed/service"
	intakeService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/intake/service"
	messageRepo "github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/repository"
	messageService "github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/service"
	"github.com/cwmonitor/fraud-monitor-bot/internal/ocr"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/config"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/ratelimit"
	httpServer "github.com/cwmonitor/fraud-monitor-bot/internal/transport/http"
	telegramHandler "github.com/cwmonitor/fraud-monitor-bot/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Message Repository
	do.Provide(injector, func(i do.Injector) (messageRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := messageRepo.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			return nil, oops.With("database_path", cfg.DatabasePath, "context", "failed to open message store").Wrap(err)
		}
		return repo, nil
	})

	// Register Rate Limiter
	do.Provide(injector, func(i do.Injector) (*ratelimit.Limiter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return ratelimit.New(cfg.RateLimitPerMinute, time.Duration(cfg.RateIdleTTLSeconds)*time.Second), nil
	})

	// Register Alert Service
	do.Provide(injector, func(i do.Injector) (*alertService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return alertService.New(cfg.Rules()), nil
	})

	// Register Message Service
	do.Provide(injector, func(i do.Injector) (*messageService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[messageRepo.Repository](i)
		limiter := do.MustInvoke[*ratelimit.Limiter](i)
		return messageService.New(repo, limiter, cfg.AllowedSources, cfg.MaxMessageLength), nil
	})

	// Register OCR Extractor
	do.Provide(injector, func(i do.Injector) (*ocr.Extractor, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return ocr.New(cfg.OCRLanguages, cfg.MaxImageSizeMB, cfg.OCRMaxTextLength), nil
	})

	// Register Intake Service
	do.Provide(injector, func(i do.Injector) (*intakeService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		messages := do.MustInvoke[*messageService.Service](i)
		alerts := do.MustInvoke[*alertService.Service](i)
		extractor := do.MustInvoke[*ocr.Extractor](i)
		return intakeService.New(messages, alerts, extractor, cfg.OCRMaxTextLength), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		repo := do.MustInvoke[messageRepo.Repository](i)
		return feedService.New(repo), nil
	})

	// Register Telegram Handler
	do.Provide(injector, func(i do.Injector) (*telegramHandler.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		intake := do.MustInvoke[*intakeService.Service](i)
		return telegramHandler.New(cfg, intake), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		feeds := do.MustInvoke[*feedService.Service](i)
		intake := do.MustInvoke[*intakeService.Service](i)
		server := httpServer.New(cfg, feeds, intake)
		server.SetLogger(slog.Default())
		return server, nil
	})

	// Register Bot (needs the handler to be ready)
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		handler := do.MustInvoke[*telegramHandler.Handler](i)

		opts := []bot.Option{
			bot.WithDefaultHandler(handler.HandleUpdate),
		}

		b, err := bot.New(cfg.TelegramBotToken, opts...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}
		return b, nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	ctx := context.Background()

	// Shutdown bot if it exists
	if b, err := do.Invoke[*bot.Bot](injector); err == nil && b != nil {
		b.Close(ctx)
	}

	// Stop the rate-limiter janitor if it exists
	if limiter, err := do.Invoke[*ratelimit.Limiter](injector); err == nil && limiter != nil {
		limiter.Stop()
	}

	// Close the message store if it exists
	if repo, err := do.Invoke[messageRepo.Repository](injector); err == nil && repo != nil {
		if err := repo.Close(); err != nil {
			return oops.With("context", "failed to close message store").Wrap(err)
		}
	}

	return nil
}
