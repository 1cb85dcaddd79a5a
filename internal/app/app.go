package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"Web3Scanner/internal/adapters"
	"Web3Scanner/internal/backoff"
	"Web3Scanner/internal/config"
	"Web3Scanner/internal/digest"
	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/infrastructure/llm"
	"Web3Scanner/internal/infrastructure/scheduler"
	"Web3Scanner/internal/infrastructure/storage"
	"Web3Scanner/internal/infrastructure/telegram"
	"Web3Scanner/internal/logging"
	"Web3Scanner/internal/ports"
	"Web3Scanner/internal/scoring"
	"Web3Scanner/internal/store"
	"Web3Scanner/internal/usecase"
)

// Application wires configuration to the pipeline and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	coordinator *usecase.Coordinator
	notifier    ports.Notifier
	scheduler   ports.Scheduler
	repo        *storage.SQLiteRepository
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	httpClient := &http.Client{Timeout: cfg.Backoff.FetchTimeout.Std()}
	sources, err := adapters.NewRegistry().Build(cfg.Sources, httpClient, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	var repo *storage.SQLiteRepository
	storeOpts := []store.Option{}
	if cfg.Storage.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		repo, err = storage.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open signal repository: %w", err)
		}
		storeOpts = append(storeOpts, store.WithRepository(repo))
	}

	windowStore := store.New(logging.Component(baseLogger, "store"), storeOpts...)
	controller := backoff.New(backoff.Config{
		Base:         cfg.Backoff.Base.Std(),
		Max:          cfg.Backoff.Max.Std(),
		FetchTimeout: cfg.Backoff.FetchTimeout.Std(),
	}, logging.Component(baseLogger, "backoff"))

	var narrative ports.NarrativeClient
	if cfg.Narrative.APIKey != "" {
		narrative = llm.NewNarrativeClient(cfg.Narrative)
	}

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		Sources:    sources,
		Controller: controller,
		Store:      windowStore,
		Engine:     scoring.NewEngine(cfg.Scoring.SourceWeights),
		Composer:   digest.NewComposer(cfg.Digest.MaxItems),
		Narrative:  narrative,
		Logger:     logging.Component(baseLogger, "coordinator"),
	})

	var notifier ports.Notifier
	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		coordinator: coordinator,
		notifier:    notifier,
		scheduler:   scheduler.NewTickerScheduler(cfg.Scheduler.Interval()),
		repo:        repo,
	}, nil
}

// Coordinator exposes the pipeline facade to command layers.
func (a *Application) Coordinator() *usecase.Coordinator {
	return a.coordinator
}

// Run rehydrates the window store, starts scheduled ingestion, and blocks
// until the context is cancelled. Each cycle is followed by a daily-brief
// push when a notifier is configured.
func (a *Application) Run(ctx context.Context) error {
	if err := a.coordinator.LoadStore(ctx); err != nil {
		return fmt.Errorf("rehydrate store: %w", err)
	}

	job := func(trigger time.Time) {
		report := a.coordinator.RunIngestionCycle(ctx)
		if a.notifier == nil {
			return
		}
		if report.NewCount == 0 && len(report.FailedSources) == 0 {
			a.logger.Debug("no new signals, skipping push")
			return
		}

		d, err := a.coordinator.GetDigest(ctx, domain.ViewDailyBrief, trigger)
		if err != nil {
			a.logger.Error("compose daily brief", "error", err)
			return
		}
		if err := a.notifier.PublishDigest(ctx, d.Rendered); err != nil {
			a.logger.Error("publish daily brief", "error", err)
		}
	}

	if err := a.scheduler.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	if err := a.scheduler.Stop(context.Background()); err != nil {
		a.logger.Warn("stop scheduler", "error", err)
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Warn("close repository", "error", err)
		}
	}
	return nil
}
