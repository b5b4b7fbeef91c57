package app

import (
	"context"
	"fmt"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/handlers"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/services/browser"
	"github.com/davidR-jmd/fb-leads/internal/services/connection"
	"github.com/davidR-jmd/fb-leads/internal/services/direct"
	"github.com/davidR-jmd/fb-leads/internal/services/events"
	"github.com/davidR-jmd/fb-leads/internal/services/ratelimit"
	"github.com/davidR-jmd/fb-leads/internal/services/scheduler"
	"github.com/davidR-jmd/fb-leads/internal/services/search"
	"github.com/davidR-jmd/fb-leads/internal/services/vault"
	"github.com/davidR-jmd/fb-leads/internal/storage"
	"github.com/ternarybob/arbor"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Long-lived handles shared by the services
	Vault   *vault.Vault
	Limiter *ratelimit.Limiter
	Driver  *browser.Driver
	Direct  *direct.Client

	// Services
	ConnectionService interfaces.ConnectionService
	Orchestrator      *search.Orchestrator
	EventService      interfaces.EventService
	SchedulerService  interfaces.SchedulerService

	// HTTP handlers
	LinkedInHandler *handlers.LinkedInHandler
	SessionHandler  *handlers.SessionHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().Msg("Application initialization complete")
	return app, nil
}

// initDatabase opens the Badger store
func (a *App) initDatabase() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	v, err := vault.New(cfg.LinkedIn.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create credential vault: %w", err)
	}
	a.Vault = v

	a.Limiter = ratelimit.NewLimiter(a.StorageManager.RateLimitStorage(), cfg.RateLimit, a.Logger)

	a.Driver = browser.NewDriver(browser.Config{
		BaseURL:           cfg.LinkedIn.BaseURL,
		ProfileDir:        cfg.LinkedIn.ProfileDir,
		UserAgent:         cfg.LinkedIn.UserAgent,
		Locale:            cfg.LinkedIn.Locale,
		Timezone:          cfg.LinkedIn.Timezone,
		Headless:          cfg.LinkedIn.Headless,
		NavigationTimeout: cfg.LinkedIn.NavigationTimeout.Duration,
	}, browser.NewPacer(), a.Logger)

	a.Direct = direct.NewClient(
		direct.WithBaseURL(cfg.LinkedIn.BaseURL),
		direct.WithUserAgent(cfg.LinkedIn.UserAgent),
		direct.WithTimeout(cfg.LinkedIn.RequestTimeout.Duration),
		direct.WithRateLimit(cfg.LinkedIn.RequestsPerSecond),
		direct.WithRetryPolicy(direct.NewRetryPolicy(cfg.LinkedIn.MaxRetries)),
		direct.WithCSRFCache(a.StorageManager.KeyValueStorage(), cfg.LinkedIn.CSRFCacheTTL.Duration),
		direct.WithMaxHTMLPages(cfg.LinkedIn.MaxHTMLSearchPages),
		direct.WithLogger(a.Logger),
	)

	a.ConnectionService = connection.NewManager(
		a.StorageManager.ConnectionStorage(),
		a.Vault,
		a.Driver,
		a.Direct,
		a.Limiter,
		connection.Config{
			MinCookieLength:    cfg.LinkedIn.MinCookieLength,
			DefaultSearchLimit: cfg.Search.DefaultLimit,
			MaxSearchLimit:     cfg.Search.MaxLimit,
		},
		a.Logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eventService, err := events.NewServiceFromConfig(ctx, cfg.Events, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create event service: %w", err)
	}
	a.EventService = eventService
	if err := events.SubscribeLogger(a.EventService, a.Logger); err != nil {
		return err
	}

	a.Orchestrator = search.NewOrchestrator(
		a.StorageManager.SearchSessionStorage(),
		a.Limiter,
		a.Direct,
		a.ConnectionService,
		a.EventService,
		cfg.Search,
		a.Logger,
	)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewService(a.Logger)
		if err := scheduler.RegisterMaintenanceJobs(sched, cfg.Scheduler, cfg.Search.RetentionDays,
			a.ConnectionService, a.Orchestrator, a.Logger); err != nil {
			return fmt.Errorf("failed to register maintenance jobs: %w", err)
		}
		a.SchedulerService = sched
	}

	return nil
}

func (a *App) initHandlers() {
	a.LinkedInHandler = handlers.NewLinkedInHandler(a.ConnectionService, a.Limiter, a.Limiter, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.Orchestrator, a.Limiter, a.Logger)
}

// Start reconciles the stored connection, resumes interrupted sessions and
// starts the maintenance scheduler
func (a *App) Start(ctx context.Context) error {
	if err := a.ConnectionService.Initialize(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to reconcile stored LinkedIn connection")
	}

	if a.Config.Search.ResumeOnStartup {
		resumed, err := a.Orchestrator.ResumeInterrupted(ctx)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to resume interrupted search sessions")
		} else if resumed > 0 {
			a.Logger.Info().Int("sessions", resumed).Msg("Resumed interrupted search sessions")
		}
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	return nil
}

// Close releases every long-lived handle. Running sessions are abandoned and
// resume on the next start.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.Driver != nil {
		if err := a.Driver.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close browser")
		}
	}

	if a.Direct != nil {
		a.Direct.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
