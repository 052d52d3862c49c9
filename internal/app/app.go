// Package app wires configuration, storage, services and the HTTP server
// into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"libraryhub/internal/adapters/http/handlers"
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/http/routes"
	"libraryhub/internal/adapters/http/views"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/services"
	"libraryhub/internal/metrics"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Option customises an App; tests use it to pin the clock and capture mail
type Option func(*options)

type options struct {
	clock  services.Clock
	mailer services.Mailer
}

// WithClock replaces the wall clock used by every service
func WithClock(clock services.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithMailer replaces the configured SMTP or log mailer
func WithMailer(mailer services.Mailer) Option {
	return func(o *options) { o.mailer = mailer }
}

// App is a fully wired LibraryHub server
type App struct {
	Fiber *fiber.App

	cfg           *config.Config
	logger        *slog.Logger
	registry      *prometheus.Registry
	notifications *services.NotificationService
	jobs          *services.JobService
	cancel        context.CancelFunc
}

// New builds the application on an open database
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mailer == nil {
		o.mailer = mailerFor(cfg.Mail, logger)
	}

	engine := views.New()
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// Repositories & services
	store := repositories.NewStore(db)
	notifications := services.NewNotificationService(
		o.mailer,
		cfg.Notify.QueueSize,
		time.Duration(cfg.Notify.SendTimeoutSeconds)*time.Second,
		collector,
		logger,
	)
	authService := services.NewAuthService(store.Users(), store.RefreshTokens(), cfg.JWT, o.clock, logger)
	userService := services.NewUserService(store, o.clock, logger)
	catalogService := services.NewCatalogService(store, o.clock, logger)
	ledgerService := services.NewLedgerService(store, cfg.Lending, notifications, collector, o.clock, logger)
	dashboardService := services.NewDashboardService(store, o.clock)
	jobService := services.NewJobService(store, authService, notifications, collector, cfg.Lending, o.clock, logger)

	sessions := middleware.NewSessionStore(cfg)

	app := fiber.New(fiber.Config{
		AppName:      "LibraryHub API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
		Views:        engine,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	middleware.Setup(app, cfg)

	routes.Setup(app, routes.Deps{
		Config: cfg,
		Handlers: routes.Handlers{
			Health:    handlers.NewHealthHandler(store, cfg.AppMode),
			Auth:      handlers.NewAuthHandler(authService),
			User:      handlers.NewUserHandler(userService),
			Book:      handlers.NewBookHandler(catalogService),
			Checkout:  handlers.NewCheckoutHandler(ledgerService),
			Dashboard: handlers.NewDashboardHandler(dashboardService),
			Page:      handlers.NewPageHandler(sessions, authService, userService, catalogService, ledgerService, dashboardService, logger),
		},
		Sessions: sessions,
		Users:    userService,
		Gatherer: registry,
	})

	return &App{
		Fiber:         app,
		cfg:           cfg,
		logger:        logger,
		registry:      registry,
		notifications: notifications,
		jobs:          jobService,
	}, nil
}

func mailerFor(cfg config.MailConfig, logger *slog.Logger) services.Mailer {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not set, mail will be logged instead of sent")
		return services.NewLogMailer(logger)
	}
	return services.NewSMTPMailer(services.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

// Start launches the notification worker and, when enabled, the job scheduler
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.notifications.Start(ctx)

	if !a.cfg.Jobs.Enabled {
		a.logger.Info("background jobs disabled")
		return nil
	}
	return a.jobs.Start(services.JobSchedule{
		OverdueReminder: a.cfg.Jobs.OverdueReminderSpec,
		TokenCleanup:    a.cfg.Jobs.TokenCleanupSpec,
	})
}

// Listen serves HTTP on the configured port until Shutdown
func (a *App) Listen() error {
	a.logger.Info("🚀 Server starting",
		slog.String("port", a.cfg.Port),
		slog.String("mode", a.cfg.AppMode),
	)
	return a.Fiber.Listen(":" + a.cfg.Port)
}

// Shutdown stops accepting requests, waits for running jobs, then drains
// queued mail
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.cfg.Jobs.Enabled {
		a.jobs.Stop()
	}
	a.notifications.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	return errors.Join(errs...)
}
