// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/healthboard/api/openapi"
	"github.com/bissquit/healthboard/internal/checks"
	"github.com/bissquit/healthboard/internal/config"
	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/health"
	healthpostgres "github.com/bissquit/healthboard/internal/health/postgres"
	"github.com/bissquit/healthboard/internal/identity"
	"github.com/bissquit/healthboard/internal/identity/jwt"
	"github.com/bissquit/healthboard/internal/notifications"
	"github.com/bissquit/healthboard/internal/notifications/mattermost"
	"github.com/bissquit/healthboard/internal/pkg/ctxlog"
	"github.com/bissquit/healthboard/internal/pkg/httputil"
	"github.com/bissquit/healthboard/internal/pkg/metrics"
	"github.com/bissquit/healthboard/internal/pkg/postgres"
	"github.com/bissquit/healthboard/internal/tasks"
	"github.com/bissquit/healthboard/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	cancel        context.CancelFunc

	pool    *tasks.Pool
	runner  *checks.Runner
	health  *health.Service
	started bool
}

// New connects to the database and wires all components. Background workers
// start with Run.
func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := Connect(connectCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := prometheus.Register(metrics.NewDBPoolCollector(db)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			db.Close()
			return nil, fmt.Errorf("register db metrics: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
		cancel: cancel,
		pool: tasks.NewPool(tasks.Config{
			NumWorkers: cfg.Tasks.Workers,
			QueueSize:  cfg.Tasks.QueueSize,
		}),
	}
	// Tasks run on the app context so they outlive the submitting request.
	app.pool.Start(ctx)

	router, err := app.setupRouter()
	if err != nil {
		app.pool.Stop()
		cancel()
		db.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Connect opens the PostgreSQL pool described by cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnectAttempts: cfg.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Start registers built-in services when configured and starts the check
// runner. It is called by Run; tests call it directly.
func (a *App) Start(ctx context.Context) error {
	if a.started {
		return nil
	}
	a.started = true

	if a.config.Checks.RegisterOnStart {
		if _, err := a.health.RegisterBuiltinServices(ctx); err != nil {
			return fmt.Errorf("register health check services: %w", err)
		}
	}

	if a.config.Checks.Enabled {
		a.runner.Start(ctx)
	}
	return nil
}

// Run starts background workers and the HTTP servers.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the check runner, drains background tasks and shuts down
// both servers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	if a.started && a.config.Checks.Enabled {
		a.runner.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func(name string, srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}(name, srv)
	}
	wg.Wait()

	a.pool.Stop()
	a.cancel()
	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Health returns the status service.
func (a *App) Health() *health.Service {
	return a.health
}

// Checks returns the health check runner.
func (a *App) Checks() *checks.Runner {
	return a.runner
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	slugs := expirable.NewLRU[string, string](a.config.Cache.Size, nil, a.config.Cache.TTL)

	notifier, err := a.setupNotifier()
	if err != nil {
		return nil, err
	}

	healthRepo := healthpostgres.NewRepository(a.db)
	a.health = health.NewService(healthRepo, notifier, slugs)
	healthHandler := health.NewHandler(a.health)

	a.runner = checks.NewRunner(checks.RunnerConfig{
		Interval: a.config.Checks.Interval,
		Timeout:  a.config.Checks.Timeout,
	}, a.health, a.backends(slugs)...)
	checksHandler := checks.NewHandler(a.runner)

	identityService := identity.NewService(
		identity.NewStaticRepository(a.config.DomainOperators()),
		jwt.NewAuthenticator(jwt.Config{
			SecretKey:           a.config.JWT.SecretKey,
			AccessTokenDuration: a.config.JWT.AccessTokenDuration,
		}),
	)
	identityHandler := identity.NewHandler(identityService)

	if len(a.config.Operators) == 0 {
		a.logger.Warn("no operators configured: write endpoints are unreachable")
	}

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)
		healthHandler.RegisterRoutes(r)
		checksHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))
			r.Use(httputil.RequireRole(domain.RoleOperator))
			healthHandler.RegisterOperatorRoutes(r)
		})
	})

	return r, nil
}

func (a *App) setupNotifier() (health.StatusNotifier, error) {
	cfg := a.config.Notifications
	a.logger.Info("notifications configured", "enabled", cfg.Enabled())
	if !cfg.Enabled() {
		return nil, nil
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	sender := mattermost.NewSender(mattermost.Config{
		Username: cfg.Username,
		Channel:  cfg.Channel,
	})

	return notifications.NewNotifier(notifications.NotifierConfig{
		WebhookURL:        cfg.WebhookURL,
		BaseURL:           a.config.Server.BaseURL,
		RateLimit:         cfg.RateLimit,
		Burst:             cfg.Burst,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, renderer, sender, a.pool), nil
}

func (a *App) backends(cache checks.Cache) []checks.Backend {
	cfg := a.config.Checks

	backends := []checks.Backend{
		checks.NewDatabaseBackend(a.db),
		checks.NewCacheBackend(cache),
		checks.NewDiskBackend(cfg.DiskPath, cfg.DiskMaxPercent),
		checks.NewMemoryBackend(cfg.MemoryMaxPercent),
		checks.NewStorageBackend(cfg.StorageDir),
		checks.NewTasksBackend(a.pool),
	}

	if cfg.RabbitMQURL != "" {
		backends = append(backends, checks.NewRabbitMQBackend(cfg.RabbitMQURL))
	} else {
		a.logger.Info("rabbitmq check disabled: no url configured")
	}
	return backends
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	if !a.pool.Running() {
		httputil.Text(w, http.StatusServiceUnavailable, "Task pool stopped")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
