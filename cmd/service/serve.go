package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pearquote/quote-service/internal/adapters/clients"
	"github.com/pearquote/quote-service/internal/adapters/clients/acl"
	"github.com/pearquote/quote-service/internal/adapters/flags"
	"github.com/pearquote/quote-service/internal/adapters/http"
	"github.com/pearquote/quote-service/internal/adapters/http/handlers"
	"github.com/pearquote/quote-service/internal/adapters/http/middleware"
	"github.com/pearquote/quote-service/internal/app"
	"github.com/pearquote/quote-service/internal/platform/config"
	"github.com/pearquote/quote-service/internal/platform/telemetry"
	"github.com/pearquote/quote-service/internal/ports"
)

func serve(ctx context.Context, profile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Load and validate configuration
	cfg, err := loadConfig(profile)
	if err != nil {
		return err
	}

	// 2. Initialize logging
	logger := newLogger(cfg)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 3. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Insecure:     cfg.App.Environment == "local",
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	businessMetrics, err := telemetry.NewBusinessMetrics()
	if err != nil {
		return fmt.Errorf("creating business metrics: %w", err)
	}

	// 4. Open the entity store
	store, err := openStore(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("store close error", slog.Any("error", closeErr))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	// 5. Health registry and Prometheus registry
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(store); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		store.Collector(),
	)

	// 6. AI provider (ACL over the instrumented HTTP client)
	generator, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	featureFlags := flags.NewStatic(cfg.Features)
	logger.Debug("feature flags", slog.Any("flags", featureFlags.Snapshot()))

	if cfg.FeatureEnabled(ports.FlagAI, true) {
		if err := healthRegistry.Register(generator); err != nil {
			return fmt.Errorf("registering AI health check: %w", err)
		}
	} else {
		logger.Info("AI assistance disabled", slog.String("flag", ports.FlagAI))
	}

	// 7. Application services
	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Quotes:    store.Quotes(),
		Customers: store.Customers(),
		Settings:  store.Settings(),
		Tx:        store.TxRunner(),
		Metrics:   businessMetrics,
		Logger:    logger,
	})

	customerService := app.NewCustomerService(app.CustomerServiceConfig{
		Customers: store.Customers(),
		Quotes:    store.Quotes(),
		Tx:        store.TxRunner(),
		Logger:    logger,
	})

	settingsService := app.NewSettingsService(store.Settings(), app.SystemClock, logger)

	aiService := app.NewAIService(app.AIServiceConfig{
		Generator: generator,
		Settings:  store.Settings(),
		Flags:     featureFlags,
		Metrics:   businessMetrics,
		Logger:    logger,
	})

	analyticsService := app.NewAnalyticsService(app.AnalyticsServiceConfig{
		Quotes:        store.Quotes(),
		AI:            aiService,
		DefaultMonths: cfg.Analytics.DefaultMonths,
		MaxMonths:     cfg.Analytics.MaxMonths,
		Logger:        logger,
	})

	// 8. HTTP server and router
	authenticator, err := middleware.NewAuthenticator(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring authentication: %w", err)
	}

	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:        logger,
		ServiceName:   cfg.App.Name,
		Authenticator: authenticator,
		HealthHandler: handlers.NewHealthHandler(
			healthRegistry,
			handlers.NewBuildInfo(Version, Commit, BuildTime),
			promRegistry,
		),
		Handlers: []http.RouteRegistrar{
			handlers.NewQuoteHandler(quoteService),
			handlers.NewCustomerHandler(customerService),
			handlers.NewSettingsHandler(settingsService),
			handlers.NewAnalyticsHandler(analyticsService),
			handlers.NewAIHandler(aiService),
		},
		CORSOrigins: cfg.Server.CORSOrigins,
		Timeout:     cfg.Server.RequestTimeout,
	})

	// 9. Start server (non-blocking) and wait for a shutdown signal
	serverErr := server.Start()

	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// newGenerator builds the Gemini client. Generation is a single attempt: the client
// keeps its circuit breaker but never retries.
func newGenerator(cfg *config.Config, logger *slog.Logger) (*acl.GeminiClient, error) {
	retry := cfg.Client.Retry
	retry.MaxAttempts = 1

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.AI.BaseURL,
		ServiceName: cfg.AI.Provider,
		Timeout:     cfg.AI.Timeout,
		Retry:       retry,
		Circuit:     cfg.AI.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		AuthFunc:    acl.APIKeyAuth(cfg.AI.APIKey),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating AI HTTP client: %w", err)
	}

	if cfg.AI.APIKey == "" {
		logger.Warn("AI API key is empty; generation calls will be rejected by the provider")
	}

	temperature := cfg.AI.Temperature

	return acl.NewGeminiClient(acl.GeminiConfig{
		Client:          httpClient,
		Model:           cfg.AI.Model,
		Temperature:     &temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Logger:          logger,
	}), nil
}

// waitForShutdown blocks until a shutdown signal is received or the server fails,
// then drains in-flight requests within shutdownTimeout.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err == nil {
			return nil
		}

		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	case <-ctx.Done():
		logger.Info("context cancelled", slog.Any("cause", context.Cause(ctx)))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
