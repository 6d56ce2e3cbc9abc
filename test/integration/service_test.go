//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pearquote/quote-service/internal/adapters/clients"
	"github.com/pearquote/quote-service/internal/adapters/clients/acl"
	"github.com/pearquote/quote-service/internal/adapters/flags"
	httpadapter "github.com/pearquote/quote-service/internal/adapters/http"
	"github.com/pearquote/quote-service/internal/adapters/http/handlers"
	"github.com/pearquote/quote-service/internal/adapters/persistence/gormstore"
	"github.com/pearquote/quote-service/internal/app"
	"github.com/pearquote/quote-service/internal/platform/config"
	"github.com/pearquote/quote-service/internal/ports"
)

// fakeGemini stands in for the generateContent API. Replies are served in order;
// once exhausted every call fails with 500. Model metadata reads always succeed.
type fakeGemini struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   int
}

type fakeReply struct {
	status int
	text   string
}

func (f *fakeGemini) enqueue(status int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replies = append(f.replies, fakeReply{status: status, text: text})
}

func (f *fakeGemini) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet {
		_, _ = io.WriteString(w, `{"name":"models/test"}`)
		return
	}

	f.mu.Lock()
	f.calls++

	reply := fakeReply{status: http.StatusInternalServerError, text: "no reply queued"}
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}
	f.mu.Unlock()

	if reply.status != http.StatusOK {
		w.WriteHeader(reply.status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": reply.status, "message": reply.text, "status": "UNAVAILABLE"},
		})

		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": reply.text}}},
			"finishReason": "STOP",
		}},
	})
}

// testService is the full HTTP stack over an in-memory database and a fake AI provider.
type testService struct {
	api   *httptest.Server
	ai    *httptest.Server
	gem   *fakeGemini
	store *gormstore.Store
}

func startService(features map[string]bool) (*testService, error) {
	ctx := context.Background()

	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := gormstore.Open(ctx, gormstore.Config{
		Driver:       gormstore.DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	gem := &fakeGemini{}
	aiServer := httptest.NewServer(gem)

	retry := cfg.Client.Retry
	retry.MaxAttempts = 1

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     aiServer.URL,
		ServiceName: acl.ProviderName,
		Timeout:     cfg.AI.Timeout,
		Retry:       retry,
		Circuit:     cfg.AI.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		AuthFunc:    acl.APIKeyAuth("test-key"),
		Logger:      logger,
	})
	if err != nil {
		aiServer.Close()
		_ = store.Close()

		return nil, err
	}

	generator := acl.NewGeminiClient(acl.GeminiConfig{
		Client: httpClient,
		Model:  cfg.AI.Model,
		Logger: logger,
	})

	healthRegistry := ports.NewHealthRegistry()
	_ = healthRegistry.Register(store)
	_ = healthRegistry.Register(generator)

	aiService := app.NewAIService(app.AIServiceConfig{
		Generator: generator,
		Settings:  store.Settings(),
		Flags:     flags.NewStatic(features),
		Logger:    logger,
	})

	gin.SetMode(gin.TestMode)
	engine := gin.New()

	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:        logger,
		ServiceName:   "quote-service-acceptance",
		HealthHandler: handlers.NewHealthHandler(healthRegistry, handlers.NewBuildInfo("test", "test", "test"), prometheus.NewRegistry()),
		Handlers: []httpadapter.RouteRegistrar{
			handlers.NewQuoteHandler(app.NewQuoteService(app.QuoteServiceConfig{
				Quotes:    store.Quotes(),
				Customers: store.Customers(),
				Settings:  store.Settings(),
				Tx:        store.TxRunner(),
				Logger:    logger,
			})),
			handlers.NewCustomerHandler(app.NewCustomerService(app.CustomerServiceConfig{
				Customers: store.Customers(),
				Quotes:    store.Quotes(),
				Tx:        store.TxRunner(),
				Logger:    logger,
			})),
			handlers.NewSettingsHandler(app.NewSettingsService(store.Settings(), nil, logger)),
			handlers.NewAnalyticsHandler(app.NewAnalyticsService(app.AnalyticsServiceConfig{
				Quotes:        store.Quotes(),
				AI:            aiService,
				DefaultMonths: cfg.Analytics.DefaultMonths,
				MaxMonths:     cfg.Analytics.MaxMonths,
				Logger:        logger,
			})),
			handlers.NewAIHandler(aiService),
		},
		Timeout: cfg.Server.RequestTimeout,
	})

	return &testService{
		api:   httptest.NewServer(engine),
		ai:    aiServer,
		gem:   gem,
		store: store,
	}, nil
}

func (s *testService) Close() {
	s.api.Close()
	s.ai.Close()
	_ = s.store.Close()
}
