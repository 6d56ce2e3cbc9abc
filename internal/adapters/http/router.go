package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearquote/quote-service/internal/adapters/http/handlers"
	"github.com/pearquote/quote-service/internal/adapters/http/middleware"
	"github.com/pearquote/quote-service/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// APIPrefix is the mount point of the business API.
const APIPrefix = "/api/v1"

// RouteRegistrar mounts a handler's routes on a router group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// ServiceName names the service in traces and metrics.
	ServiceName string

	// Authenticator establishes the caller of every API request.
	Authenticator middleware.Authenticator

	// HealthHandler serves the /-/ probe endpoints.
	HealthHandler *handlers.HealthHandler

	// Handlers are mounted under APIPrefix behind authentication.
	Handlers []RouteRegistrar

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string

	// Timeout bounds each API request. Zero disables the deadline.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. CORS - answer preflight requests before any other work
//  3. Request ID - generate/extract request ID
//  4. Correlation ID - handle distributed tracing correlation
//  5. OpenTelemetry - tracing and metrics
//  6. Logging - request logging (skips /-/ endpoints)
//
// Route groups:
//   - /-/ (internal): probes, build info and metrics, no auth
//   - /api/v1/ (public API): deadline, request scope and authentication
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.ServiceName)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(engine)
	}

	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = &middleware.HeaderAuthenticator{}
	}

	api := engine.Group(APIPrefix)
	if cfg.Timeout > 0 {
		api.Use(middleware.Deadline(cfg.Timeout))
	}

	api.Use(middleware.RequestScope(), middleware.RequireAuth(authenticator))

	for _, h := range cfg.Handlers {
		h.RegisterRoutes(api)
	}
}
