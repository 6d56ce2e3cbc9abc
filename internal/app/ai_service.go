package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/platform/logging"
	"github.com/pearquote/quote-service/internal/platform/telemetry"
	"github.com/pearquote/quote-service/internal/ports"
)

// Generation modes, used in spans and metrics.
const (
	modeBreakdown = "breakdown"
	modeInsight   = "insight"
)

// AIService mediates generative AI content into the quoting model.
// Each request makes at most one blocking provider call and never retries it.
type AIService struct {
	generator ports.ContentGenerator
	settings  ports.SettingsRepository
	flags     ports.FeatureFlags
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
}

// AIServiceConfig contains the dependencies of the AI service.
// Flags, Metrics and Logger are optional; without Flags the AI features are enabled.
type AIServiceConfig struct {
	Generator ports.ContentGenerator
	Settings  ports.SettingsRepository
	Flags     ports.FeatureFlags
	Metrics   *telemetry.BusinessMetrics
	Logger    *slog.Logger
}

// NewAIService creates an AI service. It panics if Generator or Settings is missing.
func NewAIService(cfg AIServiceConfig) *AIService {
	mustHave("app.AIService", map[string]any{
		"Generator": cfg.Generator,
		"Settings":  cfg.Settings,
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AIService{
		generator: cfg.Generator,
		settings:  cfg.Settings,
		flags:     cfg.Flags,
		metrics:   cfg.Metrics,
		logger:    logger.With(slog.String("component", "app.AIService")),
	}
}

// BreakdownRequest is the input of a requirement breakdown.
// Images are data URIs or raw base64 payloads.
type BreakdownRequest struct {
	Requirements string
	Images       []string
}

// Analyze produces a priced breakdown of the caller's requirements,
// instructing the model with the caller's configured role rates.
func (s *AIService) Analyze(ctx context.Context, userID string, req BreakdownRequest) (*domain.Breakdown, error) {
	if err := s.ensureEnabled(ctx); err != nil {
		return nil, err
	}

	settings, err := loadSettings(ctx, s.settings, userID)
	if err != nil {
		return nil, err
	}

	return s.RequestBreakdown(ctx, req, settings.RoleRates())
}

// RequestBreakdown asks the model for a breakdown of the requirements and normalizes the answer.
//
// It fails with ValidationError, before any provider call, when there is neither text nor an image.
// Provider failures are AIProviderError; unparseable output is AIResponseParseError carrying the raw text.
func (s *AIService) RequestBreakdown(
	ctx context.Context,
	req BreakdownRequest,
	rates map[domain.Role]float64,
) (*domain.Breakdown, error) {
	if strings.TrimSpace(req.Requirements) == "" && len(req.Images) == 0 {
		return nil, domain.NewValidationError("requirements", "requirements text or at least one image is required")
	}

	images, err := decodeImages(req.Images)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, modeBreakdown, ports.Prompt{
		Text:   breakdownPrompt(req.Requirements, len(images), rates),
		Images: images,
	})
	if err != nil {
		return nil, err
	}

	breakdown, err := parseBreakdown(raw)
	if err != nil {
		s.logParseFailure(ctx, modeBreakdown, raw, err)

		return nil, err
	}

	return breakdown, nil
}

// RequestInsight asks the model for a short commentary over a data summary.
func (s *AIService) RequestInsight(ctx context.Context, summary string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", domain.NewValidationError("summary", "is required")
	}

	raw, err := s.generate(ctx, modeInsight, ports.Prompt{Text: insightPrompt(summary)})
	if err != nil {
		return "", err
	}

	insight, err := parseInsight(raw)
	if err != nil {
		s.logParseFailure(ctx, modeInsight, raw, err)

		return "", err
	}

	return insight, nil
}

func (s *AIService) ensureEnabled(ctx context.Context) error {
	if s.flags != nil && !s.flags.IsEnabled(ctx, ports.FlagAI, true) {
		return domain.NewUnavailableError("ai", "AI assistance is disabled")
	}

	return nil
}

func (s *AIService) generate(ctx context.Context, mode string, prompt ports.Prompt) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ai."+mode)
	defer span.End()

	span.SetAttributes(attribute.Int("ai.images", len(prompt.Images)))

	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt)

	if err != nil && !domain.IsAIProvider(err) {
		err = domain.NewAIProviderError("ai", "generation failed", !errors.Is(err, context.Canceled), err)
	}

	s.metrics.AIGeneration(ctx, mode, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		logging.FromContextOr(ctx, s.logger).WarnContext(ctx, "ai generation failed",
			slog.String("mode", mode),
			slog.Any("error", err),
		)

		return "", err
	}

	return text, nil
}

func (s *AIService) logParseFailure(ctx context.Context, mode, raw string, err error) {
	logging.FromContextOr(ctx, s.logger).ErrorContext(ctx, "ai response could not be parsed",
		slog.String("mode", mode),
		slog.String("raw", raw),
		slog.Any("error", err),
	)
}
