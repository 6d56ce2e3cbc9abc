package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pearquote/quote-service/internal/app/reqctx"
	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/ports"
)

// Analytics window defaults, in months.
const (
	DefaultAnalyticsMonths = 6
	MaxAnalyticsMonths     = 24
)

// MetricsReport is the portfolio summary with month-over-month trends (current vs previous UTC month).
type MetricsReport struct {
	domain.PortfolioMetrics

	Period      string
	QuotedTrend domain.Trend
	WonTrend    domain.Trend
	CountTrend  domain.Trend
}

// AnalyticsService serves read-only analytics over a per-request snapshot of the caller's quotes.
type AnalyticsService struct {
	quotes        ports.QuoteRepository
	ai            *AIService
	clock         Clock
	defaultMonths int
	maxMonths     int
	logger        *slog.Logger
}

// AnalyticsServiceConfig contains the dependencies of the analytics service.
// AI is required only for Insight.
type AnalyticsServiceConfig struct {
	Quotes        ports.QuoteRepository
	AI            *AIService
	Clock         Clock
	DefaultMonths int
	MaxMonths     int
	Logger        *slog.Logger
}

// NewAnalyticsService creates an analytics service. It panics if Quotes is missing.
func NewAnalyticsService(cfg AnalyticsServiceConfig) *AnalyticsService {
	mustHave("app.AnalyticsService", map[string]any{"Quotes": cfg.Quotes})

	svc := &AnalyticsService{
		quotes:        cfg.Quotes,
		ai:            cfg.AI,
		clock:         cfg.Clock,
		defaultMonths: cfg.DefaultMonths,
		maxMonths:     cfg.MaxMonths,
		logger:        cfg.Logger,
	}

	if svc.clock == nil {
		svc.clock = SystemClock
	}

	if svc.maxMonths <= 0 {
		svc.maxMonths = MaxAnalyticsMonths
	}

	if svc.defaultMonths <= 0 || svc.defaultMonths > svc.maxMonths {
		svc.defaultMonths = min(DefaultAnalyticsMonths, svc.maxMonths)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	svc.logger = svc.logger.With(slog.String("component", "app.AnalyticsService"))

	return svc
}

// Metrics computes the caller's portfolio metrics and month-over-month trends.
func (s *AnalyticsService) Metrics(ctx context.Context, userID string) (*MetricsReport, error) {
	quotes, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	return buildMetricsReport(quotes, s.clock()), nil
}

// Projects returns monthly buckets for the last months calendar months, oldest first.
// A zero months selects the configured default.
func (s *AnalyticsService) Projects(ctx context.Context, userID string, months int) ([]domain.MonthlyBucket, error) {
	months, err := s.window(months)
	if err != nil {
		return nil, err
	}

	quotes, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	return domain.ComputeMonthlyBuckets(quotes, months, s.clock()), nil
}

// Insight asks the AI capability for commentary over the caller's metrics and monthly history.
// The optional focus text is appended to the data summary.
func (s *AnalyticsService) Insight(ctx context.Context, userID, focus string) (string, error) {
	if s.ai == nil {
		return "", domain.NewUnavailableError("ai", "AI assistance is not configured")
	}

	if err := s.ai.ensureEnabled(ctx); err != nil {
		return "", err
	}

	quotes, err := s.snapshot(ctx, userID)
	if err != nil {
		return "", err
	}

	now := s.clock()
	report := buildMetricsReport(quotes, now)
	buckets := domain.ComputeMonthlyBuckets(quotes, s.defaultMonths, now)

	return s.ai.RequestInsight(ctx, insightSummary(report, buckets, focus))
}

func (s *AnalyticsService) window(months int) (int, error) {
	if months == 0 {
		return s.defaultMonths, nil
	}

	if months < 0 || months > s.maxMonths {
		return 0, domain.NewValidationErrorWithValue("months",
			fmt.Sprintf("must be between 1 and %d", s.maxMonths), months)
	}

	return months, nil
}

// snapshot loads the caller's quotes once per request.
func (s *AnalyticsService) snapshot(ctx context.Context, userID string) ([]domain.Quote, error) {
	return reqctx.Fetch(ctx, "snapshot:"+userID, func(ctx context.Context) ([]domain.Quote, error) {
		quotes, err := s.quotes.Snapshot(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("loading analytics snapshot: %w", err)
		}

		return quotes, nil
	})
}

func buildMetricsReport(quotes []domain.Quote, now time.Time) *MetricsReport {
	buckets := domain.ComputeMonthlyBuckets(quotes, 2, now)
	previous, current := buckets[0], buckets[1]

	return &MetricsReport{
		PortfolioMetrics: domain.ComputePortfolioMetrics(quotes),
		Period:           current.Label,
		QuotedTrend:      domain.ComputeTrend(current.Quoted, previous.Quoted),
		WonTrend:         domain.ComputeTrend(current.Won, previous.Won),
		CountTrend:       domain.ComputeTrend(float64(current.Count), float64(previous.Count)),
	}
}

func insightSummary(report *MetricsReport, buckets []domain.MonthlyBucket, focus string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Period: %s (UTC)\n", report.Period)
	fmt.Fprintf(&b, "Quotes: %d (won %d, lost %d, win rate %.1f%%)\n",
		report.QuoteCount, report.WonCount, report.LostCount, report.WinRate)
	fmt.Fprintf(&b, "Total quoted: %.2f\n", report.TotalQuoted)
	fmt.Fprintf(&b, "Total won: %.2f\n", report.TotalWon)
	fmt.Fprintf(&b, "Gross profit: %.2f (margin %.1f%%)\n", report.GrossProfit, report.MarginRate)
	fmt.Fprintf(&b, "Active clients: %d\n", report.ActiveClients)
	fmt.Fprintf(&b, "Month over month: quoted %s %d%%, won %s %d%%, quotes %s %d%%\n",
		report.QuotedTrend.Direction, report.QuotedTrend.Change,
		report.WonTrend.Direction, report.WonTrend.Change,
		report.CountTrend.Direction, report.CountTrend.Change)

	b.WriteString("Monthly (quoted / won / count):\n")

	for _, bucket := range buckets {
		fmt.Fprintf(&b, "- %s: %.2f / %.2f / %d\n", bucket.Label, bucket.Quoted, bucket.Won, bucket.Count)
	}

	if focus = strings.TrimSpace(focus); focus != "" {
		fmt.Fprintf(&b, "Focus: %s\n", focus)
	}

	return b.String()
}
