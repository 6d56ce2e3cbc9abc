package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pearquote/quote-service/internal/adapters/persistence/gormstore"
	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/mocks"
	"github.com/pearquote/quote-service/internal/ports"
)

func seedAnalytics(t *testing.T, store *gormstore.Store) {
	t.Helper()

	ctx := context.Background()
	svc := newQuoteService(t, store, nil)

	customer := &domain.Customer{UserID: "user-1", Name: "Acme"}
	require.NoError(t, store.Customers().Create(ctx, customer))

	won, err := svc.Create(ctx, "user-1", QuoteInput{
		CustomerID:  customer.ID,
		ProjectName: "Shop",
		Items:       []domain.ItemDraft{draft("Build", 100, 100)},
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "user-1", won.ID, QuoteUpdate{Status: ptr(domain.StatusWon)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "user-1", QuoteInput{
		CustomerName: "Globex",
		ProjectName:  "Portal",
		Items:        []domain.ItemDraft{draft("Build", 50, 100)},
	})
	require.NoError(t, err)
}

func TestAnalyticsService_Metrics(t *testing.T) {
	store := newStore(t)
	seedAnalytics(t, store)

	svc := NewAnalyticsService(AnalyticsServiceConfig{Quotes: store.Quotes(), Clock: fixedClock, Logger: discardLogger()})

	report, err := svc.Metrics(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "2026-03", report.Period)
	assert.Equal(t, 15000.0, report.TotalQuoted)
	assert.Equal(t, 10000.0, report.TotalWon)
	assert.Equal(t, 2, report.QuoteCount)
	assert.Equal(t, 1, report.WonCount)
	assert.Equal(t, 100.0, report.WinRate)
	assert.Equal(t, 1, report.ActiveClients)
	assert.Zero(t, report.MarginRate)
	assert.Equal(t, domain.Trend{Change: 100, Direction: domain.DirectionUp}, report.QuotedTrend)

	empty, err := svc.Metrics(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Zero(t, empty.QuoteCount)
	assert.Equal(t, domain.DirectionNeutral, empty.QuotedTrend.Direction)
}

func TestAnalyticsService_Projects(t *testing.T) {
	store := newStore(t)
	seedAnalytics(t, store)

	svc := NewAnalyticsService(AnalyticsServiceConfig{Quotes: store.Quotes(), Clock: fixedClock})

	tests := []struct {
		name      string
		months    int
		wantLen   int
		wantError bool
	}{
		{name: "default window", months: 0, wantLen: DefaultAnalyticsMonths},
		{name: "explicit window", months: 3, wantLen: 3},
		{name: "maximum window", months: MaxAnalyticsMonths, wantLen: MaxAnalyticsMonths},
		{name: "too many months", months: MaxAnalyticsMonths + 1, wantError: true},
		{name: "negative months", months: -1, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets, err := svc.Projects(context.Background(), "user-1", tt.months)

			if tt.wantError {
				assert.True(t, domain.IsValidation(err))

				return
			}

			require.NoError(t, err)
			require.Len(t, buckets, tt.wantLen)

			last := buckets[len(buckets)-1]
			assert.Equal(t, "2026-03", last.Label)
			assert.Equal(t, 15000.0, last.Quoted)
			assert.Equal(t, 10000.0, last.Won)
			assert.Equal(t, 2, last.Count)
			assert.True(t, buckets[0].Start.Before(last.Start))
		})
	}
}

func TestAnalyticsService_Insight(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a data summary", func(t *testing.T) {
		store := newStore(t)
		seedAnalytics(t, store)

		generator := mocks.NewMockContentGenerator(t)
		ai := NewAIService(AIServiceConfig{Generator: generator, Settings: store.Settings()})
		svc := NewAnalyticsService(AnalyticsServiceConfig{Quotes: store.Quotes(), AI: ai, Clock: fixedClock})

		var prompt string
		generator.EXPECT().Generate(mock.Anything, mock.Anything).
			Run(func(_ context.Context, p ports.Prompt) { prompt = p.Text }).
			Return(`{"insight":"Half of the pipeline is won."}`, nil)

		insight, err := svc.Insight(ctx, "user-1", "margins")
		require.NoError(t, err)

		assert.Equal(t, "Half of the pipeline is won.", insight)
		assert.Contains(t, prompt, "Total quoted: 15000.00")
		assert.Contains(t, prompt, "Focus: margins")
		assert.Contains(t, prompt, "- 2026-03: 15000.00 / 10000.00 / 2")
		assert.Equal(t, DefaultAnalyticsMonths, strings.Count(prompt, "\n- "))
	})

	t.Run("disabled feature is unavailable", func(t *testing.T) {
		store := newStore(t)

		flags := mocks.NewMockFeatureFlags(t)
		flags.EXPECT().IsEnabled(mock.Anything, ports.FlagAI, true).Return(false)

		ai := NewAIService(AIServiceConfig{
			Generator: mocks.NewMockContentGenerator(t),
			Settings:  store.Settings(),
			Flags:     flags,
		})
		svc := NewAnalyticsService(AnalyticsServiceConfig{Quotes: store.Quotes(), AI: ai, Clock: fixedClock})

		_, err := svc.Insight(ctx, "user-1", "")
		assert.True(t, domain.IsUnavailable(err))
	})

	t.Run("without an AI service", func(t *testing.T) {
		store := newStore(t)
		svc := NewAnalyticsService(AnalyticsServiceConfig{Quotes: store.Quotes()})

		_, err := svc.Insight(ctx, "user-1", "")
		assert.True(t, domain.IsUnavailable(err))
	})
}

func TestBuildMetricsReport_PreviousMonth(t *testing.T) {
	feb := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	quotes := []domain.Quote{
		{CustomerName: "A", Status: domain.StatusWon, TotalAmount: 200, CreatedAt: feb},
		{CustomerName: "B", Status: domain.StatusSent, TotalAmount: 300, CreatedAt: now},
	}

	report := buildMetricsReport(quotes, now)

	assert.Equal(t, domain.Trend{Change: 50, Direction: domain.DirectionUp}, report.QuotedTrend)
	assert.Equal(t, domain.Trend{Change: 100, Direction: domain.DirectionDown}, report.WonTrend)
	assert.Equal(t, domain.DirectionNeutral, report.CountTrend.Direction)
}
