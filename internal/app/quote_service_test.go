package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearquote/quote-service/internal/domain"
)

func TestNewQuoteService_PanicsWithoutRepositories(t *testing.T) {
	assert.PanicsWithValue(t, "app.QuoteService: Tx is required", func() {
		store := newStore(t)
		NewQuoteService(QuoteServiceConfig{
			Quotes:    store.Quotes(),
			Customers: store.Customers(),
			Settings:  store.Settings(),
		})
	})
}

func TestQuoteService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("prices items and starts as draft", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)

		quote, err := svc.Create(ctx, "user-1", QuoteInput{
			CustomerName: "Acme",
			ProjectName:  "Website",
			Items:        []domain.ItemDraft{draft("Build", 10, 1000)},
		})
		require.NoError(t, err)

		assert.Equal(t, 10000.0, quote.TotalAmount)
		assert.Equal(t, domain.StatusDraft, quote.Status)
		assert.Equal(t, domain.DefaultValidityDays, quote.ValidityDays)
		assert.Equal(t, now, quote.CreatedAt)
		assert.Zero(t, quote.TotalCost)
		assert.Zero(t, quote.TotalMargin)

		stored, err := store.Quotes().FindOwned(ctx, "user-1", quote.ID)
		require.NoError(t, err)
		assert.Equal(t, 10000.0, stored.TotalAmount)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, 10000.0, stored.Items[0].Amount)
	})

	t.Run("uses settings rates costs and validity", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)

		settings := domain.DefaultSettings("user-1")
		settings.QuoteValidityDays = 45
		settings.Values = map[string]any{
			domain.SettingRoleRates: map[string]any{"backend": 100.0},
			domain.SettingRoleCosts: map[string]any{"backend": 60.0},
		}
		require.NoError(t, store.Settings().Upsert(ctx, &settings))

		quote, err := svc.Create(ctx, "user-1", QuoteInput{
			ProjectName: "API",
			Items: []domain.ItemDraft{
				{Description: "Endpoints", EstimatedHours: ptr(10.0), SuggestedRole: "backend"},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 45, quote.ValidityDays)
		assert.Equal(t, 100.0, quote.Items[0].HourlyRate)
		assert.Equal(t, 1000.0, quote.TotalAmount)
		assert.Equal(t, 600.0, quote.TotalCost)
		assert.Equal(t, 400.0, quote.TotalMargin)
	})

	t.Run("links an owned customer", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)

		customer := &domain.Customer{UserID: "user-1", Name: "Acme Corp"}
		require.NoError(t, store.Customers().Create(ctx, customer))

		quote, err := svc.Create(ctx, "user-1", QuoteInput{
			CustomerID:   customer.ID,
			CustomerName: "ignored",
			ProjectName:  "Website",
			Items:        []domain.ItemDraft{draft("Build", 1, 1)},
		})
		require.NoError(t, err)
		require.NotNil(t, quote.CustomerID)
		assert.Equal(t, customer.ID, *quote.CustomerID)
		assert.Equal(t, "Acme Corp", quote.CustomerName)
	})

	tests := []struct {
		name  string
		input func(customerID string) QuoteInput
		field string
	}{
		{
			name: "empty items",
			input: func(string) QuoteInput {
				return QuoteInput{ProjectName: "Website", Items: []domain.ItemDraft{}}
			},
			field: "items",
		},
		{
			name: "missing project name",
			input: func(string) QuoteInput {
				return QuoteInput{Items: []domain.ItemDraft{draft("Build", 1, 1)}}
			},
			field: "projectName",
		},
		{
			name: "negative hours",
			input: func(string) QuoteInput {
				return QuoteInput{ProjectName: "Website", Items: []domain.ItemDraft{draft("Build", -1, 1)}}
			},
			field: "items[0].estimatedHours",
		},
		{
			name: "customer of another user",
			input: func(customerID string) QuoteInput {
				return QuoteInput{
					CustomerID:  customerID,
					ProjectName: "Website",
					Items:       []domain.ItemDraft{draft("Build", 1, 1)},
				}
			},
			field: "customerId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			svc := newQuoteService(t, store, nil)

			foreign := &domain.Customer{UserID: "user-2", Name: "Foreign"}
			require.NoError(t, store.Customers().Create(ctx, foreign))

			_, err := svc.Create(ctx, "user-1", tt.input(foreign.ID))
			require.Error(t, err)

			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)

			quotes, err := svc.List(ctx, "user-1", domain.QuoteFilter{})
			require.NoError(t, err)
			assert.Empty(t, quotes)
		})
	}
}

func seedQuote(t *testing.T, svc *QuoteService) *domain.Quote {
	t.Helper()

	quote, err := svc.Create(context.Background(), "user-1", QuoteInput{
		CustomerName: "Acme",
		ProjectName:  "Website",
		Items:        []domain.ItemDraft{draft("Design", 10, 100), draft("Build", 20, 100)},
	})
	require.NoError(t, err)

	return quote
}

func TestQuoteService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("omitted items keep the total", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)
		quote := seedQuote(t, svc)

		updated, err := svc.Update(ctx, "user-1", quote.ID, QuoteUpdate{
			Status:      ptr(domain.StatusWon),
			ProjectName: ptr("Website v2"),
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusWon, updated.Status)
		assert.Equal(t, "Website v2", updated.ProjectName)
		assert.Equal(t, 3000.0, updated.TotalAmount)

		stored, err := store.Quotes().FindOwned(ctx, "user-1", quote.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Items, 2)
		assert.Equal(t, 3000.0, stored.TotalAmount)
	})

	t.Run("any status may be set", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)
		quote := seedQuote(t, svc)

		for _, status := range []domain.QuoteStatus{domain.StatusLost, domain.StatusDraft, domain.StatusSent} {
			updated, err := svc.Update(ctx, "user-1", quote.ID, QuoteUpdate{Status: ptr(status)})
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
		}
	})

	t.Run("items replace the set and recompute the total", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)
		quote := seedQuote(t, svc)

		updated, err := svc.Update(ctx, "user-1", quote.ID, QuoteUpdate{
			Items: []domain.ItemDraft{draft("QA", 5, 80)},
		})
		require.NoError(t, err)
		assert.Equal(t, 400.0, updated.TotalAmount)

		stored, err := store.Quotes().FindOwned(ctx, "user-1", quote.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, "QA", stored.Items[0].Description)
		assert.Equal(t, 400.0, stored.TotalAmount)
	})

	t.Run("unlinks the customer and keeps its name", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)

		customer := &domain.Customer{UserID: "user-1", Name: "Acme Corp"}
		require.NoError(t, store.Customers().Create(ctx, customer))

		quote, err := svc.Create(ctx, "user-1", QuoteInput{
			CustomerID:  customer.ID,
			ProjectName: "Website",
			Items:       []domain.ItemDraft{draft("Build", 1, 1)},
		})
		require.NoError(t, err)

		updated, err := svc.Update(ctx, "user-1", quote.ID, QuoteUpdate{CustomerID: ptr("")})
		require.NoError(t, err)
		assert.Nil(t, updated.CustomerID)
		assert.Equal(t, "Acme Corp", updated.CustomerName)
	})

	t.Run("quote of another user is not found", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)
		quote := seedQuote(t, svc)

		_, err := svc.Update(ctx, "user-2", quote.ID, QuoteUpdate{
			Status: ptr(domain.StatusLost),
			Items:  []domain.ItemDraft{draft("Hijack", 1, 1)},
		})
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))

		stored, err := store.Quotes().FindOwned(ctx, "user-1", quote.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, stored.Status)
		assert.Len(t, stored.Items, 2)
	})

	t.Run("empty item list is rejected", func(t *testing.T) {
		store := newStore(t)
		svc := newQuoteService(t, store, nil)
		quote := seedQuote(t, svc)

		_, err := svc.Update(ctx, "user-1", quote.ID, QuoteUpdate{Items: []domain.ItemDraft{}})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("failed transaction keeps the original items", func(t *testing.T) {
		store := newStore(t)
		quote := seedQuote(t, newQuoteService(t, store, nil))

		injected := errors.New("connection reset")
		svc := newQuoteService(t, store, failingTx{inner: store.TxRunner(), err: injected})

		_, err := svc.Update(ctx, "user-1", quote.ID, QuoteUpdate{
			ProjectName: ptr("Renamed"),
			Items:       []domain.ItemDraft{draft("Only", 1, 1)},
		})
		require.Error(t, err)
		assert.True(t, domain.IsTransaction(err))
		require.ErrorIs(t, err, injected)

		step, ok := GetExecutionStep(err)
		require.True(t, ok)
		assert.Equal(t, StepArchive, step)

		stored, err := store.Quotes().FindOwned(ctx, "user-1", quote.ID)
		require.NoError(t, err)
		assert.Equal(t, "Website", stored.ProjectName)
		assert.Equal(t, 3000.0, stored.TotalAmount)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, "Design", stored.Items[0].Description)
		assert.Equal(t, "Build", stored.Items[1].Description)
	})
}

func TestQuoteService_Delete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newQuoteService(t, store, nil)
	quote := seedQuote(t, svc)

	err := svc.Delete(ctx, "user-2", quote.ID)
	assert.True(t, domain.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, "user-1", quote.ID))

	_, err = svc.Get(ctx, "user-1", quote.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestQuoteService_Get(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newQuoteService(t, store, nil)
	quote := seedQuote(t, svc)

	tests := []struct {
		name     string
		userID   string
		quoteID  string
		errCheck func(error) bool
	}{
		{name: "owner", userID: "user-1", quoteID: quote.ID},
		{name: "other user", userID: "user-2", quoteID: quote.ID, errCheck: domain.IsForbidden},
		{name: "missing", userID: "user-1", quoteID: "missing", errCheck: domain.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Get(ctx, tt.userID, tt.quoteID)

			if tt.errCheck != nil {
				require.Error(t, err)
				assert.True(t, tt.errCheck(err))
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, quote.ID, got.ID)
			assert.Len(t, got.Items, 2)
		})
	}
}

func TestQuoteService_List(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newQuoteService(t, store, nil)

	seedQuote(t, svc)
	seedQuote(t, svc)

	quotes, err := svc.List(ctx, "user-1", domain.QuoteFilter{})
	require.NoError(t, err)
	assert.Len(t, quotes, 2)

	quotes, err = svc.List(ctx, "user-2", domain.QuoteFilter{})
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
