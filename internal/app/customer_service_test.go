package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearquote/quote-service/internal/adapters/persistence/gormstore"
	"github.com/pearquote/quote-service/internal/domain"
)

func newCustomerService(store *gormstore.Store) *CustomerService {
	return NewCustomerService(CustomerServiceConfig{
		Customers: store.Customers(),
		Quotes:    store.Quotes(),
		Tx:        store.TxRunner(),
		Clock:     fixedClock,
		Logger:    discardLogger(),
	})
}

func TestCustomerService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newCustomerService(newStore(t))

	_, err := svc.Create(ctx, "user-1", CustomerInput{Name: "  "})

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "name", validation.Field)

	customer, err := svc.Create(ctx, "user-1", CustomerInput{Name: " Acme ", Industry: "Retail"})
	require.NoError(t, err)
	assert.NotEmpty(t, customer.ID)
	assert.Equal(t, "Acme", customer.Name)
	assert.Equal(t, now, customer.CreatedAt)
}

func TestCustomerService_GetWithQuotes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newCustomerService(store)
	quotes := newQuoteService(t, store, nil)

	customer, err := svc.Create(ctx, "user-1", CustomerInput{Name: "Acme"})
	require.NoError(t, err)

	for range 2 {
		_, err = quotes.Create(ctx, "user-1", QuoteInput{
			CustomerID:  customer.ID,
			ProjectName: "Site",
			Items:       []domain.ItemDraft{draft("Build", 1, 1)},
		})
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, "user-1", customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.QuoteCount)
	assert.Len(t, got.Quotes, 2)

	_, err = svc.Get(ctx, "user-2", customer.ID)
	assert.True(t, domain.IsNotFound(err))

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].QuoteCount)
}

func TestCustomerService_RenameSyncsQuotes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newCustomerService(store)
	quotes := newQuoteService(t, store, nil)

	customer, err := svc.Create(ctx, "user-1", CustomerInput{Name: "Acme"})
	require.NoError(t, err)

	quote, err := quotes.Create(ctx, "user-1", QuoteInput{
		CustomerID:  customer.ID,
		ProjectName: "Site",
		Items:       []domain.ItemDraft{draft("Build", 1, 1)},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "user-1", customer.ID, CustomerInput{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)

	stored, err := quotes.Get(ctx, "user-1", quote.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", stored.CustomerName)

	_, err = svc.Update(ctx, "user-2", customer.ID, CustomerInput{Name: "Hijack"})
	assert.True(t, domain.IsNotFound(err))
}

func TestCustomerService_DeleteDetachesQuotes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newCustomerService(store)
	quotes := newQuoteService(t, store, nil)

	customer, err := svc.Create(ctx, "user-1", CustomerInput{Name: "Acme"})
	require.NoError(t, err)

	quote, err := quotes.Create(ctx, "user-1", QuoteInput{
		CustomerID:  customer.ID,
		ProjectName: "Site",
		Items:       []domain.ItemDraft{draft("Build", 1, 1)},
	})
	require.NoError(t, err)

	assert.True(t, domain.IsNotFound(svc.Delete(ctx, "user-2", customer.ID)))

	require.NoError(t, svc.Delete(ctx, "user-1", customer.ID))

	stored, err := quotes.Get(ctx, "user-1", quote.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CustomerID)
	assert.Equal(t, "Acme", stored.CustomerName)

	_, err = svc.Get(ctx, "user-1", customer.ID)
	assert.True(t, domain.IsNotFound(err))
}
