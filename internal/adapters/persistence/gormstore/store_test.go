package gormstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pearquote/quote-service/internal/domain"
)

var baseTime = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), Config{
		Driver:       DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))

	return store
}

func newQuote(userID string, created time.Time, items ...domain.QuoteItem) *domain.Quote {
	q := &domain.Quote{
		UserID:       userID,
		CustomerName: "Acme",
		ProjectName:  "Website",
		Status:       domain.StatusDraft,
		ValidityDays: domain.DefaultValidityDays,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	q.SetItems(items, nil)

	return q
}

func item(desc string, amount float64) domain.QuoteItem {
	return domain.QuoteItem{
		Description:    desc,
		EstimatedHours: amount / 100,
		SuggestedRole:  domain.RoleBackend,
		HourlyRate:     100,
		Amount:         amount,
	}
}

func TestQuoteRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Quotes()

	q := newQuote("user-1", baseTime, item("API", 1000), item("DB", 500))
	require.NoError(t, repo.Create(ctx, q))
	require.NotEmpty(t, q.ID)

	for _, it := range q.Items {
		assert.NotEmpty(t, it.ID)
		assert.Equal(t, q.ID, it.QuoteID)
	}

	got, err := repo.FindOwned(ctx, "user-1", q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got.TotalAmount)
	assert.Equal(t, baseTime, got.CreatedAt)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "API", got.Items[0].Description)
	assert.Equal(t, "DB", got.Items[1].Description)
	assert.Equal(t, 2, got.ItemCount)

	t.Run("other owner is not found", func(t *testing.T) {
		_, err := repo.FindOwned(ctx, "user-2", q.ID)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("GetByID ignores owner", func(t *testing.T) {
		got, err := repo.GetByID(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestQuoteRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Quotes()

	customers := store.Customers()
	customer := &domain.Customer{UserID: "user-1", Name: "Acme"}
	require.NoError(t, customers.Create(ctx, customer))

	for i := range 5 {
		q := newQuote("user-1", baseTime.Add(time.Duration(i)*time.Hour), item("work", float64(100*(i+1))))
		if i%2 == 0 {
			q.Status = domain.StatusWon
			q.CustomerID = &customer.ID
		}

		require.NoError(t, repo.Create(ctx, q))
	}

	require.NoError(t, repo.Create(ctx, newQuote("user-2", baseTime, item("other", 1))))

	tests := []struct {
		name     string
		filter   domain.QuoteFilter
		expected []float64
	}{
		{
			name:     "all newest first",
			expected: []float64{500, 400, 300, 200, 100},
		},
		{
			name:     "by status",
			filter:   domain.QuoteFilter{Status: domain.StatusWon},
			expected: []float64{500, 300, 100},
		},
		{
			name:     "by customer",
			filter:   domain.QuoteFilter{CustomerID: customer.ID, Limit: 2},
			expected: []float64{500, 300},
		},
		{
			name:     "limited",
			filter:   domain.QuoteFilter{Limit: 2},
			expected: []float64{500, 400},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes, err := repo.ListByOwner(ctx, "user-1", tt.filter)
			require.NoError(t, err)

			totals := make([]float64, 0, len(quotes))
			for _, q := range quotes {
				totals = append(totals, q.TotalAmount)
				assert.Nil(t, q.Items)
				assert.Equal(t, 1, q.ItemCount)
			}

			assert.Equal(t, tt.expected, totals)
		})
	}

	t.Run("cursor continues after last row", func(t *testing.T) {
		first, err := repo.ListByOwner(ctx, "user-1", domain.QuoteFilter{Limit: 2})
		require.NoError(t, err)

		last := first[len(first)-1]
		next, err := repo.ListByOwner(ctx, "user-1", domain.QuoteFilter{
			Limit: 2,
			After: &domain.QuoteCursor{CreatedAt: last.CreatedAt, ID: last.ID},
		})
		require.NoError(t, err)
		require.Len(t, next, 2)
		assert.Equal(t, 300.0, next[0].TotalAmount)
		assert.Equal(t, 200.0, next[1].TotalAmount)
	})

	t.Run("customer quote counts", func(t *testing.T) {
		list, err := customers.List(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 3, list[0].QuoteCount)
	})
}

func TestQuoteRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Quotes()

	q := newQuote("user-1", baseTime, item("API", 1000))
	require.NoError(t, repo.Create(ctx, q))

	q.Status = domain.StatusSent
	q.Description = ""
	q.UpdatedAt = baseTime.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, q))

	got, err := repo.FindOwned(ctx, "user-1", q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, baseTime, got.CreatedAt)
	assert.Equal(t, baseTime.Add(time.Hour), got.UpdatedAt)

	t.Run("not owned", func(t *testing.T) {
		stolen := *q
		stolen.UserID = "user-2"
		assert.True(t, domain.IsNotFound(repo.Update(ctx, &stolen)))
	})
}

func TestQuoteRepository_DeleteCascadesItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Quotes()

	q := newQuote("user-1", baseTime, item("API", 1000), item("DB", 500))
	require.NoError(t, repo.Create(ctx, q))

	assert.True(t, domain.IsNotFound(repo.Delete(ctx, "user-2", q.ID)))
	require.NoError(t, repo.Delete(ctx, "user-1", q.ID))

	_, err := repo.GetByID(ctx, q.ID)
	assert.True(t, domain.IsNotFound(err))

	var orphans int64
	require.NoError(t, store.DB().Model(&quoteItemRow{}).Where("quote_id = ?", q.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestQuoteRepository_ReplaceItemsIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Quotes()
	tx := store.TxRunner()

	q := newQuote("user-1", baseTime, item("API", 1000), item("DB", 500))
	require.NoError(t, repo.Create(ctx, q))

	t.Run("replaces every item", func(t *testing.T) {
		err := tx.InTx(ctx, "update quote", func(ctx context.Context) error {
			return repo.ReplaceItems(ctx, q.ID, []domain.QuoteItem{item("Design", 800)})
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, q.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "Design", got.Items[0].Description)
	})

	t.Run("failed insert keeps previous items and header", func(t *testing.T) {
		injected := errors.New("disk full")
		require.NoError(t, store.DB().Callback().Create().Before("gorm:create").
			Register("test:fail_items", func(db *gorm.DB) {
				if db.Statement.Table == "quote_items" {
					_ = db.AddError(injected)
				}
			}))

		t.Cleanup(func() { _ = store.DB().Callback().Create().Remove("test:fail_items") })

		err := tx.InTx(ctx, "update quote", func(ctx context.Context) error {
			updated := *q
			updated.ProjectName = "Renamed"
			if err := repo.Update(ctx, &updated); err != nil {
				return err
			}

			return repo.ReplaceItems(ctx, q.ID, []domain.QuoteItem{item("A", 1), item("B", 2)})
		})
		require.Error(t, err)
		assert.True(t, domain.IsTransaction(err))
		require.ErrorIs(t, err, injected)

		got, err := repo.GetByID(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, "Website", got.ProjectName)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "Design", got.Items[0].Description)
	})
}

func TestTxRunner_DomainErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Quotes()

	q := newQuote("user-1", baseTime, item("API", 1000))

	err := store.TxRunner().InTx(ctx, "create quote", func(ctx context.Context) error {
		if err := repo.Create(ctx, q); err != nil {
			return err
		}

		return domain.NewValidationError("items", "rejected")
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.False(t, domain.IsTransaction(err))

	_, err = repo.GetByID(ctx, q.ID)
	assert.True(t, domain.IsNotFound(err), "insert must be rolled back")
}

func TestQuoteRepository_CustomerSync(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Quotes()

	customerID := uuid.NewString()
	q := newQuote("user-1", baseTime, item("API", 1000))
	q.CustomerID = &customerID
	require.NoError(t, repo.Create(ctx, q))

	require.NoError(t, repo.RenameCustomer(ctx, "user-1", customerID, "Acme Corp"))
	require.NoError(t, repo.RenameCustomer(ctx, "user-2", customerID, "Hijacked"))

	got, err := repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.CustomerName)

	require.NoError(t, repo.DetachCustomer(ctx, "user-1", customerID))

	got, err = repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CustomerID)
	assert.Equal(t, "Acme Corp", got.CustomerName)
}

func TestQuoteRepository_Snapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Quotes()

	require.NoError(t, repo.Create(ctx, newQuote("user-1", baseTime.Add(time.Hour), item("b", 2))))
	require.NoError(t, repo.Create(ctx, newQuote("user-1", baseTime, item("a", 1))))
	require.NoError(t, repo.Create(ctx, newQuote("user-2", baseTime, item("x", 9))))

	quotes, err := repo.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, 1.0, quotes[0].TotalAmount)
	assert.Equal(t, 2.0, quotes[1].TotalAmount)
}

func TestCustomerRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Customers()

	c := &domain.Customer{UserID: "user-1", Name: "Acme", Industry: "Retail", CreatedAt: baseTime}
	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, baseTime, c.UpdatedAt)

	got, err := repo.FindOwned(ctx, "user-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retail", got.Industry)

	_, err = repo.FindOwned(ctx, "user-2", c.ID)
	assert.True(t, domain.IsNotFound(err))

	c.Name = "Acme Corp"
	require.NoError(t, repo.Update(ctx, c))

	got, err = repo.FindOwned(ctx, "user-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)

	q := newQuote("user-1", baseTime, item("API", 10))
	q.CustomerID = &c.ID
	require.NoError(t, store.Quotes().Create(ctx, q))

	quotes, err := repo.ListQuotes(ctx, "user-1", c.ID)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, q.ID, quotes[0].ID)

	assert.True(t, domain.IsNotFound(repo.Delete(ctx, "user-2", c.ID)))
	require.NoError(t, repo.Delete(ctx, "user-1", c.ID))

	list, err := repo.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Settings()

	_, err := repo.Get(ctx, "user-1")
	assert.True(t, domain.IsNotFound(err))

	s := domain.DefaultSettings("user-1")
	s.CompanyName = "Pear Studio"
	s.Values = map[string]any{
		domain.SettingRoleRates: map[string]any{"backend": 120.0},
		domain.SettingRoleCosts: map[string]any{"backend": 60.5, "pm": 40.0},
		"theme":                 "dark",
	}
	require.NoError(t, repo.Upsert(ctx, &s))

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Pear Studio", got.CompanyName)
	assert.Equal(t, domain.SettingsValuesVersion, got.ValuesVersion)
	assert.Equal(t, "dark", got.Values["theme"])
	assert.Equal(t, map[domain.Role]float64{domain.RoleBackend: 120}, got.RoleRates())
	assert.Equal(t, map[domain.Role]float64{domain.RoleBackend: 60.5, domain.RolePM: 40}, got.RoleCosts())
	assert.Equal(t, s.Values, got.Values, "numbers reload as float64")

	s.CompanyName = "Pear Studio Ltd"
	s.Values = map[string]any{}
	require.NoError(t, repo.Upsert(ctx, &s))

	got, err = repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Pear Studio Ltd", got.CompanyName)
	assert.Empty(t, got.Values)
}

func TestStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "database", store.Name())
	require.NoError(t, store.Check(context.Background()))
	assert.NotNil(t, store.Collector())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestOpen_ZeroPoolLimitsKeepSharedMemoryDatabase(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{
		Driver:   DriverSQLite,
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel: "silent",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))

	customer := &domain.Customer{UserID: "user-1", Name: "Acme"}
	require.NoError(t, store.Customers().Create(ctx, customer))

	got, err := store.Customers().List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].Name)
}
