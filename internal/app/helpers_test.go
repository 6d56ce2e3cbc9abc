package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pearquote/quote-service/internal/adapters/persistence/gormstore"
	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/ports"
)

var now = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *gormstore.Store {
	t.Helper()

	store, err := gormstore.Open(context.Background(), gormstore.Config{
		Driver:       gormstore.DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))

	return store
}

// failingTx runs fn inside the real transaction and then fails the transaction,
// so everything fn wrote must be rolled back.
type failingTx struct {
	inner ports.TxRunner
	err   error
}

func (f failingTx) InTx(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return f.inner.InTx(ctx, operation, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}

		return f.err
	})
}

func newQuoteService(t *testing.T, store *gormstore.Store, tx ports.TxRunner) *QuoteService {
	t.Helper()

	if tx == nil {
		tx = store.TxRunner()
	}

	return NewQuoteService(QuoteServiceConfig{
		Quotes:    store.Quotes(),
		Customers: store.Customers(),
		Settings:  store.Settings(),
		Tx:        tx,
		Clock:     fixedClock,
		Logger:    discardLogger(),
	})
}

func ptr[T any](v T) *T { return &v }

func draft(desc string, hours, rate float64) domain.ItemDraft {
	return domain.ItemDraft{
		Description:    desc,
		EstimatedHours: ptr(hours),
		SuggestedRole:  "backend",
		HourlyRate:     ptr(rate),
	}
}
