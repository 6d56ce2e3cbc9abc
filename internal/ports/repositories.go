// Package ports defines the contracts between the application layer and its adapters.
//
// Conventions:
//   - context.Context is always the first parameter
//   - only domain types cross the boundary, never rows or wire DTOs
//   - failures are reported with domain errors (domain.ErrNotFound, domain.ErrTransaction, ...)
//   - every read or write of user data is scoped by the owning user ID
package ports

import (
	"context"

	"github.com/pearquote/quote-service/internal/domain"
)

// TxRunner executes fn as one all-or-nothing unit against the Entity Store.
//
// The context passed to fn carries the transaction; repository calls made with it
// join the transaction. If fn returns an error, or the commit fails, nothing is
// persisted. Domain errors returned by fn come back unchanged; any other failure
// is returned as a domain.TransactionError.
type TxRunner interface {
	InTx(ctx context.Context, operation string, fn func(ctx context.Context) error) error
}

// QuoteRepository persists quotes and their line items.
type QuoteRepository interface {
	// Create inserts the quote and its items. IDs are assigned when empty.
	Create(ctx context.Context, quote *domain.Quote) error

	// GetByID loads a quote with its items regardless of owner.
	// Returns domain.ErrNotFound if no quote has that id.
	GetByID(ctx context.Context, id string) (*domain.Quote, error)

	// FindOwned loads a quote with its items only if userID owns it.
	// Returns domain.ErrNotFound otherwise, without distinguishing the two cases.
	FindOwned(ctx context.Context, userID, id string) (*domain.Quote, error)

	// ListByOwner returns the owner's quotes, newest first, without items but with ItemCount.
	ListByOwner(ctx context.Context, userID string, filter domain.QuoteFilter) ([]domain.Quote, error)

	// Snapshot returns every quote of the owner without items, for analytics.
	Snapshot(ctx context.Context, userID string) ([]domain.Quote, error)

	// Update writes the quote header fields (not its items).
	Update(ctx context.Context, quote *domain.Quote) error

	// ReplaceItems deletes every item of the quote and inserts items in their place.
	// Must be called inside TxRunner.InTx to be atomic.
	ReplaceItems(ctx context.Context, quoteID string, items []domain.QuoteItem) error

	// Delete removes an owned quote and its items.
	// Returns domain.ErrNotFound if userID owns no quote with that id.
	Delete(ctx context.Context, userID, id string) error

	// DetachCustomer clears the customer reference on the owner's quotes, keeping CustomerName.
	DetachCustomer(ctx context.Context, userID, customerID string) error

	// RenameCustomer rewrites CustomerName on the owner's quotes referencing the customer.
	RenameCustomer(ctx context.Context, userID, customerID, name string) error
}

// CustomerRepository persists customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error

	// FindOwned returns domain.ErrNotFound unless userID owns the customer.
	FindOwned(ctx context.Context, userID, id string) (*domain.Customer, error)

	// List returns the owner's customers, newest first, with QuoteCount.
	List(ctx context.Context, userID string) ([]domain.Customer, error)

	// ListQuotes returns summaries of the owner's quotes for a customer, newest first.
	ListQuotes(ctx context.Context, userID, customerID string) ([]domain.Quote, error)

	Update(ctx context.Context, customer *domain.Customer) error

	// Delete returns domain.ErrNotFound unless userID owns the customer.
	Delete(ctx context.Context, userID, id string) error
}

// SettingsRepository persists per-user settings.
type SettingsRepository interface {
	// Get returns domain.ErrNotFound when the user never saved settings.
	Get(ctx context.Context, userID string) (*domain.Settings, error)

	// Upsert creates or replaces the user's settings.
	Upsert(ctx context.Context, settings *domain.Settings) error
}
