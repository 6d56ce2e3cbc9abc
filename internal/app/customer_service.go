package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/platform/logging"
	"github.com/pearquote/quote-service/internal/ports"
)

// CustomerService manages the caller's customers and keeps the quotes referencing them consistent.
type CustomerService struct {
	customers ports.CustomerRepository
	quotes    ports.QuoteRepository
	tx        ports.TxRunner
	clock     Clock
	logger    *slog.Logger
}

// CustomerServiceConfig contains the dependencies of the customer service.
type CustomerServiceConfig struct {
	Customers ports.CustomerRepository
	Quotes    ports.QuoteRepository
	Tx        ports.TxRunner
	Clock     Clock
	Logger    *slog.Logger
}

// NewCustomerService creates a customer service. It panics if a repository or the TxRunner is missing.
func NewCustomerService(cfg CustomerServiceConfig) *CustomerService {
	mustHave("app.CustomerService", map[string]any{
		"Customers": cfg.Customers,
		"Quotes":    cfg.Quotes,
		"Tx":        cfg.Tx,
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}

	return &CustomerService{
		customers: cfg.Customers,
		quotes:    cfg.Quotes,
		tx:        cfg.Tx,
		clock:     clock,
		logger:    logger.With(slog.String("component", "app.CustomerService")),
	}
}

// CustomerInput holds the writable fields of a customer.
type CustomerInput struct {
	Name        string
	Industry    string
	Description string
	AISummary   string
	Email       string
	Phone       string
}

func (in CustomerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}

	return nil
}

func (in CustomerInput) apply(c *domain.Customer) {
	c.Name = strings.TrimSpace(in.Name)
	c.Industry = in.Industry
	c.Description = in.Description
	c.AISummary = in.AISummary
	c.Email = in.Email
	c.Phone = in.Phone
}

// Create stores a new customer for the caller.
func (s *CustomerService) Create(ctx context.Context, userID string, input CustomerInput) (*domain.Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := s.clock()
	customer := &domain.Customer{UserID: userID, CreatedAt: now, UpdatedAt: now}
	input.apply(customer)

	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}

	logging.FromContextOr(ctx, s.logger).InfoContext(ctx, "customer created",
		slog.String("customer_id", customer.ID),
	)

	return customer, nil
}

// Get returns an owned customer together with summaries of its quotes, newest first.
func (s *CustomerService) Get(ctx context.Context, userID, customerID string) (*domain.Customer, error) {
	customer, quotes, err := Parallel2(ctx,
		func(ctx context.Context) (*domain.Customer, error) {
			return s.customers.FindOwned(ctx, userID, customerID)
		},
		func(ctx context.Context) ([]domain.Quote, error) {
			return s.customers.ListQuotes(ctx, userID, customerID)
		},
	)
	if err != nil {
		return nil, err
	}

	customer.Quotes = quotes
	customer.QuoteCount = len(quotes)

	return customer, nil
}

// List returns the caller's customers with their quote counts.
func (s *CustomerService) List(ctx context.Context, userID string) ([]domain.Customer, error) {
	return s.customers.List(ctx, userID)
}

// Update replaces the writable fields of an owned customer.
// A name change is copied to the caller's quotes referencing the customer in the same transaction.
func (s *CustomerService) Update(
	ctx context.Context,
	userID, customerID string,
	input CustomerInput,
) (*domain.Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated *domain.Customer

	err := s.tx.InTx(ctx, "update customer", func(ctx context.Context) error {
		customer, err := s.customers.FindOwned(ctx, userID, customerID)
		if err != nil {
			return err
		}

		renamed := customer.Name != strings.TrimSpace(input.Name)

		input.apply(customer)
		customer.UpdatedAt = s.clock()

		if err := s.customers.Update(ctx, customer); err != nil {
			return err
		}

		if renamed {
			if err := s.quotes.RenameCustomer(ctx, userID, customerID, customer.Name); err != nil {
				return err
			}
		}

		updated = customer

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes an owned customer. Its quotes are kept: they lose the customer reference
// but retain the customer name.
func (s *CustomerService) Delete(ctx context.Context, userID, customerID string) error {
	err := s.tx.InTx(ctx, "delete customer", func(ctx context.Context) error {
		if err := s.customers.Delete(ctx, userID, customerID); err != nil {
			return err
		}

		return s.quotes.DetachCustomer(ctx, userID, customerID)
	})
	if err != nil {
		return err
	}

	logging.FromContextOr(ctx, s.logger).InfoContext(ctx, "customer deleted",
		slog.String("customer_id", customerID),
	)

	return nil
}
