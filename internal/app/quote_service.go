package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/platform/logging"
	"github.com/pearquote/quote-service/internal/platform/telemetry"
	"github.com/pearquote/quote-service/internal/ports"
)

// QuoteService orchestrates the quote lifecycle: create, update, delete, get and list.
// Every operation is scoped by the caller's user ID.
type QuoteService struct {
	quotes    ports.QuoteRepository
	customers ports.CustomerRepository
	settings  ports.SettingsRepository
	tx        ports.TxRunner
	exec      *Executor
	clock     Clock
	logger    *slog.Logger
}

// QuoteServiceConfig contains the dependencies of the quote service.
// Metrics, Clock and Logger are optional.
type QuoteServiceConfig struct {
	Quotes    ports.QuoteRepository
	Customers ports.CustomerRepository
	Settings  ports.SettingsRepository
	Tx        ports.TxRunner
	Metrics   *telemetry.BusinessMetrics
	Clock     Clock
	Logger    *slog.Logger
}

// NewQuoteService creates a quote service. It panics if a repository or the TxRunner is missing.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	mustHave("app.QuoteService", map[string]any{
		"Quotes":    cfg.Quotes,
		"Customers": cfg.Customers,
		"Settings":  cfg.Settings,
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

	logger = logger.With(slog.String("component", "app.QuoteService"))

	return &QuoteService{
		quotes:    cfg.Quotes,
		customers: cfg.Customers,
		settings:  cfg.Settings,
		tx:        cfg.Tx,
		exec:      NewExecutor(logger, cfg.Metrics),
		clock:     clock,
		logger:    logger,
	}
}

// QuoteInput holds the fields of a new quote.
type QuoteInput struct {
	// CustomerID links an existing customer of the caller; CustomerName is then taken from it.
	CustomerID   string
	CustomerName string
	ProjectName  string
	ProjectType  string
	Description  string
	PaymentTerms string

	// ValidityDays defaults to the caller's settings, else domain.DefaultValidityDays.
	ValidityDays *int
	ExpectedDays *int
	Items        []domain.ItemDraft
}

// QuoteUpdate holds a partial update. Nil fields are left unchanged.
type QuoteUpdate struct {
	// CustomerID set to "" unlinks the customer and keeps the current CustomerName.
	CustomerID   *string
	CustomerName *string
	ProjectName  *string
	ProjectType  *string
	Description  *string
	Status       *domain.QuoteStatus
	PaymentTerms *string
	ValidityDays *int
	ExpectedDays *int

	// Items replaces the whole item set when non-nil; the totals are then recomputed.
	// When nil, items and totals are retained.
	Items []domain.ItemDraft
}

// Create prices the items, computes the totals and stores a new DRAFT quote with its items atomically.
func (s *QuoteService) Create(ctx context.Context, userID string, input QuoteInput) (*domain.Quote, error) {
	op := Operation[QuoteInput, *domain.Quote, *domain.Quote, *domain.Quote]{
		Name: "create",
		Validate: func(_ context.Context, in QuoteInput) error {
			if strings.TrimSpace(in.ProjectName) == "" {
				return domain.NewValidationError("projectName", "is required")
			}

			if err := validateDays(in.ValidityDays, in.ExpectedDays); err != nil {
				return err
			}

			return validateDrafts(in.Items)
		},
		Perform: func(ctx context.Context, in QuoteInput) (*domain.Quote, error) {
			settings, customer, err := s.loadWriteContext(ctx, userID, in.CustomerID)
			if err != nil {
				return nil, err
			}

			now := s.clock()
			quote := &domain.Quote{
				UserID:       userID,
				CustomerName: strings.TrimSpace(in.CustomerName),
				ProjectName:  strings.TrimSpace(in.ProjectName),
				ProjectType:  in.ProjectType,
				Description:  in.Description,
				Status:       domain.StatusDraft,
				PaymentTerms: in.PaymentTerms,
				ValidityDays: settings.ValidityDays(),
				ExpectedDays: in.ExpectedDays,
				CreatedAt:    now,
				UpdatedAt:    now,
			}

			if in.ValidityDays != nil && *in.ValidityDays > 0 {
				quote.ValidityDays = *in.ValidityDays
			}

			if customer != nil {
				quote.CustomerID = &customer.ID
				quote.CustomerName = customer.Name
			}

			quote.SetItems(domain.PriceItems(in.Items, settings.RoleRates()), settings.RoleCosts())

			return quote, nil
		},
		Verify: verifyQuote[QuoteInput],
		Archive: func(ctx context.Context, _ QuoteInput, q *domain.Quote) error {
			return s.tx.InTx(ctx, "create quote", func(ctx context.Context) error {
				return s.quotes.Create(ctx, q)
			})
		},
		Respond: respondQuote[QuoteInput],
	}

	return Execute(ctx, s.exec, op, input)
}

// Update applies a partial update to an owned quote.
// The ownership check precedes any mutation; a quote of another user is reported as not found.
func (s *QuoteService) Update(ctx context.Context, userID, quoteID string, input QuoteUpdate) (*domain.Quote, error) {
	op := Operation[QuoteUpdate, *domain.Quote, *domain.Quote, *domain.Quote]{
		Name: "update",
		Validate: func(_ context.Context, in QuoteUpdate) error {
			if in.ProjectName != nil && strings.TrimSpace(*in.ProjectName) == "" {
				return domain.NewValidationError("projectName", "cannot be empty")
			}

			if in.Status != nil && !in.Status.Valid() {
				return domain.NewValidationErrorWithValue("status", "must be one of DRAFT, SENT, WON, LOST", *in.Status)
			}

			if err := validateDays(in.ValidityDays, in.ExpectedDays); err != nil {
				return err
			}

			if in.Items != nil {
				return validateDrafts(in.Items)
			}

			return nil
		},
		Perform: func(ctx context.Context, in QuoteUpdate) (*domain.Quote, error) {
			quote, err := s.quotes.FindOwned(ctx, userID, quoteID)
			if err != nil {
				return nil, err
			}

			customerID := ""
			if in.CustomerID != nil {
				customerID = *in.CustomerID
			}

			settings, customer, err := s.loadWriteContext(ctx, userID, customerID)
			if err != nil {
				return nil, err
			}

			applyUpdate(quote, in, customer)

			if in.Items != nil {
				quote.SetItems(domain.PriceItems(in.Items, settings.RoleRates()), settings.RoleCosts())
			}

			quote.UpdatedAt = s.clock()

			return quote, nil
		},
		Verify: func(ctx context.Context, in QuoteUpdate, q *domain.Quote) (*domain.Quote, error) {
			if in.Items == nil {
				return q, nil
			}

			return verifyQuote(ctx, in, q)
		},
		Archive: func(ctx context.Context, in QuoteUpdate, q *domain.Quote) error {
			return s.tx.InTx(ctx, "update quote", func(ctx context.Context) error {
				if err := s.quotes.Update(ctx, q); err != nil {
					return err
				}

				if in.Items == nil {
					return nil
				}

				return s.quotes.ReplaceItems(ctx, q.ID, q.Items)
			})
		},
		Respond: respondQuote[QuoteUpdate],
	}

	return Execute(ctx, s.exec, op, input)
}

// Delete removes an owned quote and its items.
func (s *QuoteService) Delete(ctx context.Context, userID, quoteID string) error {
	op := Operation[string, struct{}, struct{}, struct{}]{
		Name: "delete",
		Archive: func(ctx context.Context, id string, _ struct{}) error {
			return s.tx.InTx(ctx, "delete quote", func(ctx context.Context) error {
				return s.quotes.Delete(ctx, userID, id)
			})
		},
	}

	_, err := Execute(ctx, s.exec, op, quoteID)

	return err
}

// Get returns a quote with its items.
// It fails with NotFoundError when no quote has that id and with ForbiddenError when another user owns it.
func (s *QuoteService) Get(ctx context.Context, userID, quoteID string) (*domain.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	if !quote.OwnedBy(userID) {
		logging.FromContextOr(ctx, s.logger).WarnContext(ctx, "quote requested by non-owner",
			slog.String("quote_id", quoteID),
		)

		return nil, domain.NewForbiddenError("get quote", "quote belongs to another user")
	}

	return quote, nil
}

// List returns the caller's quotes, newest first, without items.
func (s *QuoteService) List(ctx context.Context, userID string, filter domain.QuoteFilter) ([]domain.Quote, error) {
	quotes, err := s.quotes.ListByOwner(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	return quotes, nil
}

// loadWriteContext loads the caller's settings and, when customerID is set, the owned customer.
func (s *QuoteService) loadWriteContext(
	ctx context.Context,
	userID, customerID string,
) (*domain.Settings, *domain.Customer, error) {
	if customerID == "" {
		settings, err := loadSettings(ctx, s.settings, userID)

		return settings, nil, err
	}

	settings, customer, err := Parallel2(ctx,
		func(ctx context.Context) (*domain.Settings, error) {
			return loadSettings(ctx, s.settings, userID)
		},
		func(ctx context.Context) (*domain.Customer, error) {
			customer, err := s.customers.FindOwned(ctx, userID, customerID)
			if domain.IsNotFound(err) {
				return nil, domain.NewValidationErrorWithValue("customerId", "customer not found", customerID)
			}

			return customer, err
		},
	)
	if err != nil {
		return nil, nil, err
	}

	return settings, customer, nil
}

func applyUpdate(q *domain.Quote, in QuoteUpdate, customer *domain.Customer) {
	switch {
	case customer != nil:
		q.CustomerID = &customer.ID
		q.CustomerName = customer.Name
	case in.CustomerID != nil:
		q.CustomerID = nil
	}

	if in.CustomerName != nil && customer == nil {
		q.CustomerName = strings.TrimSpace(*in.CustomerName)
	}

	setIf(&q.ProjectName, in.ProjectName)
	setIf(&q.ProjectType, in.ProjectType)
	setIf(&q.Description, in.Description)
	setIf(&q.PaymentTerms, in.PaymentTerms)
	setIf(&q.Status, in.Status)

	if in.ValidityDays != nil && *in.ValidityDays > 0 {
		q.ValidityDays = *in.ValidityDays
	}

	if in.ExpectedDays != nil {
		q.ExpectedDays = in.ExpectedDays
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func verifyQuote[I any](_ context.Context, _ I, q *domain.Quote) (*domain.Quote, error) {
	if err := domain.VerifyTotals(q); err != nil {
		return nil, err
	}

	return q, nil
}

func respondQuote[I any](_ context.Context, _ I, q *domain.Quote) (*domain.Quote, error) {
	return q, nil
}

func validateDrafts(items []domain.ItemDraft) error {
	if len(items) == 0 {
		return domain.NewValidationError("items", "at least one item is required")
	}

	for i, it := range items {
		for name, v := range map[string]*float64{
			"estimatedHours": it.EstimatedHours,
			"hourlyRate":     it.HourlyRate,
			"amount":         it.Amount,
		} {
			if v != nil && *v < 0 {
				return domain.NewValidationErrorWithValue(
					fmt.Sprintf("items[%d].%s", i, name), "must not be negative", *v)
			}
		}
	}

	return nil
}

func validateDays(validity, expected *int) error {
	if validity != nil && *validity < 0 {
		return domain.NewValidationErrorWithValue("validityDays", "must not be negative", *validity)
	}

	if expected != nil && *expected < 0 {
		return domain.NewValidationErrorWithValue("expectedDays", "must not be negative", *expected)
	}

	return nil
}
