package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pearquote/quote-service/internal/domain"
)

// CustomerRepository implements ports.CustomerRepository.
type CustomerRepository struct {
	db *gorm.DB
}

// Create implements ports.CustomerRepository.
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}

	stampNew(&customer.CreatedAt, &customer.UpdatedAt)

	row := customerFromDomain(customer)
	if err := conn(ctx, r.db).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting customer %s: %w", customer.ID, err)
	}

	return nil
}

// FindOwned implements ports.CustomerRepository.
func (r *CustomerRepository) FindOwned(ctx context.Context, userID, id string) (*domain.Customer, error) {
	var row customerRow

	err := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("customer", id)
		}

		return nil, fmt.Errorf("loading customer %s: %w", id, err)
	}

	customer := row.toDomain()

	return &customer, nil
}

type quoteCount struct {
	CustomerID string
	Count      int
}

// List implements ports.CustomerRepository.
func (r *CustomerRepository) List(ctx context.Context, userID string) ([]domain.Customer, error) {
	var rows []customerRow

	err := conn(ctx, r.db).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}

	var counts []quoteCount

	err = conn(ctx, r.db).Model(&quoteRow{}).
		Select("customer_id, COUNT(*) AS count").
		Where("user_id = ? AND customer_id IS NOT NULL", userID).
		Group("customer_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("counting customer quotes: %w", err)
	}

	byCustomer := make(map[string]int, len(counts))
	for _, c := range counts {
		byCustomer[c.CustomerID] = c.Count
	}

	customers := make([]domain.Customer, 0, len(rows))

	for _, row := range rows {
		c := row.toDomain()
		c.QuoteCount = byCustomer[row.ID]
		customers = append(customers, c)
	}

	return customers, nil
}

// ListQuotes implements ports.CustomerRepository.
func (r *CustomerRepository) ListQuotes(ctx context.Context, userID, customerID string) ([]domain.Quote, error) {
	var rows []quoteRow

	err := conn(ctx, r.db).Where("user_id = ? AND customer_id = ?", userID, customerID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing quotes of customer %s: %w", customerID, err)
	}

	quotes := make([]domain.Quote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, row.toDomain())
	}

	return quotes, nil
}

// Update implements ports.CustomerRepository.
func (r *CustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	row := customerFromDomain(customer)

	result := conn(ctx, r.db).Model(&row).
		Where("user_id = ?", customer.UserID).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(&row)
	if result.Error != nil {
		return fmt.Errorf("updating customer %s: %w", customer.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("customer", customer.ID)
	}

	return nil
}

// Delete implements ports.CustomerRepository.
func (r *CustomerRepository) Delete(ctx context.Context, userID, id string) error {
	result := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).Delete(&customerRow{})
	if result.Error != nil {
		return fmt.Errorf("deleting customer %s: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("customer", id)
	}

	return nil
}
