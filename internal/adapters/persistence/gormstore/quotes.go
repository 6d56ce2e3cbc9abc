package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pearquote/quote-service/internal/domain"
)

// QuoteRepository implements ports.QuoteRepository.
type QuoteRepository struct {
	db *gorm.DB
}

// Create implements ports.QuoteRepository.
func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}

	stampNew(&quote.CreatedAt, &quote.UpdatedAt)

	row := quoteFromDomain(quote)
	items := itemRows(quote.ID, quote.Items)

	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if len(items) == 0 {
			return nil
		}

		return tx.Create(&items).Error
	})
	if err != nil {
		return fmt.Errorf("inserting quote %s: %w", quote.ID, err)
	}

	for i := range quote.Items {
		quote.Items[i].ID = items[i].ID
		quote.Items[i].QuoteID = quote.ID
	}

	return nil
}

// GetByID implements ports.QuoteRepository.
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*domain.Quote, error) {
	return r.load(ctx, conn(ctx, r.db).Where("id = ?", id), id)
}

// FindOwned implements ports.QuoteRepository.
func (r *QuoteRepository) FindOwned(ctx context.Context, userID, id string) (*domain.Quote, error) {
	return r.load(ctx, conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID), id)
}

func (r *QuoteRepository) load(ctx context.Context, query *gorm.DB, id string) (*domain.Quote, error) {
	var row quoteRow
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("quote", id)
		}

		return nil, fmt.Errorf("loading quote %s: %w", id, err)
	}

	var itemRows []quoteItemRow
	if err := conn(ctx, r.db).Where("quote_id = ?", row.ID).Order("position").Find(&itemRows).Error; err != nil {
		return nil, fmt.Errorf("loading items of quote %s: %w", id, err)
	}

	quote := row.toDomain()
	quote.Items = make([]domain.QuoteItem, 0, len(itemRows))

	for _, it := range itemRows {
		quote.Items = append(quote.Items, it.toDomain())
	}

	quote.ItemCount = len(quote.Items)

	return &quote, nil
}

// ListByOwner implements ports.QuoteRepository.
func (r *QuoteRepository) ListByOwner(ctx context.Context, userID string, filter domain.QuoteFilter) ([]domain.Quote, error) {
	query := conn(ctx, r.db).Where("user_id = ?", userID)

	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}

	if filter.After != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))",
			filter.After.CreatedAt, filter.After.CreatedAt, filter.After.ID)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []quoteRow
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	counts, err := r.itemCounts(ctx, rows)
	if err != nil {
		return nil, err
	}

	quotes := make([]domain.Quote, 0, len(rows))

	for _, row := range rows {
		q := row.toDomain()
		q.ItemCount = counts[row.ID]
		quotes = append(quotes, q)
	}

	return quotes, nil
}

type itemCount struct {
	QuoteID string
	Count   int
}

func (r *QuoteRepository) itemCounts(ctx context.Context, rows []quoteRow) (map[string]int, error) {
	counts := make(map[string]int, len(rows))
	if len(rows) == 0 {
		return counts, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var result []itemCount

	err := conn(ctx, r.db).Model(&quoteItemRow{}).
		Select("quote_id, COUNT(*) AS count").
		Where("quote_id IN ?", ids).
		Group("quote_id").
		Scan(&result).Error
	if err != nil {
		return nil, fmt.Errorf("counting quote items: %w", err)
	}

	for _, c := range result {
		counts[c.QuoteID] = c.Count
	}

	return counts, nil
}

// Snapshot implements ports.QuoteRepository.
func (r *QuoteRepository) Snapshot(ctx context.Context, userID string) ([]domain.Quote, error) {
	var rows []quoteRow
	if err := conn(ctx, r.db).Where("user_id = ?", userID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading quote snapshot: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, row.toDomain())
	}

	return quotes, nil
}

// Update implements ports.QuoteRepository.
func (r *QuoteRepository) Update(ctx context.Context, quote *domain.Quote) error {
	row := quoteFromDomain(quote)

	result := conn(ctx, r.db).Model(&row).
		Where("user_id = ?", quote.UserID).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(&row)
	if result.Error != nil {
		return fmt.Errorf("updating quote %s: %w", quote.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("quote", quote.ID)
	}

	return nil
}

// ReplaceItems implements ports.QuoteRepository.
func (r *QuoteRepository) ReplaceItems(ctx context.Context, quoteID string, items []domain.QuoteItem) error {
	rows := itemRows(quoteID, items)

	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", quoteID).Delete(&quoteItemRow{}).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replacing items of quote %s: %w", quoteID, err)
	}

	for i := range items {
		items[i].ID = rows[i].ID
		items[i].QuoteID = quoteID
	}

	return nil
}

// Delete implements ports.QuoteRepository.
func (r *QuoteRepository) Delete(ctx context.Context, userID, id string) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&quoteRow{})
		if result.Error != nil {
			return fmt.Errorf("deleting quote %s: %w", id, result.Error)
		}

		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("quote", id)
		}

		if err := tx.Where("quote_id = ?", id).Delete(&quoteItemRow{}).Error; err != nil {
			return fmt.Errorf("deleting items of quote %s: %w", id, err)
		}

		return nil
	})
}

// DetachCustomer implements ports.QuoteRepository.
func (r *QuoteRepository) DetachCustomer(ctx context.Context, userID, customerID string) error {
	err := conn(ctx, r.db).Model(&quoteRow{}).
		Where("user_id = ? AND customer_id = ?", userID, customerID).
		UpdateColumn("customer_id", nil).Error
	if err != nil {
		return fmt.Errorf("detaching quotes from customer %s: %w", customerID, err)
	}

	return nil
}

// RenameCustomer implements ports.QuoteRepository.
func (r *QuoteRepository) RenameCustomer(ctx context.Context, userID, customerID, name string) error {
	err := conn(ctx, r.db).Model(&quoteRow{}).
		Where("user_id = ? AND customer_id = ?", userID, customerID).
		UpdateColumn("customer_name", name).Error
	if err != nil {
		return fmt.Errorf("renaming customer %s on quotes: %w", customerID, err)
	}

	return nil
}

// stampNew fills zero timestamps of a new record with the current UTC time.
func stampNew(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	if createdAt.IsZero() {
		*createdAt = now
	}

	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

func itemRows(quoteID string, items []domain.QuoteItem) []quoteItemRow {
	rows := make([]quoteItemRow, 0, len(items))

	for i, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}

		rows = append(rows, itemFromDomain(quoteID, i, it))
	}

	return rows
}
