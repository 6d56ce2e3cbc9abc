package gormstore

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/pearquote/quote-service/internal/domain"
)

type customerRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      string    `gorm:"size:128;not null;index:idx_customers_owner,priority:1"`
	Name        string    `gorm:"size:255;not null"`
	Industry    string    `gorm:"size:255"`
	Description string    `gorm:"type:text"`
	AISummary   string    `gorm:"type:text"`
	Email       string    `gorm:"size:255"`
	Phone       string    `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false;index:idx_customers_owner,priority:2"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (customerRow) TableName() string { return "customers" }

// customer_id has no foreign key: deleting a customer detaches its quotes.
type quoteRow struct {
	ID           string  `gorm:"primaryKey;size:36"`
	UserID       string  `gorm:"size:128;not null;index:idx_quotes_owner_created,priority:1"`
	CustomerID   *string `gorm:"size:36;index"`
	CustomerName string  `gorm:"size:255"`
	ProjectName  string  `gorm:"size:255;not null"`
	ProjectType  string  `gorm:"size:128"`
	Description  string  `gorm:"type:text"`
	Status       string  `gorm:"size:16;not null;index"`
	TotalAmount  float64 `gorm:"not null;default:0"`
	TotalMargin  float64 `gorm:"not null;default:0"`
	TotalCost    float64 `gorm:"not null;default:0"`
	PaymentTerms string  `gorm:"type:text"`
	ValidityDays int     `gorm:"not null"`
	ExpectedDays *int
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false;index:idx_quotes_owner_created,priority:2"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (quoteRow) TableName() string { return "quotes" }

type quoteItemRow struct {
	ID             string  `gorm:"primaryKey;size:36"`
	QuoteID        string  `gorm:"size:36;not null;index:idx_quote_items_quote,priority:1"`
	Position       int     `gorm:"not null;index:idx_quote_items_quote,priority:2"`
	Description    string  `gorm:"type:text;not null"`
	EstimatedHours float64 `gorm:"not null;default:0"`
	SuggestedRole  string  `gorm:"size:32;not null"`
	HourlyRate     float64 `gorm:"not null;default:0"`
	Amount         float64 `gorm:"not null;default:0"`
}

func (quoteItemRow) TableName() string { return "quote_items" }

type settingsRow struct {
	UserID            string `gorm:"primaryKey;size:128"`
	CompanyName       string `gorm:"size:255"`
	TaxID             string `gorm:"size:64"`
	ContactEmail      string `gorm:"size:255"`
	CompanySealURL    string `gorm:"type:text"`
	TargetMarginMin   float64
	TargetMarginMax   float64
	QuoteValidityDays int
	Values            datatypes.JSONMap `gorm:"column:setting_values"`
	ValuesVersion     int               `gorm:"not null;default:1"`
	UpdatedAt         time.Time         `gorm:"not null;autoUpdateTime:false"`
}

func (settingsRow) TableName() string { return "settings" }

func customerFromDomain(c *domain.Customer) customerRow {
	return customerRow{
		ID:          c.ID,
		UserID:      c.UserID,
		Name:        c.Name,
		Industry:    c.Industry,
		Description: c.Description,
		AISummary:   c.AISummary,
		Email:       c.Email,
		Phone:       c.Phone,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Industry:    r.Industry,
		Description: r.Description,
		AISummary:   r.AISummary,
		Email:       r.Email,
		Phone:       r.Phone,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func quoteFromDomain(q *domain.Quote) quoteRow {
	return quoteRow{
		ID:           q.ID,
		UserID:       q.UserID,
		CustomerID:   q.CustomerID,
		CustomerName: q.CustomerName,
		ProjectName:  q.ProjectName,
		ProjectType:  q.ProjectType,
		Description:  q.Description,
		Status:       string(q.Status),
		TotalAmount:  q.TotalAmount,
		TotalMargin:  q.TotalMargin,
		TotalCost:    q.TotalCost,
		PaymentTerms: q.PaymentTerms,
		ValidityDays: q.ValidityDays,
		ExpectedDays: q.ExpectedDays,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

func (r quoteRow) toDomain() domain.Quote {
	return domain.Quote{
		ID:           r.ID,
		UserID:       r.UserID,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		ProjectName:  r.ProjectName,
		ProjectType:  r.ProjectType,
		Description:  r.Description,
		Status:       domain.QuoteStatus(r.Status),
		TotalAmount:  r.TotalAmount,
		TotalMargin:  r.TotalMargin,
		TotalCost:    r.TotalCost,
		PaymentTerms: r.PaymentTerms,
		ValidityDays: r.ValidityDays,
		ExpectedDays: r.ExpectedDays,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func itemFromDomain(quoteID string, position int, it domain.QuoteItem) quoteItemRow {
	return quoteItemRow{
		ID:             it.ID,
		QuoteID:        quoteID,
		Position:       position,
		Description:    it.Description,
		EstimatedHours: it.EstimatedHours,
		SuggestedRole:  string(it.SuggestedRole),
		HourlyRate:     it.HourlyRate,
		Amount:         it.Amount,
	}
}

func (r quoteItemRow) toDomain() domain.QuoteItem {
	return domain.QuoteItem{
		ID:             r.ID,
		QuoteID:        r.QuoteID,
		Description:    r.Description,
		EstimatedHours: r.EstimatedHours,
		SuggestedRole:  domain.Role(r.SuggestedRole),
		HourlyRate:     r.HourlyRate,
		Amount:         r.Amount,
	}
}

func settingsFromDomain(s *domain.Settings) settingsRow {
	values := datatypes.JSONMap(s.Values)
	if values == nil {
		values = datatypes.JSONMap{}
	}

	version := s.ValuesVersion
	if version == 0 {
		version = domain.SettingsValuesVersion
	}

	return settingsRow{
		UserID:            s.UserID,
		CompanyName:       s.CompanyName,
		TaxID:             s.TaxID,
		ContactEmail:      s.ContactEmail,
		CompanySealURL:    s.CompanySealURL,
		TargetMarginMin:   s.TargetMarginMin,
		TargetMarginMax:   s.TargetMarginMax,
		QuoteValidityDays: s.QuoteValidityDays,
		Values:            values,
		ValuesVersion:     version,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (r settingsRow) toDomain() domain.Settings {
	values := plainValues(r.Values)

	return domain.Settings{
		UserID:            r.UserID,
		CompanyName:       r.CompanyName,
		TaxID:             r.TaxID,
		ContactEmail:      r.ContactEmail,
		CompanySealURL:    r.CompanySealURL,
		TargetMarginMin:   r.TargetMarginMin,
		TargetMarginMax:   r.TargetMarginMax,
		QuoteValidityDays: r.QuoteValidityDays,
		Values:            values,
		ValuesVersion:     r.ValuesVersion,
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

// plainValues re-decodes a JSON column without UseNumber so numbers come back as float64,
// the same form a request body decodes to.
func plainValues(raw datatypes.JSONMap) map[string]any {
	values := map[string]any{}
	if len(raw) == 0 {
		return values
	}

	encoded, err := json.Marshal(map[string]any(raw))
	if err != nil || json.Unmarshal(encoded, &values) != nil {
		return map[string]any(raw)
	}

	return values
}
