package domain

import "time"

// Customer is a client organization owned by one user.
type Customer struct {
	ID          string
	UserID      string
	Name        string
	Industry    string
	Description string
	AISummary   string
	Email       string
	Phone       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// QuoteCount is populated by list queries.
	QuoteCount int

	// Quotes holds quote summaries (no items) when loaded for a detail view.
	Quotes []Quote
}

// OwnedBy reports whether userID owns the customer.
func (c *Customer) OwnedBy(userID string) bool {
	return c.UserID == userID
}
