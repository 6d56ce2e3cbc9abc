package domain

import (
	"strings"
	"time"
)

// DefaultValidityDays is used when neither the request nor the owner's settings specify a validity period.
const DefaultValidityDays = 30

// QuoteStatus is the lifecycle state of a quote.
// Transitions are conventional (DRAFT → SENT → WON|LOST) and are not enforced.
type QuoteStatus string

// Quote statuses.
const (
	StatusDraft QuoteStatus = "DRAFT"
	StatusSent  QuoteStatus = "SENT"
	StatusWon   QuoteStatus = "WON"
	StatusLost  QuoteStatus = "LOST"
)

// Valid reports whether s is one of the enumerated statuses.
func (s QuoteStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusWon, StatusLost:
		return true
	default:
		return false
	}
}

// ParseQuoteStatus converts user input into a QuoteStatus, ignoring case.
func ParseQuoteStatus(s string) (QuoteStatus, error) {
	status := QuoteStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", NewValidationErrorWithValue("status", "must be one of DRAFT, SENT, WON, LOST", s)
	}

	return status, nil
}

// Role is the kind of work a quote item is priced for.
type Role string

// Roles.
const (
	RoleDesign   Role = "design"
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
	RolePM       Role = "pm"
	RoleQA       Role = "qa"
	RoleOther    Role = "other"
)

// Roles lists every role in display order.
var Roles = []Role{RoleDesign, RoleFrontend, RoleBackend, RolePM, RoleQA, RoleOther}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDesign, RoleFrontend, RoleBackend, RolePM, RoleQA, RoleOther:
		return true
	default:
		return false
	}
}

// NormalizeRole lowercases s and maps anything outside the enumeration to RoleOther.
func NormalizeRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return RoleOther
	}

	return r
}

// QuoteItem is one priced line of a quote. It has no lifecycle of its own.
type QuoteItem struct {
	ID             string
	QuoteID        string
	Description    string
	EstimatedHours float64
	SuggestedRole  Role
	HourlyRate     float64
	Amount         float64
}

// ItemDraft is an item as submitted by a caller. Nil numbers were not supplied.
type ItemDraft struct {
	Description    string
	EstimatedHours *float64
	SuggestedRole  string
	HourlyRate     *float64
	Amount         *float64
}

// Quote is a priced project proposal owned by exactly one user.
//
// CustomerID is a weak reference: the customer may be deleted later, so CustomerName
// is copied at write time and the quote stays renderable without it.
type Quote struct {
	ID           string
	UserID       string
	CustomerID   *string
	CustomerName string
	ProjectName  string
	ProjectType  string
	Description  string
	Status       QuoteStatus
	TotalAmount  float64
	TotalMargin  float64
	TotalCost    float64
	PaymentTerms string
	ValidityDays int
	ExpectedDays *int
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Items is nil when the quote was loaded without its line items.
	Items []QuoteItem

	// ItemCount is populated by list queries that do not load Items.
	ItemCount int
}

// OwnedBy reports whether userID owns the quote.
func (q *Quote) OwnedBy(userID string) bool {
	return q.UserID == userID
}

// SetItems replaces the item set and recomputes every derived total.
func (q *Quote) SetItems(items []QuoteItem, costRates map[Role]float64) {
	q.Items = items
	q.ItemCount = len(items)
	q.TotalAmount = ComputeQuoteTotal(items)

	if costRates == nil {
		q.TotalCost = 0
		q.TotalMargin = 0

		return
	}

	q.TotalCost = ComputeQuoteCost(items, costRates)
	q.TotalMargin = q.TotalAmount - q.TotalCost
}

// QuoteFilter narrows an owner's quote listing.
type QuoteFilter struct {
	Status     QuoteStatus
	CustomerID string
	Limit      int
	After      *QuoteCursor
}

// QuoteCursor marks a position in a listing ordered by CreatedAt then ID, newest first.
type QuoteCursor struct {
	CreatedAt time.Time
	ID        string
}
