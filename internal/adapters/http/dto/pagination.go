package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/pearquote/quote-service/internal/domain"
)

// Page size bounds for quote listings.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CursorFieldCreatedAt is the only sort key quote listings page on.
const CursorFieldCreatedAt = "created_at"

var (
	// ErrInvalidCursor means the cursor was not issued by this API or was tampered with.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrNoCursor means the request asks for the first page.
	ErrNoCursor = errors.New("no cursor provided")
)

// PaginationRequest is embedded by listing queries.
type PaginationRequest struct {
	// Cursor is the NextCursor of the previous page.
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"  validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns Limit clamped to (0, MaxLimit], defaulting to DefaultLimit.
func (p *PaginationRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	return min(p.Limit, MaxLimit)
}

// QuoteCursor decodes the request cursor into a listing position; nil means first page.
func (p *PaginationRequest) QuoteCursor() (*domain.QuoteCursor, error) {
	data, err := DecodeCursor(p.Cursor)

	switch {
	case errors.Is(err, ErrNoCursor):
		return nil, nil //nolint:nilnil // first page
	case err != nil:
		return nil, err
	case data.Field != CursorFieldCreatedAt || data.ID == "":
		return nil, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data.Value)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &domain.QuoteCursor{CreatedAt: createdAt, ID: data.ID}, nil
}

// PaginatedResponse is one page of a listing.
type PaginatedResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// NewPaginatedResponse trims a limit+1 fetch to limit items and derives the next cursor
// from the last item kept.
func NewPaginatedResponse[T any](items []T, limit int, cursorOf func(T) *CursorData) *PaginatedResponse[T] {
	resp := &PaginatedResponse[T]{Items: items, HasMore: len(items) > limit}

	if resp.HasMore {
		resp.Items = items[:limit]
	}

	if resp.Items == nil {
		resp.Items = []T{}
	}

	if resp.HasMore && len(resp.Items) > 0 && cursorOf != nil {
		resp.NextCursor = EncodeCursor(cursorOf(resp.Items[len(resp.Items)-1]))
	}

	return resp
}

// CursorData is the decoded form of an opaque cursor: sort field, sort value and the
// row ID that breaks ties.
type CursorData struct {
	Field string `json:"f"`
	Value string `json:"v"`
	ID    string `json:"id"`
}

// NewCursor builds cursor data.
func NewCursor(field, value, id string) *CursorData {
	return &CursorData{Field: field, Value: value, ID: id}
}

// NewQuoteCursor positions a listing right after the quote created at createdAt with id.
func NewQuoteCursor(createdAt time.Time, id string) *CursorData {
	return NewCursor(CursorFieldCreatedAt, createdAt.UTC().Format(time.RFC3339Nano), id)
}

// EncodeCursor renders data as URL-safe base64 JSON; nil encodes to "".
func EncodeCursor(data *CursorData) string {
	if data == nil {
		return ""
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(encoded string) (*CursorData, error) {
	if encoded == "" {
		return nil, ErrNoCursor
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var data CursorData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrInvalidCursor
	}

	return &data, nil
}
