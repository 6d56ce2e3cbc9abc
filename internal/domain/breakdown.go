package domain

// BreakdownItem is one AI-suggested line, shaped like a QuoteItem.
// HourlyRate may be 0 when the model ignored its instructions; it is passed through as is.
type BreakdownItem struct {
	ID             string
	Description    string
	EstimatedHours float64
	SuggestedRole  Role
	HourlyRate     float64
	Amount         float64
}

// Breakdown is the AI decomposition of free-text requirements.
type Breakdown struct {
	Summary string
	Items   []BreakdownItem
}

// ImagePart is an inline image handed to the AI capability.
type ImagePart struct {
	MIMEType string
	Data     []byte
}
