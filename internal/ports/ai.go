package ports

import (
	"context"

	"github.com/pearquote/quote-service/internal/domain"
)

// Prompt is the input of a single generation call: text plus optional inline images.
type Prompt struct {
	Text   string
	Images []domain.ImagePart
}

// ContentGenerator is the external generative AI capability.
//
// Generate performs one blocking call and returns the raw model text. It honors
// context cancellation and never retries. Transport, quota and upstream failures
// are returned as domain.AIProviderError.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
