package acl

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/ports"
)

// jsonMIMEType asks the model for a JSON document instead of prose.
const jsonMIMEType = "application/json"

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// toRequest translates a prompt into a provider request: one user turn with the
// text first and each image as an inline base64 part.
func toRequest(prompt ports.Prompt, gen generationConfig) generateRequest {
	parts := make([]part, 0, 1+len(prompt.Images))
	parts = append(parts, part{Text: prompt.Text})

	for _, img := range prompt.Images {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}

	return generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: &gen,
	}
}

// fromResponse reduces a provider response to the text of its first candidate.
func fromResponse(resp *generateResponse, provider string) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", domain.NewAIProviderError(provider,
			"prompt blocked: "+resp.PromptFeedback.BlockReason, false, nil)
	}

	if len(resp.Candidates) == 0 {
		return "", domain.NewAIProviderError(provider, "response has no candidates", false, nil)
	}

	candidate := resp.Candidates[0]

	var b strings.Builder
	for _, p := range candidate.Content.Parts {
		b.WriteString(p.Text)
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", domain.NewAIProviderError(provider,
			fmt.Sprintf("response has no text (finish reason %q)", candidate.FinishReason), false, nil)
	}

	return b.String(), nil
}
