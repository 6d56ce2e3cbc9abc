package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pearquote/quote-service/internal/adapters/clients"
	"github.com/pearquote/quote-service/internal/domain"
)

// maxErrorBody bounds how much of an upstream error body is read.
const maxErrorBody = 64 << 10

// apiError is the provider error envelope: {"error": {"code": 429, "message": "...", "status": "RESOURCE_EXHAUSTED"}}.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseErrorResponse extracts a message from an error body.
// It falls back to the trimmed body text when the envelope is absent.
func parseErrorResponse(body io.Reader) string {
	if body == nil {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		if envelope.Error.Status != "" {
			return envelope.Error.Status + ": " + envelope.Error.Message
		}

		return envelope.Error.Message
	}

	return strings.TrimSpace(string(raw))
}

// mapHTTPError translates a non-2xx provider response into an AIProviderError.
func mapHTTPError(resp *http.Response, provider string) error {
	message := parseErrorResponse(resp.Body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	cause := fmt.Errorf("HTTP %d: %s", resp.StatusCode, message)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewAIProviderError(provider, "quota exceeded", true, cause)
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.NewAIProviderError(provider, "upstream error", true, cause)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return domain.NewAIProviderError(provider, "credentials rejected", false, cause)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewAIProviderError(provider, "model not found", false, cause)
	default:
		return domain.NewAIProviderError(provider, "request rejected", false, cause)
	}
}

// mapClientError translates a failure to obtain any response into an AIProviderError.
func mapClientError(err error, provider string) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewAIProviderError(provider, "circuit breaker open", true, err)
	case errors.Is(err, context.Canceled):
		return domain.NewAIProviderError(provider, "request canceled", false, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewAIProviderError(provider, "request timed out", true, err)
	default:
		return domain.NewAIProviderError(provider, "transport failure", true, err)
	}
}
