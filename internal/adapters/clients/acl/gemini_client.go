package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/pearquote/quote-service/internal/adapters/clients"
	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/platform/logging"
	"github.com/pearquote/quote-service/internal/ports"
)

// ProviderName identifies the AI provider in errors, logs and health reports.
const ProviderName = "gemini"

// APIKeyHeader carries the provider API key.
const APIKeyHeader = "x-goog-api-key"

// GeminiConfig contains configuration for the Gemini client.
type GeminiConfig struct {
	// Client must be configured with the API base URL and a single attempt:
	// generation calls are never retried.
	Client *clients.Client

	Model           string
	Temperature     *float64
	MaxOutputTokens int

	Logger *slog.Logger
}

// GeminiClient implements ports.ContentGenerator and ports.HealthChecker
// over the generateContent endpoint.
type GeminiClient struct {
	client *clients.Client
	model  string
	gen    generationConfig
	logger *slog.Logger
}

// NewGeminiClient creates a Gemini client. It panics if Client or Model is missing.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Client == nil {
		panic("GeminiClient: Client is required")
	}

	if cfg.Model == "" {
		panic("GeminiClient: Model is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiClient{
		client: cfg.Client,
		model:  cfg.Model,
		gen: generationConfig{
			ResponseMIMEType: jsonMIMEType,
			Temperature:      cfg.Temperature,
			MaxOutputTokens:  cfg.MaxOutputTokens,
		},
		logger: logger.With(slog.String("component", "acl.GeminiClient")),
	}
}

// APIKeyAuth returns a clients.Config AuthFunc that sends key in the API key header.
func APIKeyAuth(key string) func(*http.Request) {
	return func(r *http.Request) {
		if key != "" {
			r.Header.Set(APIKeyHeader, key)
		}
	}
}

func (c *GeminiClient) modelPath() string {
	return "/v1beta/models/" + url.PathEscape(c.model)
}

// Generate implements ports.ContentGenerator with one blocking call.
func (c *GeminiClient) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	logger := logging.FromContextOr(ctx, c.logger)

	body, err := json.Marshal(toRequest(prompt, c.gen))
	if err != nil {
		return "", domain.NewAIProviderError(ProviderName, "encoding request", false, err)
	}

	logging.Trace(ctx, logger, "calling generateContent",
		slog.String("model", c.model),
		slog.Int("images", len(prompt.Images)),
		slog.Int("prompt_bytes", len(prompt.Text)),
	)

	resp, err := c.client.Post(ctx, c.modelPath()+":generateContent", body)
	if err != nil {
		return "", mapClientError(err, ProviderName)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		mapped := mapHTTPError(resp, ProviderName)
		logger.WarnContext(ctx, "ai provider returned an error",
			slog.Int("status_code", resp.StatusCode),
			slog.Any("error", mapped),
		)

		return "", mapped
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", domain.NewAIProviderError(ProviderName, "decoding response", true, err)
	}

	return fromResponse(&decoded, ProviderName)
}

// Name implements ports.HealthChecker.
func (c *GeminiClient) Name() string {
	return "ai"
}

// Check implements ports.HealthChecker. It fails fast while the circuit is open,
// otherwise it reads the model metadata, which does not consume generation quota.
func (c *GeminiClient) Check(ctx context.Context) error {
	if state := c.client.CircuitState(); state == clients.StateOpen {
		return fmt.Errorf("%s circuit is %s", ProviderName, state)
	}

	resp, err := c.client.Get(ctx, c.modelPath())
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s model endpoint returned status %d", ProviderName, resp.StatusCode)
	}

	return nil
}
