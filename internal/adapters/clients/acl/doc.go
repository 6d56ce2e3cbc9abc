// Package acl is the anti-corruption layer between the service and the
// generative AI provider (Gemini generateContent).
//
// Provider DTOs never leave this package. Requests are built from a
// ports.Prompt and responses are reduced to the raw model text; every
// failure is translated into a domain error:
//
//   - transport failures, 429 and 5xx → retryable [domain.AIProviderError]
//   - other 4xx (bad key, unknown model, invalid request) → non-retryable [domain.AIProviderError]
//   - a blocked prompt or a response without text → non-retryable [domain.AIProviderError]
//   - an open circuit → retryable [domain.AIProviderError]
//
// Parsing the model text into the quoting model is not done here; that is
// the job of the application's normalizer.
package acl
