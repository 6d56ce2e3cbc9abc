// Package domain holds the quoting model: quotes, customers, settings, the pricing and
// trend calculations over them, and the business errors the adapters translate.
package domain

import (
	"errors"
	"fmt"
)

// Match these with errors.Is; the typed errors below carry the detail.
var (
	// ErrNotFound indicates the requested entity does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates user-correctable input failed business validation.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden indicates the entity exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a required dependency or feature is unavailable.
	ErrUnavailable = errors.New("unavailable")

	// ErrAIProvider indicates the generative AI capability failed (transport, quota, upstream error).
	ErrAIProvider = errors.New("ai provider failure")

	// ErrAIResponseParse indicates the generative AI capability returned text that is not the expected structure.
	ErrAIResponseParse = errors.New("ai response not parseable")

	// ErrTransaction indicates a multi-statement store operation failed and was rolled back.
	ErrTransaction = errors.New("transaction failed")
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError provides field-level context for validation errors.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// ForbiddenError provides context for forbidden errors.
type ForbiddenError struct {
	Operation string
	Reason    string
}

func (e *ForbiddenError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("operation %q forbidden: %s", e.Operation, e.Reason)
	}

	return fmt.Sprintf("operation %q forbidden", e.Operation)
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// NewForbiddenError creates a forbidden error with context.
func NewForbiddenError(operation, reason string) error {
	return &ForbiddenError{Operation: operation, Reason: reason}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
}

func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// AIProviderError reports a failed call to the generative AI capability.
// The call is never retried internally; Retryable tells the caller whether trying again may help.
type AIProviderError struct {
	Provider  string
	Reason    string
	Retryable bool
	Cause     error
}

func (e *AIProviderError) Error() string {
	msg := fmt.Sprintf("ai provider %q failed: %s", e.Provider, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Is reports whether target is ErrAIProvider.
func (e *AIProviderError) Is(target error) bool {
	return target == ErrAIProvider
}

// Unwrap returns the underlying cause.
func (e *AIProviderError) Unwrap() error {
	return e.Cause
}

// NewAIProviderError creates an AI provider error.
func NewAIProviderError(provider, reason string, retryable bool, cause error) error {
	return &AIProviderError{Provider: provider, Reason: reason, Retryable: retryable, Cause: cause}
}

// AIResponseParseError reports model output that could not be parsed into the expected schema.
// Raw holds the text exactly as the provider returned it.
type AIResponseParseError struct {
	Schema string
	Raw    string
	Cause  error
}

func (e *AIResponseParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ai response is not a valid %s: %v", e.Schema, e.Cause)
	}

	return fmt.Sprintf("ai response is not a valid %s", e.Schema)
}

// Is reports whether target is ErrAIResponseParse.
func (e *AIResponseParseError) Is(target error) bool {
	return target == ErrAIResponseParse
}

// Unwrap returns the underlying parse failure.
func (e *AIResponseParseError) Unwrap() error {
	return e.Cause
}

// NewAIResponseParseError creates a parse error that keeps the raw model text.
func NewAIResponseParseError(schema, raw string, cause error) error {
	return &AIResponseParseError{Schema: schema, Raw: raw, Cause: cause}
}

// TransactionError reports a rolled back multi-statement store operation.
// Domain errors raised inside the transaction stay reachable through Unwrap.
type TransactionError struct {
	Operation string
	Cause     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %q rolled back: %v", e.Operation, e.Cause)
}

// Is reports whether target is ErrTransaction.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}

// Unwrap returns the error that aborted the transaction.
func (e *TransactionError) Unwrap() error {
	return e.Cause
}

// NewTransactionError creates a transaction error.
func NewTransactionError(operation string, cause error) error {
	return &TransactionError{Operation: operation, Cause: cause}
}

// IsNotFound and the other Is helpers test err against the matching sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func IsAIProvider(err error) bool {
	return errors.Is(err, ErrAIProvider)
}

func IsAIResponseParse(err error) bool {
	return errors.Is(err, ErrAIResponseParse)
}

func IsTransaction(err error) bool {
	return errors.Is(err, ErrTransaction)
}
