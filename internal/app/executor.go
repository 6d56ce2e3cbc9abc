package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pearquote/quote-service/internal/platform/logging"
	"github.com/pearquote/quote-service/internal/platform/telemetry"
)

// Quote writes go through a fixed pipeline:
//
//	validate  input and ownership, nothing changed yet
//	perform   price items and build the new quote in memory
//	verify    recompute totals from the item set
//	archive   persist in one transaction; the only step that writes
//	respond   shape the result

// ExecutionStep names a pipeline stage.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the stage a pipeline failed in.
// Domain errors stay reachable through errors.Is and errors.As.
type ExecutionError struct {
	Step  ExecutionStep
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// GetExecutionStep returns the failed stage of a pipeline error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}

// Executor carries the logger and metrics shared by every pipeline run.
type Executor struct {
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

// NewExecutor creates an executor. Both arguments may be nil.
func NewExecutor(logger *slog.Logger, metrics *telemetry.BusinessMetrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger, metrics: metrics}
}

// Operation is one quote write expressed as pipeline stages. Nil stages are skipped.
// I is the input, P the performed state, V the verified state and O the result.
type Operation[I, P, V, O any] struct {
	// Name labels logs, spans and the operation metric.
	Name string

	Validate func(ctx context.Context, input I) error
	Perform  func(ctx context.Context, input I) (P, error)
	Verify   func(ctx context.Context, input I, performed P) (V, error)
	Archive  func(ctx context.Context, input I, verified V) error
	Respond  func(ctx context.Context, input I, verified V) (O, error)
}

// Execute runs op on input, stopping at the first failing stage.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (result O, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "quote."+op.Name)
	defer span.End()

	logger := logging.FromContextOr(ctx, exec.logger).With(slog.String("operation", op.Name))
	start := time.Now()

	defer func() {
		exec.metrics.QuoteOperation(ctx, op.Name, err)

		if err == nil {
			return
		}

		step, _ := GetExecutionStep(err)
		span.SetAttributes(attribute.String("pipeline.failed_step", string(step)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}()

	if op.Validate != nil {
		_, err = runStep(ctx, logger, StepValidate, slog.LevelWarn, func() (struct{}, error) {
			return struct{}{}, op.Validate(ctx, input)
		})
		if err != nil {
			return result, err
		}
	}

	var performed P
	if op.Perform != nil {
		performed, err = runStep(ctx, logger, StepPerform, slog.LevelWarn, func() (P, error) {
			return op.Perform(ctx, input)
		})
		if err != nil {
			return result, err
		}
	}

	var verified V
	if op.Verify != nil {
		verified, err = runStep(ctx, logger, StepVerify, slog.LevelError, func() (V, error) {
			return op.Verify(ctx, input, performed)
		})
		if err != nil {
			return result, err
		}
	}

	if op.Archive != nil {
		_, err = runStep(ctx, logger, StepArchive, slog.LevelError, func() (struct{}, error) {
			return struct{}{}, op.Archive(ctx, input, verified)
		})
		if err != nil {
			return result, err
		}
	}

	if op.Respond != nil {
		result, err = runStep(ctx, logger, StepRespond, slog.LevelWarn, func() (O, error) {
			return op.Respond(ctx, input, verified)
		})
		if err != nil {
			return result, err
		}
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// runStep logs a failure at failLevel and tags it with its stage.
func runStep[T any](
	ctx context.Context,
	logger *slog.Logger,
	step ExecutionStep,
	failLevel slog.Level,
	fn func() (T, error),
) (T, error) {
	logging.Trace(ctx, logger, "pipeline step", slog.String("step", string(step)))

	out, err := fn()
	if err != nil {
		logger.Log(ctx, failLevel, "pipeline step failed", slog.String("step", string(step)), slog.Any("error", err))

		var zero T

		return zero, &ExecutionError{Step: step, Cause: err}
	}

	return out, nil
}
