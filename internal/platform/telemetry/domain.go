package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Outcome labels for business instruments.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Tracer returns the service tracer for spans around business operations.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// BusinessMetrics records quote lifecycle writes and AI generations.
// A nil *BusinessMetrics is valid and records nothing.
type BusinessMetrics struct {
	quoteOps    metric.Int64Counter
	aiDuration  metric.Float64Histogram
	aiGenerated metric.Int64Counter
}

// NewBusinessMetrics creates the instruments on the global meter provider.
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)

	quoteOps, err := meter.Int64Counter(
		"quotes.operations",
		metric.WithDescription("Quote lifecycle operations by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	aiDuration, err := meter.Float64Histogram(
		"ai.generation.duration",
		metric.WithDescription("Latency of generative AI calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	aiGenerated, err := meter.Int64Counter(
		"ai.generation.total",
		metric.WithDescription("Generative AI calls by mode and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{quoteOps: quoteOps, aiDuration: aiDuration, aiGenerated: aiGenerated}, nil
}

// QuoteOperation counts one lifecycle operation (create, update, delete).
func (m *BusinessMetrics) QuoteOperation(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}

	m.quoteOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(err)),
	))
}

// AIGeneration records one call to the AI capability.
func (m *BusinessMetrics) AIGeneration(ctx context.Context, mode string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("mode", mode), attribute.String("outcome", outcome(err)))
	m.aiDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.aiGenerated.Add(ctx, 1, attrs)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}

	return OutcomeOK
}
