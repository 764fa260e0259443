package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the publish and automation paths.
type Metrics struct {
	PublishAttempts    metric.Int64Counter
	PublishOutcomes    metric.Int64Counter
	DraftsGenerated    metric.Int64Counter
	GenerationFallback metric.Int64Counter
	RunClaims          metric.Int64Counter
	SweepDuration      metric.Float64Histogram
}

// InitMetrics registers instruments on the global meter provider. Without an
// SDK installed they are no-ops.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("autosocial")

	publishAttempts, err := meter.Int64Counter(
		"publish.attempts.total",
		metric.WithDescription("Graph API calls made while publishing"),
	)
	if err != nil {
		return nil, err
	}

	publishOutcomes, err := meter.Int64Counter(
		"publish.outcomes.total",
		metric.WithDescription("Terminal publish outcomes per rendition"),
	)
	if err != nil {
		return nil, err
	}

	drafts, err := meter.Int64Counter(
		"drafts.generated.total",
		metric.WithDescription("Drafts persisted by the generator"),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter(
		"generation.fallbacks.total",
		metric.WithDescription("Generation steps that degraded to a fallback value"),
	)
	if err != nil {
		return nil, err
	}

	claims, err := meter.Int64Counter(
		"automation.claims.total",
		metric.WithDescription("Run claim attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	sweepDuration, err := meter.Float64Histogram(
		"sweep.duration",
		metric.WithDescription("Scheduled publish sweep duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PublishAttempts:    publishAttempts,
		PublishOutcomes:    publishOutcomes,
		DraftsGenerated:    drafts,
		GenerationFallback: fallbacks,
		RunClaims:          claims,
		SweepDuration:      sweepDuration,
	}, nil
}

// Noop returns instruments bound to the current global provider, ignoring
// registration errors.
func Noop() *Metrics {
	m, err := InitMetrics()
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) RecordPublishAttempt(ctx context.Context, rendition, step string) {
	if m == nil {
		return
	}
	m.PublishAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rendition", rendition),
		attribute.String("step", step),
	))
}

func (m *Metrics) RecordPublishOutcome(ctx context.Context, rendition string, success bool) {
	if m == nil {
		return
	}
	m.PublishOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rendition", rendition),
		attribute.Bool("success", success),
	))
}

func (m *Metrics) RecordDraft(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.DraftsGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordFallback(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.GenerationFallback.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

func (m *Metrics) RecordClaim(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.RunClaims.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordSweep(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.Record(ctx, seconds)
}
