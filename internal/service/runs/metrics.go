package runs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/runsearch/internal/telemetry"
)

const instrumentationScope = "runsearch/runs"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationScope)
}

// instruments holds the OTEL instruments shared by the pipeline stages.
// Instrument creation errors leave the field nil; record* skip nil fields.
type instruments struct {
	queries        metric.Int64Counter
	parents        metric.Int64Counter
	searchDuration metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := telemetry.Meter(instrumentationScope)
	queries, _ := meter.Int64Counter("runsearch.queries",
		metric.WithDescription("Remote search queries issued, by query kind and outcome"),
	)
	parents, _ := meter.Int64Counter("runsearch.parents",
		metric.WithDescription("Parent run fetches, by outcome (resolved, missing, failed)"),
	)
	searchDur, _ := meter.Float64Histogram("runsearch.search.duration",
		metric.WithDescription("End-to-end search pipeline duration (ms)"),
		metric.WithUnit("ms"),
	)
	return &instruments{queries: queries, parents: parents, searchDuration: searchDur}
}

func (m *instruments) recordQuery(ctx context.Context, kind string, err error) {
	if m == nil || m.queries == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("query", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *instruments) recordParent(ctx context.Context, outcome string) {
	if m == nil || m.parents == nil {
		return
	}
	m.parents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *instruments) recordSearch(ctx context.Context, op string, ms float64, err error) {
	if m == nil || m.searchDuration == nil {
		return
	}
	m.searchDuration.Record(ctx, ms, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Bool("error", err != nil),
	))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
