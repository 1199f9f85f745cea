package generator

import (
	"context"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/encyclopedai/encyclopedai/internal/generator"

var _ ContentGenerator = (*Instrumented)(nil)

// Instrumented decorates a ContentGenerator with tracing spans and
// Prometheus timings.
type Instrumented struct {
	next     ContentGenerator
	provider string
	tracer   trace.Tracer
}

// Instrument wraps next, labelling spans with the provider name
func Instrument(next ContentGenerator, provider string) *Instrumented {
	return &Instrumented{
		next:     next,
		provider: provider,
		tracer:   otel.Tracer(tracerName),
	}
}

func (g *Instrumented) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs, attribute.String("llm.provider", g.provider))
	ctx, span := g.tracer.Start(ctx, "generator."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (g *Instrumented) finish(span trace.Span, op string, started time.Time, err error) {
	metrics.RecordGeneration(op, err, time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (g *Instrumented) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	ctx, span, started := g.start(ctx, "content",
		attribute.String("article.topic", req.Topic),
		attribute.Int("article.briefings", len(req.Briefings)),
	)
	body, err := g.next.GenerateContent(ctx, req)
	g.finish(span, "content", started, err)
	return body, err
}

func (g *Instrumented) GenerateSummary(ctx context.Context, title, body string) (string, error) {
	ctx, span, started := g.start(ctx, "summary", attribute.String("article.title", title))
	summary, err := g.next.GenerateSummary(ctx, title, body)
	g.finish(span, "summary", started, err)
	return summary, err
}

func (g *Instrumented) GenerateSearchResults(ctx context.Context, req SearchRequest) ([]RawSearchResult, error) {
	ctx, span, started := g.start(ctx, "search",
		attribute.String("search.query", req.Query),
		attribute.Int("search.candidates", len(req.Candidates)),
	)
	results, err := g.next.GenerateSearchResults(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.Int("search.results", len(results)))
	}
	g.finish(span, "search", started, err)
	return results, err
}
