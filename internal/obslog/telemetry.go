package obslog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/brindlegames/gridforge"

// Telemetry bundles a tracer and a small set of counters around the two
// operations worth watching in production: loading a datapack set and
// applying a turn. No exporter is configured here; callers that want
// real spans/metrics wire a TracerProvider/MeterProvider before calling
// engine.New, and get the global no-op providers otherwise.
type Telemetry struct {
	tracer     trace.Tracer
	loadsTotal metric.Int64Counter
	turnsTotal metric.Int64Counter
}

// New builds a Telemetry against the currently registered global
// providers. Calling otel.SetTracerProvider/SetMeterProvider before this
// is how a host process opts into real export.
func New() *Telemetry {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	loadsTotal, _ := meter.Int64Counter(
		"gridforge.loader.loads_total",
		metric.WithDescription("number of datapack sets loaded into a ruleset"),
	)
	turnsTotal, _ := meter.Int64Counter(
		"gridforge.engine.turns_total",
		metric.WithDescription("number of turns applied"),
	)

	return &Telemetry{tracer: tracer, loadsTotal: loadsTotal, turnsTotal: turnsTotal}
}

func (t *Telemetry) StartLoad(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "gridforge.Load")
	if t.loadsTotal != nil {
		t.loadsTotal.Add(ctx, 1)
	}
	return ctx, span
}

func (t *Telemetry) StartApply(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "gridforge.Apply")
	if t.turnsTotal != nil {
		t.turnsTotal.Add(ctx, 1)
	}
	return ctx, span
}
