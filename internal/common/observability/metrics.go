package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	stepCounter    otelmetric.Int64Counter
	backendLatency otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())))
	otel.SetTracerProvider(tracerProvider)

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{tracerProvider: tracerProvider}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	stepCounter, _ := meter.Int64Counter(
		"wizard.steps.entered",
		otelmetric.WithDescription("Number of wizard step entries"),
	)

	backendLatency, _ := meter.Float64Histogram(
		"backend.request.duration",
		otelmetric.WithDescription("Marketplace backend call duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tracerProvider,
		meter:          meter,
		stepCounter:    stepCounter,
		backendLatency: backendLatency,
	}
}

func (o *Observability) RecordStepEntered(ctx context.Context, step string) {
	if o.stepCounter != nil {
		o.stepCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("step", step),
		))
	}
}

func (o *Observability) RecordBackendCall(ctx context.Context, endpoint string, duration time.Duration, status string) {
	if o.backendLatency != nil {
		o.backendLatency.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
