// Package observability exports OpenTelemetry instruments through the
// Prometheus registry served on /metrics.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider    *metric.MeterProvider
	jobCounter       otelmetric.Int64Counter
	jobDuration      otelmetric.Float64Histogram
	broadcastResults otelmetric.Int64Counter
}

// New installs a meter provider for serviceName. On exporter failure it
// returns an instance whose recorders are no-ops, together with the error.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	broadcastResults, _ := meter.Int64Counter(
		"notifications.broadcast.results",
		otelmetric.WithDescription("Per-sender results of fan-out broadcasts"),
	)

	return &Observability{
		meterProvider:    provider,
		jobCounter:       jobCounter,
		jobDuration:      jobDuration,
		broadcastResults: broadcastResults,
	}, nil
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
	))
}

// RecordBroadcast counts each sender outcome of a fan-out. outcomes maps a
// sender name to an already classified result.
func (o *Observability) RecordBroadcast(ctx context.Context, outcomes map[string]string) {
	if o == nil || o.broadcastResults == nil {
		return
	}
	for sender, outcome := range outcomes {
		o.broadcastResults.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("sender", sender),
			attribute.String("result", outcome),
		))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
