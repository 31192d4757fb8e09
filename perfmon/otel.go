package perfmon

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricRequestTotal    = "aimux.request.total"
	MetricRequestDuration = "aimux.request.duration"
	MetricRequestActive   = "aimux.request.active"
	MetricRequestSlow     = "aimux.request.slow"
	MetricErrorTotal      = "aimux.error.total"
	MetricRequestRejected = "aimux.request.rejected"
)

// instruments mirrors the Monitor's counters onto OpenTelemetry.
type instruments struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
	requestSlow     metric.Int64Counter
	errorTotal      metric.Int64Counter
	requestRejected metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	requestTotal, err := meter.Int64Counter(MetricRequestTotal,
		metric.WithDescription("Total number of completed backend requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestTotal, err)
	}

	requestDuration, err := meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Duration of backend requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRequestDuration, err)
	}

	requestActive, err := meter.Int64UpDownCounter(MetricRequestActive,
		metric.WithDescription("Number of in-flight backend requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricRequestActive, err)
	}

	requestSlow, err := meter.Int64Counter(MetricRequestSlow,
		metric.WithDescription("Requests slower than the configured threshold"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestSlow, err)
	}

	errorTotal, err := meter.Int64Counter(MetricErrorTotal,
		metric.WithDescription("Failed backend requests by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrorTotal, err)
	}

	requestRejected, err := meter.Int64Counter(MetricRequestRejected,
		metric.WithDescription("Requests rejected before reaching a backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequestRejected, err)
	}

	return &instruments{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestActive:   requestActive,
		requestSlow:     requestSlow,
		errorTotal:      errorTotal,
		requestRejected: requestRejected,
	}, nil
}

func (i *instruments) recordRejection(ctx context.Context, service, operation, kind string) {
	i.requestRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("kind", kind),
	))
}

func (i *instruments) recordStart(ctx context.Context, service, operation string) {
	i.requestActive.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
	))
}

func (i *instruments) recordEnd(ctx context.Context, rm *RequestMetric, slow bool) {
	base := []attribute.KeyValue{
		attribute.String("service", rm.Service),
		attribute.String("operation", rm.Operation),
	}
	status := "ok"
	if !rm.Success {
		status = "error"
	}

	i.requestActive.Add(ctx, -1, metric.WithAttributes(base...))
	i.requestTotal.Add(ctx, 1, metric.WithAttributes(append(base,
		attribute.String("model", rm.Model),
		attribute.String("status", status),
	)...))
	i.requestDuration.Record(ctx, rm.Duration, metric.WithAttributes(base...))
	if slow {
		i.requestSlow.Add(ctx, 1, metric.WithAttributes(base...))
	}
	if !rm.Success {
		i.errorTotal.Add(ctx, 1, metric.WithAttributes(append(base,
			attribute.String("kind", rm.ErrorKind),
		)...))
	}
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
