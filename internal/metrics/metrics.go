// Package metrics records job counters and latencies with OpenTelemetry.
package metrics

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"vision-gateway/internal/types"
)

const meterName = "vision-gateway"

type Config struct {
	StdoutMetrics bool
	Interval      time.Duration
}

// Setup installs a global meter provider. With StdoutMetrics set, readings
// are exported to stdout every Interval. The returned func flushes and stops
// the provider.
func Setup(cfg Config) (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	var opts []sdkmetric.Option
	if cfg.StdoutMetrics {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, nil, err
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = time.Minute
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}

// Recorder is nil-safe: a nil *Recorder records nothing.
type Recorder struct {
	submitted metric.Int64Counter
	finished  metric.Int64Counter
	rejected  metric.Int64Counter
	duration  metric.Float64Histogram
}

func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(meterName)

	submitted, err := meter.Int64Counter("jobs.submitted",
		metric.WithDescription("Jobs accepted for execution"))
	if err != nil {
		return nil, err
	}
	finished, err := meter.Int64Counter("jobs.finished",
		metric.WithDescription("Jobs that reached a terminal state"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("jobs.rejected",
		metric.WithDescription("Submissions refused before a job was created"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("jobs.duration",
		metric.WithDescription("Execution time of finished jobs"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Recorder{submitted: submitted, finished: finished, rejected: rejected, duration: duration}, nil
}

func (r *Recorder) JobSubmitted(ctx context.Context, task types.TaskID, model types.BackendID) {
	if r == nil {
		return
	}
	r.submitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", string(task)),
		attribute.String("model", string(model)),
	))
}

func (r *Recorder) JobRejected(ctx context.Context, reason string) {
	if r == nil {
		return
	}
	r.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Recorder) JobFinished(ctx context.Context, job *types.Job) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("task", string(job.Task)),
		attribute.String("model", string(job.Model)),
		attribute.String("status", job.Status.String()),
	)
	r.finished.Add(ctx, 1, attrs)
	r.duration.Record(ctx, job.Duration().Seconds(), attrs)
}
