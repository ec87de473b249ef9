package metrics

import (
	"context"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the refresh instruments.
const MeterName = "github.com/Black-And-White-Club/discord-leaderboard-bot/leaderboard"

// OTel records attempts as OpenTelemetry instruments.
type OTel struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
	retries  metric.Int64Counter
}

// NewOTel creates the refresh instruments. A nil provider yields a nil
// recorder, whose methods are no-ops.
func NewOTel(provider metric.MeterProvider) (*OTel, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(MeterName)

	attempts, err := meter.Int64Counter(
		"leaderboard_refresh_total",
		metric.WithDescription("Finished leaderboard refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"leaderboard_refresh_duration_seconds",
		metric.WithDescription("Duration of leaderboard refresh attempts including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"leaderboard_refresh_retries_total",
		metric.WithDescription("Retries spent inside leaderboard refresh attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &OTel{attempts: attempts, duration: duration, retries: retries}, nil
}

func (o *OTel) RecordSuccess(ctx context.Context, a coordinator.Attempt) {
	o.record(ctx, a)
}

func (o *OTel) RecordFailure(ctx context.Context, a coordinator.Attempt) {
	o.record(ctx, a)
}

func (o *OTel) record(ctx context.Context, a coordinator.Attempt) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("board", a.Board),
		attribute.String("source", string(a.Source)),
		attribute.String("outcome", string(a.Outcome)),
	}
	if a.Reason != "" {
		attrs = append(attrs, attribute.String("reason", a.Reason))
	}
	opt := metric.WithAttributes(attrs...)

	o.attempts.Add(ctx, 1, opt)
	o.duration.Record(ctx, a.Duration.Seconds(), opt)
	if a.Retries > 0 {
		o.retries.Add(ctx, int64(a.Retries), metric.WithAttributes(attribute.String("board", a.Board)))
	}
}
