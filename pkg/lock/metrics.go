package lock

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	otelPackageName = "github.com/lukewwww/community-intern/pkg/lock"

	// LockResultSuccess and friends label the outcome of a lock attempt.
	LockResultSuccess    = "success"
	LockResultContention = "contention"
)

var (
	//nolint:gochecknoglobals
	meter metric.Meter

	// lockAcquisitionsTotal tracks total lock acquisition attempts.
	//nolint:gochecknoglobals
	lockAcquisitionsTotal metric.Int64Counter

	// lockHoldDuration tracks how long the writer lock is held per cycle.
	//nolint:gochecknoglobals
	lockHoldDuration metric.Float64Histogram
)

//nolint:gochecknoinits
func init() {
	meter = otel.Meter(otelPackageName)

	var err error

	lockAcquisitionsTotal, err = meter.Int64Counter(
		"index_lock_acquisitions_total",
		metric.WithDescription("Total number of writer lock acquisition attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		panic(err)
	}

	lockHoldDuration, err = meter.Float64Histogram(
		"index_lock_hold_duration_seconds",
		metric.WithDescription("Duration the writer lock was held"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}

// RecordLockAcquisition records a lock acquisition attempt.
// result should be one of the LockResult* constants.
func RecordLockAcquisition(ctx context.Context, key, result string) {
	if lockAcquisitionsTotal == nil {
		return
	}

	lockAcquisitionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("key", key),
			attribute.String("result", result),
		),
	)
}

// RecordLockDuration records how long the lock identified by key was held.
func RecordLockDuration(ctx context.Context, key string, duration float64) {
	if lockHoldDuration == nil {
		return
	}

	lockHoldDuration.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("key", key),
		),
	)
}
