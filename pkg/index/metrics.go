package index

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const otelPackageName = "github.com/lukewwww/community-intern/pkg/index"

//nolint:gochecknoglobals
var tracer = otel.Tracer(otelPackageName)

var (
	//nolint:gochecknoglobals
	meter metric.Meter

	// cycleDuration tracks how long a full run_once cycle took.
	//nolint:gochecknoglobals
	cycleDuration metric.Float64Histogram

	// cyclesChangedTotal counts cycles that persisted a cache/index change.
	//nolint:gochecknoglobals
	cyclesChangedTotal metric.Int64Counter

	// summarizationsTotal counts committed summaries, by source type.
	//nolint:gochecknoglobals
	summarizationsTotal metric.Int64Counter
)

//nolint:gochecknoinits
func init() {
	meter = otel.Meter(otelPackageName)

	var err error

	cycleDuration, err = meter.Float64Histogram(
		"index_cycle_duration_seconds",
		metric.WithDescription("Duration of one orchestrator run_once cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}

	cyclesChangedTotal, err = meter.Int64Counter(
		"index_cycles_changed_total",
		metric.WithDescription("Number of cycles that persisted a cache or index change"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		panic(err)
	}

	summarizationsTotal, err = meter.Int64Counter(
		"index_summarizations_total",
		metric.WithDescription("Total number of summaries committed"),
		metric.WithUnit("{summary}"),
	)
	if err != nil {
		panic(err)
	}
}

func recordCycleDuration(ctx context.Context, d time.Duration) {
	if cycleDuration == nil {
		return
	}

	cycleDuration.Record(ctx, d.Seconds())
}

func recordCycleChanged(ctx context.Context, changed bool) {
	if cyclesChangedTotal == nil || !changed {
		return
	}

	cyclesChangedTotal.Add(ctx, 1)
}

func recordSummarization(ctx context.Context, st SourceType) {
	if summarizationsTotal == nil {
		return
	}

	summarizationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source_type", string(st))))
}
