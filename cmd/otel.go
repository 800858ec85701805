package cmd

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lukewwww/community-intern/pkg/telemetry"
)

// setupTracing installs a global tracer provider. When enabled is false the
// exporter writes to io.Discard: spans are still created and recorded (so
// RunOnce's instrumentation never branches on this flag) but nothing is
// printed. This module has no OTLP collector target; tracing output goes to
// stdout only.
func setupTracing(
	ctx context.Context,
	serviceName, serviceVersion string,
	enabled bool,
) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res, err := telemetry.NewResource(ctx, serviceName, serviceVersion)
	if err != nil {
		return nil, err
	}

	var exporterOpts []stdouttrace.Option
	if !enabled {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(io.Discard))
	} else {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}

	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
