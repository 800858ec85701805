// Package prometheus bridges OpenTelemetry metrics into a Prometheus
// registry, so the ops HTTP server can expose a /metrics endpoint without
// running a separate OTLP collector.
package prometheus

import (
	"context"

	"go.opentelemetry.io/otel"

	promclient "github.com/prometheus/client_golang/prometheus"
	prometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/lukewwww/community-intern/pkg/telemetry"
)

// Setup configures OpenTelemetry to export metrics in Prometheus format,
// registers the resulting meter provider as the global one, and returns a
// Gatherer the ops HTTP server can hand to promhttp.
func Setup(
	ctx context.Context,
	serviceName, serviceVersion string,
) (promclient.Gatherer, func(context.Context) error, error) {
	res, err := telemetry.NewResource(ctx, serviceName, serviceVersion)
	if err != nil {
		return nil, nil, err
	}

	registry := promclient.NewRegistry()

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(prometheusExporter),
	)

	otel.SetMeterProvider(meterProvider)

	return registry, meterProvider.Shutdown, nil
}
