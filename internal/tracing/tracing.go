package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/bartime/bartime-api/internal/config"
)

// Init installs a global tracer provider exporting over OTLP/HTTP. With no
// endpoint configured the global no-op provider is kept and the returned
// shutdown func does nothing.
func Init(ctx context.Context, conf *config.TracingConfig) (func(context.Context) error, error) {
	if conf == nil || conf.Endpoint == "" {
		zap.L().Info("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(conf.Endpoint)}
	if conf.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlptracehttp.New -> %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", conf.ServiceName),
		)),
	)
	otel.SetTracerProvider(provider)

	zap.L().Info("tracing enabled", zap.String("endpoint", conf.Endpoint))

	return provider.Shutdown, nil
}
