package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// InitTracer initializes the OpenTelemetry tracer provider. The level is
// the process log verbosity: at debug the stdout exporter pretty-prints,
// otherwise spans go out as compact JSON. It returns a shutdown function
// that should be called on app exit.
func InitTracer(level slog.Level) (func(context.Context) error, error) {
	// Stdout exporter for development; swap for OTLP in production.
	var opts []stdouttrace.Option
	if level <= slog.LevelDebug {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("fleetd"),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Standard W3C propagation.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Export failures go through the process logger instead of otel's
	// stderr printer, so the configured verbosity governs them too.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Warn("otel error", "error", err)
	}))

	return tp.Shutdown, nil
}
