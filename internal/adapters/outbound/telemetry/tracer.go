// tracer.go sets up OpenTelemetry tracing for the command line tools.
//
// Spans are exported over OTLP gRPC when an endpoint is configured and
// printed to stdout otherwise:
//
//	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
//	    ServiceName:  "datagen",
//	    OTLPEndpoint: "localhost:4317",
//	})
//	defer shutdown(ctx)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
)

// TracerConfig holds configuration for the tracer.
type TracerConfig struct {
	// ServiceName is the name of the tool (e.g. "sync-worker").
	ServiceName string

	ServiceVersion string

	// Environment is the deployment environment (e.g. "lxplus", "local").
	Environment string

	// OTLPEndpoint is the OTLP gRPC collector address.
	// If empty, spans are written to stdout.
	OTLPEndpoint string

	// Conn is an existing collector connection. It takes precedence over
	// OTLPEndpoint and is not closed by the shutdown function.
	Conn *grpc.ClientConn

	// SampleRate is the sampling rate in [0, 1]. Default is 1.
	SampleRate float64
}

// TracerConfigDefaults returns default configuration.
func TracerConfigDefaults() TracerConfig {
	return TracerConfig{
		ServiceName:    "analysis-tools",
		ServiceVersion: "dev",
		Environment:    "local",
		SampleRate:     1.0,
	}
}

// InitTracer installs a global tracer provider and returns its shutdown
// function, which flushes pending spans.
func InitTracer(ctx context.Context, config TracerConfig) (shutdown func(context.Context) error, err error) {
	defaults := TracerConfigDefaults()
	if config.ServiceName == "" {
		config.ServiceName = defaults.ServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = defaults.ServiceVersion
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, err
	}

	var exporter trace.SpanExporter
	var owned *grpc.ClientConn
	if config.Conn != nil || config.OTLPEndpoint != "" {
		conn := config.Conn
		if conn == nil {
			if conn, err = dial(config.OTLPEndpoint); err != nil {
				return nil, err
			}
			owned = conn
		}

		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			if owned != nil {
				_ = owned.Close()
			}
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
		trace.WithSampler(sampler(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if owned == nil {
		return tp.Shutdown, nil
	}
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), owned.Close())
	}, nil
}

func sampler(rate float64) trace.Sampler {
	switch {
	case rate >= 1.0:
		return trace.AlwaysSample()
	case rate <= 0:
		return trace.NeverSample()
	default:
		return trace.TraceIDRatioBased(rate)
	}
}

func newResource(name, version, environment string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
			semconv.DeploymentEnvironmentName(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
