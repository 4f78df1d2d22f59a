package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// MetricConfig holds configuration for the meter provider.
type MetricConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP gRPC collector address. Without it (and
	// without Conn) the global no-op provider stays in place.
	OTLPEndpoint string

	// Conn is an existing collector connection, see TracerConfig.Conn.
	Conn *grpc.ClientConn

	// Interval between exports. Default: 15s
	Interval time.Duration
}

// InitMetrics installs a global meter provider exporting over OTLP gRPC and
// returns its shutdown function.
func InitMetrics(ctx context.Context, config MetricConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if config.Conn == nil && config.OTLPEndpoint == "" {
		return noop, nil
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Second
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, err
	}

	conn := config.Conn
	if conn == nil {
		if conn, err = dial(config.OTLPEndpoint); err != nil {
			return nil, err
		}
	}
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(config.Interval))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Config configures tracing and metrics for a command.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the collector address. Telemetry is disabled when empty.
	OTLPEndpoint string
}

// Setup installs the tracer and meter providers over one collector
// connection. Without an endpoint it does nothing and the returned shutdown
// function is a no-op.
func Setup(ctx context.Context, config Config) (shutdown func(context.Context) error, err error) {
	if config.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	conn, err := dial(config.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	traceShutdown, err := InitTracer(ctx, TracerConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Environment:    config.Environment,
		Conn:           conn,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}

	metricShutdown, err := InitMetrics(ctx, MetricConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Environment:    config.Environment,
		Conn:           conn,
	})
	if err != nil {
		_ = traceShutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	return func(ctx context.Context) error {
		return errors.Join(metricShutdown(ctx), traceShutdown(ctx), conn.Close())
	}, nil
}

func dial(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", endpoint, err)
	}
	return conn, nil
}
