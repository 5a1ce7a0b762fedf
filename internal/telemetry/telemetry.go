// Package telemetry sets up OpenTelemetry tracing and metrics.
//
// Spans go to the global tracer provider so any package can start them with
// otel.Tracer. Metrics are exported through a Prometheus registry owned by
// the Telemetry value and served by MetricsHandler.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

// InstrumentationName is the tracer and meter name used by the service.
const InstrumentationName = "github.com/JonMunkholm/cleaner"

// Config holds telemetry settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout" or "none"
	SampleRatio    float64
	MetricsEnabled bool
}

// Telemetry holds the providers created by Init.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Metrics        *Metrics

	handler http.Handler
	logger  *slog.Logger
}

// Init configures tracing and metrics. Tracing installs a global tracer
// provider; with TraceExporter "none" the global no-op provider stays in
// place.
func Init(cfg Config, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	t := &Telemetry{logger: logger}

	if err := t.initTracing(cfg, res); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	if cfg.MetricsEnabled {
		if err := t.initMetrics(cfg, res); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		"trace_exporter", cfg.TraceExporter,
		"metrics_enabled", cfg.MetricsEnabled,
	)
	return t, nil
}

func (t *Telemetry) initTracing(cfg Config, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "", "none":
		return nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	t.TracerProvider = tp
	return nil
}

func (t *Telemetry) initMetrics(cfg Config, res *resource.Resource) error {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	metrics, err := NewMetrics(mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)))
	if err != nil {
		return err
	}

	t.MeterProvider = mp
	t.Metrics = metrics
	t.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return nil
}

// MetricsHandler serves the Prometheus exposition format. It responds 404
// when metrics are disabled.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t == nil || t.handler == nil {
		return http.NotFoundHandler()
	}
	return t.handler
}

// Shutdown flushes pending spans and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}

	t.logger.Info("telemetry shut down")
	return nil
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
