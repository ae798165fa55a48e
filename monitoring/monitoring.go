package monitoring

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"checkout-gateway/logging"
)

var (
	// OpenTelemetry metrics
	GatewayRequests        metric.Int64Counter
	OrderAmount            metric.Int64Histogram
	ExternalCallDuration   metric.Float64Histogram
	SignatureVerifications metric.Int64Counter
	HTTPServerDuration     metric.Float64Histogram
)

func init() {
	// No-op instruments until InitMeter runs, so packages and tests can record freely.
	if err := initInstruments(noop.NewMeterProvider().Meter("checkout-gateway")); err != nil {
		panic(err)
	}
}

// InitTracer initializes OpenTelemetry tracing. With exportEnabled false
// spans are still created but never leave the process.
func InitTracer(serviceName, endpoint string, exportEnabled bool) (*sdktrace.TracerProvider, trace.Tracer, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exportEnabled {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(serviceName)

	logging.Info("Tracing initialized", zap.String("service_name", serviceName), zap.Bool("export", exportEnabled))

	return tp, tracer, nil
}

// InitMeter initializes OpenTelemetry metrics. Metrics are always exposed
// through the returned Prometheus handler and additionally pushed over OTLP
// when exportEnabled is set.
func InitMeter(serviceName, endpoint string, exportEnabled bool) (*sdkmetric.MeterProvider, http.Handler, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	}
	if exportEnabled {
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	if err := initInstruments(mp.Meter(serviceName)); err != nil {
		return nil, nil, err
	}

	logging.Info("Metrics initialized", zap.String("endpoint", endpoint), zap.Bool("export", exportEnabled))

	return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func initInstruments(meter metric.Meter) error {
	var err error

	GatewayRequests, err = meter.Int64Counter(
		"gateway_requests_total",
		metric.WithDescription("Total number of payment gateway operations"),
	)
	if err != nil {
		return err
	}

	OrderAmount, err = meter.Int64Histogram(
		"gateway_order_amount_minor",
		metric.WithDescription("Order and payment amounts in minor currency units"),
	)
	if err != nil {
		return err
	}

	ExternalCallDuration, err = meter.Float64Histogram(
		"external_payment_provider_duration_seconds",
		metric.WithDescription("Duration of external payment provider calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	SignatureVerifications, err = meter.Int64Counter(
		"signature_verifications_total",
		metric.WithDescription("Payment and callback signature checks by result"),
	)
	if err != nil {
		return err
	}

	HTTPServerDuration, err = meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP server request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}
