package logging

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger         = zap.NewNop()
	serviceName    = "checkout-gateway"
	loggerProvider *sdklog.LoggerProvider
)

// Options controls logger initialization
type Options struct {
	ServiceName string
	// OTLPEndpoint is the collector address for log export. Empty keeps logs on stdout only.
	OTLPEndpoint string
}

// InitLogger replaces the no-op logger with a JSON stdout logger and, when
// an endpoint is given, registers an OTLP log provider. A collector that
// cannot be reached only produces a warning.
func InitLogger(opts Options) error {
	if opts.ServiceName != "" {
		serviceName = opts.ServiceName
	}

	built, err := stdoutLogger()
	if err != nil {
		return err
	}
	logger = built

	if opts.OTLPEndpoint == "" {
		return nil
	}
	provider, err := otlpProvider(context.Background(), opts.OTLPEndpoint)
	if err != nil {
		logger.Warn("OTLP log export disabled", zap.String("endpoint", opts.OTLPEndpoint), zap.Error(err))
		return nil
	}
	loggerProvider = provider
	global.SetLoggerProvider(provider)
	logger.Info("OTLP log export enabled", zap.String("endpoint", opts.OTLPEndpoint))
	return nil
}

func stdoutLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	// Callers see the line that called Info/Warn/Error, not this package.
	return cfg.Build(zap.AddCallerSkip(1))
}

func otlpProvider(ctx context.Context, endpoint string) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create log resource: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}

// SetLogger replaces the global logger. Tests use it to capture output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	return logger
}

func withService() *zap.Logger {
	return logger.With(zap.String("service", serviceName))
}

// WithTraceContext returns a logger tagged with the span's trace and span ids.
func WithTraceContext(span trace.Span) *zap.Logger {
	sc := span.SpanContext()
	if !sc.IsValid() {
		return withService()
	}
	return withService().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// FromContext returns a logger carrying the trace of the span stored in ctx.
func FromContext(ctx context.Context) *zap.Logger {
	return WithTraceContext(trace.SpanFromContext(ctx))
}

// Info logs at info level with the service field
func Info(msg string, fields ...zap.Field) { withService().Info(msg, fields...) }

// Warn logs at warn level with the service field
func Warn(msg string, fields ...zap.Field) { withService().Warn(msg, fields...) }

// Error logs at error level with the service field
func Error(msg string, fields ...zap.Field) { withService().Error(msg, fields...) }

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) { withService().Fatal(msg, fields...) }

// Sync flushes buffered entries
func Sync() error {
	return logger.Sync()
}

// Shutdown flushes and stops the OTLP log provider, if one was started.
func Shutdown(ctx context.Context) error {
	if loggerProvider == nil {
		return nil
	}
	return loggerProvider.Shutdown(ctx)
}
