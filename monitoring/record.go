package monitoring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordGatewayRequest counts one gateway operation outcome.
func RecordGatewayRequest(ctx context.Context, gateway, operation, status string) {
	GatewayRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("gateway", gateway),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordOrderAmount records an amount in minor units.
func RecordOrderAmount(ctx context.Context, gateway string, amountMinor int64) {
	OrderAmount.Record(ctx, amountMinor,
		metric.WithAttributes(attribute.String("gateway", gateway)),
	)
}

// RecordExternalCall records the latency of a provider call started at start.
func RecordExternalCall(ctx context.Context, gateway, operation, status string, start time.Time) {
	ExternalCallDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("gateway", gateway),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordSignatureCheck counts a signature verification by result ("valid", "invalid").
func RecordSignatureCheck(ctx context.Context, gateway, kind, result string) {
	SignatureVerifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("gateway", gateway),
			attribute.String("kind", kind),
			attribute.String("result", result),
		),
	)
}
