package service

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"checkout-gateway/checksum"
	"checkout-gateway/config"
	"checkout-gateway/events"
	"checkout-gateway/logging"
	"checkout-gateway/models"
	"checkout-gateway/monitoring"
)

const (
	orderCurrency = "INR"
	orderPurpose  = "PlanPurchase"
)

var planNameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// OrderCreator creates hosted orders. *resources.Order from razorpay-go
// satisfies it.
type OrderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// OrderGateway integrates Razorpay: hosted order creation and verification
// of the signature Razorpay Checkout hands back to the browser.
type OrderGateway struct {
	tracer    trace.Tracer
	orders    OrderCreator
	keySecret string
	ids       IDGenerator
	publisher events.Publisher
}

// NewOrderGateway creates the Razorpay gateway on top of orders.
func NewOrderGateway(tracer trace.Tracer, orders OrderCreator, cfg config.RazorpayConfig, ids IDGenerator, publisher events.Publisher) *OrderGateway {
	return &OrderGateway{
		tracer:    tracer,
		orders:    orders,
		keySecret: cfg.KeySecret,
		ids:       ids,
		publisher: publisher,
	}
}

// Name returns the gateway identifier
func (g *OrderGateway) Name() string { return config.GatewayRazorpay }

// SanitizePlanName drops every character outside [A-Za-z0-9_].
func SanitizePlanName(name string) string {
	return planNameDisallowed.ReplaceAllString(name, "")
}

// CreateOrder creates a Razorpay order for an amount already expressed in paise.
func (g *OrderGateway) CreateOrder(ctx context.Context, req *models.OrderRequest) (map[string]interface{}, error) {
	ctx, span := g.tracer.Start(ctx, "razorpay.create_order")
	defer span.End()
	logger := logging.WithTraceContext(span)

	amount, err := orderAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.PlanName == "" {
		return nil, invalid("Plan name is required")
	}

	receipt := g.ids.NewID("receipt")
	body := map[string]interface{}{
		"amount":   amount,
		"currency": orderCurrency,
		"receipt":  receipt,
		"notes": map[string]interface{}{
			"purpose": orderPurpose,
		},
		"description": "Plan-" + SanitizePlanName(req.PlanName),
	}
	span.SetAttributes(
		attribute.Int64("order.amount", amount),
		attribute.String("order.receipt", receipt),
	)

	start := time.Now()
	order, err := g.orders.Create(body, nil)
	if err != nil {
		monitoring.RecordExternalCall(ctx, g.Name(), "create_order", "error", start)
		monitoring.RecordGatewayRequest(ctx, g.Name(), "create_order", "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		logger.Error("Error creating Razorpay order", zap.Error(err), zap.String("receipt", receipt))
		return nil, &UpstreamError{Gateway: g.Name(), Message: err.Error(), Err: err}
	}
	monitoring.RecordExternalCall(ctx, g.Name(), "create_order", "success", start)
	monitoring.RecordGatewayRequest(ctx, g.Name(), "create_order", "success")
	monitoring.RecordOrderAmount(ctx, g.Name(), amount)

	orderID, _ := order["id"].(string)
	span.SetAttributes(attribute.String("order.id", orderID))
	logger.Info("Order created",
		zap.String("order_id", orderID),
		zap.Int64("amount", amount),
		zap.String("receipt", receipt),
		zap.Any("order", order),
	)
	return order, nil
}

// VerifyPayment reports whether the client-submitted signature matches
// HMAC-SHA256(keySecret, orderID|paymentID). A mismatch is (false, nil).
func (g *OrderGateway) VerifyPayment(ctx context.Context, req *models.PaymentConfirmation) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "razorpay.verify_payment")
	defer span.End()
	logger := logging.WithTraceContext(span)

	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return false, invalid("Missing Razorpay fields")
	}
	if g.keySecret == "" {
		return false, misconfigured("Server configuration is incomplete")
	}
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("payment.id", req.PaymentID),
	)

	if !checksum.VerifyRazorpay(g.keySecret, req.OrderID, req.PaymentID, req.Signature) {
		monitoring.RecordSignatureCheck(ctx, g.Name(), "payment", "invalid")
		span.SetAttributes(attribute.String("payment.verification", "mismatch"))
		logger.Warn("Signature mismatch",
			zap.String("razorpay_order_id", req.OrderID),
			zap.String("razorpay_payment_id", req.PaymentID),
		)
		return false, nil
	}
	monitoring.RecordSignatureCheck(ctx, g.Name(), "payment", "valid")
	span.SetAttributes(attribute.String("payment.verification", "verified"))

	logger.Info("Payment verified",
		zap.String("user_name", req.UserName),
		zap.String("user_email", req.UserEmail),
		zap.String("user_mobile", req.UserMobile),
		zap.String("plan_name", req.PlanName),
		zap.ByteString("amount", req.Amount),
		zap.String("razorpay_order_id", req.OrderID),
		zap.String("razorpay_payment_id", req.PaymentID),
	)

	event := models.PaymentEvent{
		ID:         uuid.NewString(),
		Gateway:    g.Name(),
		Type:       models.EventPaymentVerified,
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		OccurredAt: time.Now().UTC(),
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish payment verification", zap.Error(err), zap.String("order_id", req.OrderID))
	}
	return true, nil
}
