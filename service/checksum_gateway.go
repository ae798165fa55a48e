package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
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
	PayEndpoint    = "/pg/v1/pay"
	StatusEndpoint = "/pg/v1/status"

	paymentInstrumentPayPage = "PAY_PAGE"
	maxProviderBody          = 1 << 20
)

// transactionIDPattern keeps status lookups inside the signed path.
var transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Client-facing messages; provider detail is only logged.
const (
	msgConfigIncomplete = "Server configuration is incomplete"
	msgPaymentFailed    = "Payment initiation failed"
	msgStatusFailed     = "Payment status check failed"
)

// ChecksumGateway integrates PhonePe: salted SHA-256 request signing,
// payment initiation, status checks and callback verification.
type ChecksumGateway struct {
	tracer    trace.Tracer
	cfg       config.PhonePeConfig
	client    *http.Client
	ids       IDGenerator
	publisher events.Publisher
}

// NewHTTPClient returns an instrumented client for provider calls
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// NewChecksumGateway creates the PhonePe gateway. A nil client is replaced
// by NewHTTPClient(cfg.Timeout).
func NewChecksumGateway(tracer trace.Tracer, cfg config.PhonePeConfig, client *http.Client, ids IDGenerator, publisher events.Publisher) *ChecksumGateway {
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	return &ChecksumGateway{
		tracer:    tracer,
		cfg:       cfg,
		client:    client,
		ids:       ids,
		publisher: publisher,
	}
}

// Name returns the gateway identifier
func (g *ChecksumGateway) Name() string { return config.GatewayPhonePe }

// BuildChecksum signs payload for endpointPath with the configured salt.
func (g *ChecksumGateway) BuildChecksum(payload models.ChecksumPayload, endpointPath string) (models.SignedEnvelope, error) {
	return checksum.Build(payload, endpointPath, g.cfg.SaltKey, g.cfg.SaltIndex)
}

// NewPayload validates req and builds the pay request for it.
func (g *ChecksumGateway) NewPayload(req *models.PayRequest) (models.ChecksumPayload, error) {
	amount, err := minorUnits(req.Amount)
	if err != nil {
		return models.ChecksumPayload{}, err
	}

	userID := req.UserID
	if userID == "" {
		if !g.cfg.RelaxedInput {
			return models.ChecksumPayload{}, invalid("User ID is required")
		}
		userID = g.cfg.DefaultUserID
	}
	if req.Mobile == "" && !g.cfg.RelaxedInput {
		return models.ChecksumPayload{}, invalid("Mobile number is required")
	}

	return models.ChecksumPayload{
		MerchantID:            g.cfg.MerchantID,
		MerchantTransactionID: g.ids.NewID("txn"),
		MerchantUserID:        userID,
		Amount:                amount,
		RedirectURL:           g.cfg.RedirectURL,
		RedirectMode:          g.cfg.RedirectMode,
		CallbackURL:           g.cfg.CallbackURL,
		MobileNumber:          req.Mobile,
		PaymentInstrument:     models.PaymentInstrument{Type: paymentInstrumentPayPage},
	}, nil
}

// InitiatePayment signs and forwards a pay request, relaying the provider
// response on success.
func (g *ChecksumGateway) InitiatePayment(ctx context.Context, req *models.PayRequest) (*models.ProviderResponse, error) {
	ctx, span := g.tracer.Start(ctx, "phonepe.initiate_payment")
	defer span.End()
	logger := logging.WithTraceContext(span)

	if !g.cfg.Complete() {
		logger.Error("PhonePe merchant credentials are not configured")
		return nil, misconfigured(msgConfigIncomplete)
	}

	payload, err := g.NewPayload(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("payment.transaction_id", payload.MerchantTransactionID),
		attribute.String("payment.user_id", payload.MerchantUserID),
		attribute.Int64("payment.amount", payload.Amount),
		attribute.String("payment.plan", req.PlanName),
	)

	envelope, err := g.BuildChecksum(payload, PayEndpoint)
	if err != nil {
		return nil, fmt.Errorf("build checksum: %w", err)
	}
	body, err := json.Marshal(models.PayEnvelope{Request: envelope.Base64Payload})
	if err != nil {
		return nil, fmt.Errorf("encode pay envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+PayEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create pay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", envelope.Checksum)
	httpReq.Header.Set("X-MERCHANT-ID", g.cfg.MerchantID)

	resp, err := g.call(ctx, span, httpReq, "initiate_payment", msgPaymentFailed)
	if err != nil {
		logger.Error("PhonePe payment initiation failed",
			zap.Error(err),
			zap.String("transaction_id", payload.MerchantTransactionID),
			zap.String("user_id", payload.MerchantUserID),
			zap.Int64("amount", payload.Amount),
		)
		return nil, err
	}
	monitoring.RecordOrderAmount(ctx, g.Name(), payload.Amount)

	logger.Info("PhonePe payment initiated",
		zap.String("transaction_id", payload.MerchantTransactionID),
		zap.String("user_id", payload.MerchantUserID),
		zap.String("plan_name", req.PlanName),
		zap.Int64("amount", payload.Amount),
	)
	return resp, nil
}

// CheckStatus fetches the provider-side state of a merchant transaction.
func (g *ChecksumGateway) CheckStatus(ctx context.Context, merchantTransactionID string) (*models.ProviderResponse, error) {
	ctx, span := g.tracer.Start(ctx, "phonepe.check_status")
	defer span.End()
	logger := logging.WithTraceContext(span)

	if !g.cfg.Complete() {
		logger.Error("PhonePe merchant credentials are not configured")
		return nil, misconfigured(msgConfigIncomplete)
	}
	if merchantTransactionID == "" {
		return nil, invalid("Transaction ID is required")
	}
	if !transactionIDPattern.MatchString(merchantTransactionID) {
		return nil, invalid("Invalid transaction ID")
	}
	span.SetAttributes(attribute.String("payment.transaction_id", merchantTransactionID))

	path := fmt.Sprintf("%s/%s/%s", StatusEndpoint, g.cfg.MerchantID, merchantTransactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", checksum.Sign(path, g.cfg.SaltKey, g.cfg.SaltIndex))
	httpReq.Header.Set("X-MERCHANT-ID", g.cfg.MerchantID)

	resp, err := g.call(ctx, span, httpReq, "check_status", msgStatusFailed)
	if err != nil {
		logger.Error("PhonePe status check failed", zap.Error(err), zap.String("transaction_id", merchantTransactionID))
		return nil, err
	}
	return resp, nil
}

// ReceiveCallback verifies and processes a provider notification. It never
// fails: the provider only needs an acknowledgement, so forged or malformed
// callbacks are logged and dropped. The result reports whether the
// callback was verified and accepted.
func (g *ChecksumGateway) ReceiveCallback(ctx context.Context, body []byte, xVerify string) bool {
	ctx, span := g.tracer.Start(ctx, "phonepe.receive_callback")
	defer span.End()
	logger := logging.WithTraceContext(span)

	reject := func(reason string, fields ...zap.Field) bool {
		monitoring.RecordSignatureCheck(ctx, g.Name(), "callback", "invalid")
		monitoring.RecordGatewayRequest(ctx, g.Name(), "callback", "rejected")
		span.SetAttributes(attribute.String("callback.result", reason))
		logger.Warn("PhonePe callback rejected", append(fields, zap.String("reason", reason))...)
		return false
	}

	if !g.cfg.Complete() {
		return reject("configuration_incomplete")
	}

	var cb models.CallbackRequest
	if err := json.Unmarshal(body, &cb); err != nil || cb.Response == "" {
		return reject("malformed_body", zap.Int("body_bytes", len(body)))
	}
	if !checksum.VerifyCallback(cb.Response, xVerify, g.cfg.SaltKey, g.cfg.SaltIndex) {
		return reject("checksum_mismatch")
	}

	raw, err := base64.StdEncoding.DecodeString(cb.Response)
	if err != nil {
		return reject("bad_base64", zap.Error(err))
	}
	var decoded models.CallbackResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return reject("bad_response_json", zap.Error(err))
	}
	if decoded.Data.MerchantID != "" && decoded.Data.MerchantID != g.cfg.MerchantID {
		return reject("merchant_mismatch", zap.String("merchant_id", decoded.Data.MerchantID))
	}

	monitoring.RecordSignatureCheck(ctx, g.Name(), "callback", "valid")
	monitoring.RecordGatewayRequest(ctx, g.Name(), "callback", "accepted")
	span.SetAttributes(
		attribute.String("callback.result", "accepted"),
		attribute.String("payment.transaction_id", decoded.Data.MerchantTransactionID),
		attribute.String("payment.state", decoded.Data.State),
	)
	logger.Info("PhonePe callback verified",
		zap.String("code", decoded.Code),
		zap.String("transaction_id", decoded.Data.MerchantTransactionID),
		zap.String("provider_transaction_id", decoded.Data.TransactionID),
		zap.String("state", decoded.Data.State),
		zap.Int64("amount", decoded.Data.Amount),
	)

	event := models.PaymentEvent{
		ID:            uuid.NewString(),
		Gateway:       g.Name(),
		Type:          models.EventPaymentCallback,
		TransactionID: decoded.Data.MerchantTransactionID,
		PaymentID:     decoded.Data.TransactionID,
		Amount:        decoded.Data.Amount,
		State:         decoded.Data.State,
		OccurredAt:    time.Now().UTC(),
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish callback event", zap.Error(err))
	}
	return true
}

// call performs a provider request and returns the body on a 2xx status.
func (g *ChecksumGateway) call(ctx context.Context, span trace.Span, req *http.Request, operation, clientMsg string) (*models.ProviderResponse, error) {
	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		monitoring.RecordExternalCall(ctx, g.Name(), operation, "error", start)
		monitoring.RecordGatewayRequest(ctx, g.Name(), operation, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return nil, &UpstreamError{Gateway: g.Name(), Message: clientMsg, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		monitoring.RecordExternalCall(ctx, g.Name(), operation, "error", start)
		monitoring.RecordGatewayRequest(ctx, g.Name(), operation, "failed")
		return nil, &UpstreamError{Gateway: g.Name(), Message: clientMsg, Err: fmt.Errorf("read response: %w", err)}
	}

	span.SetAttributes(attribute.Int("external.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		monitoring.RecordExternalCall(ctx, g.Name(), operation, "failed", start)
		monitoring.RecordGatewayRequest(ctx, g.Name(), operation, "failed")
		span.SetStatus(codes.Error, "provider rejected request")
		return nil, &UpstreamError{
			Gateway: g.Name(),
			Message: clientMsg,
			Err:     fmt.Errorf("provider returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body)),
		}
	}

	monitoring.RecordExternalCall(ctx, g.Name(), operation, "success", start)
	monitoring.RecordGatewayRequest(ctx, g.Name(), operation, "success")

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return &models.ProviderResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}
