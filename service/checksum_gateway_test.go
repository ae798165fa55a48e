package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout-gateway/checksum"
	"checkout-gateway/config"
	"checkout-gateway/events"
	"checkout-gateway/models"
)

type capturedRequest struct {
	method  string
	path    string
	headers http.Header
	body    []byte
}

type providerStub struct {
	server   *httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	last     capturedRequest
	status   int
	response string
}

func newProviderStub(t *testing.T, status int, response string) *providerStub {
	t.Helper()
	stub := &providerStub{status: status, response: response}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.last = capturedRequest{method: r.Method, path: r.URL.Path, headers: r.Header.Clone(), body: body}
		stub.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stub.status)
		_, _ = w.Write([]byte(stub.response))
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *providerStub) request() capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func phonePeConfig(baseURL string) config.PhonePeConfig {
	return config.PhonePeConfig{
		MerchantID:    "MERCHANTUAT",
		SaltKey:       "salt-key",
		SaltIndex:     "1",
		BaseURL:       baseURL,
		RedirectURL:   "https://shop.test/return",
		RedirectMode:  "REDIRECT",
		CallbackURL:   "https://api.shop.test/api/callback",
		DefaultUserID: "guest",
		Timeout:       2 * time.Second,
	}
}

func newChecksumGateway(cfg config.PhonePeConfig, pub *recordingPublisher) *ChecksumGateway {
	return NewChecksumGateway(testTracer(), cfg, &http.Client{Timeout: cfg.Timeout}, fixedIDs{}, pub)
}

func decodePayload(t *testing.T, body []byte) (string, models.ChecksumPayload) {
	t.Helper()
	var env models.PayEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	raw, err := base64.StdEncoding.DecodeString(env.Request)
	require.NoError(t, err)
	var payload models.ChecksumPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	return env.Request, payload
}

func TestInitiatePayment(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{"success":true,"code":"PAYMENT_INITIATED","data":{"instrumentResponse":{"redirectInfo":{"url":"https://pay.test/x"}}}}`)
	g := newChecksumGateway(phonePeConfig(stub.server.URL), &recordingPublisher{})

	resp, err := g.InitiatePayment(context.Background(), &models.PayRequest{
		Amount:   amountPtr("100"),
		UserID:   "user-7",
		Mobile:   "9999999999",
		PlanName: "pro",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, stub.response, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)

	require.EqualValues(t, 1, stub.calls.Load())
	assert.Equal(t, http.MethodPost, stub.request().method)
	assert.Equal(t, PayEndpoint, stub.request().path)
	assert.Equal(t, "application/json", stub.request().headers.Get("Content-Type"))
	assert.Equal(t, "MERCHANTUAT", stub.request().headers.Get("X-MERCHANT-ID"))

	encoded, payload := decodePayload(t, stub.request().body)
	assert.Equal(t, int64(10000), payload.Amount)
	assert.Equal(t, "txn_1700000000000", payload.MerchantTransactionID)
	assert.Equal(t, "user-7", payload.MerchantUserID)
	assert.Equal(t, "9999999999", payload.MobileNumber)
	assert.Equal(t, "PAY_PAGE", payload.PaymentInstrument.Type)
	assert.Equal(t, "https://api.shop.test/api/callback", payload.CallbackURL)

	expected := checksum.Sign(encoded+PayEndpoint, "salt-key", "1")
	assert.Equal(t, expected, stub.request().headers.Get("X-VERIFY"))
	assert.True(t, strings.HasSuffix(stub.request().headers.Get("X-VERIFY"), "###1"))
}

func TestInitiatePaymentIncompleteConfiguration(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{}`)
	cfg := phonePeConfig(stub.server.URL)
	cfg.SaltIndex = ""
	g := newChecksumGateway(cfg, &recordingPublisher{})

	// Configuration is checked before input.
	_, err := g.InitiatePayment(context.Background(), &models.PayRequest{})

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Server configuration is incomplete", cerr.Message)
	assert.Zero(t, stub.calls.Load())
}

func TestInitiatePaymentValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.PayRequest
		msg  string
	}{
		{"missing amount", models.PayRequest{UserID: "u", Mobile: "1"}, "Amount is required"},
		{"negative amount", models.PayRequest{Amount: amountPtr("-1"), UserID: "u", Mobile: "1"}, "Amount must be positive"},
		{"sub-paisa amount", models.PayRequest{Amount: amountPtr("1.005"), UserID: "u", Mobile: "1"}, "Amount must have at most two decimal places"},
		{"paise above int64", models.PayRequest{Amount: amountPtr("92233720368547758.08"), UserID: "u", Mobile: "1"}, "Amount is too large"},
		{"huge amount", models.PayRequest{Amount: amountPtr("100000000000000000000"), UserID: "u", Mobile: "1"}, "Amount is too large"},
		{"missing user", models.PayRequest{Amount: amountPtr("1"), Mobile: "1"}, "User ID is required"},
		{"missing mobile", models.PayRequest{Amount: amountPtr("1"), UserID: "u"}, "Mobile number is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newProviderStub(t, http.StatusOK, `{}`)
			g := newChecksumGateway(phonePeConfig(stub.server.URL), &recordingPublisher{})

			_, err := g.InitiatePayment(context.Background(), &tt.req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Message)
			assert.Zero(t, stub.calls.Load())
		})
	}
}

func TestInitiatePaymentRelaxedInput(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{"success":true}`)
	cfg := phonePeConfig(stub.server.URL)
	cfg.RelaxedInput = true
	g := newChecksumGateway(cfg, &recordingPublisher{})

	_, err := g.InitiatePayment(context.Background(), &models.PayRequest{Amount: amountPtr("99.5")})
	require.NoError(t, err)

	encoded, payload := decodePayload(t, stub.request().body)
	assert.Equal(t, int64(9950), payload.Amount)
	assert.Equal(t, "guest", payload.MerchantUserID)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "mobileNumber")
}

func TestInitiatePaymentUpstreamFailure(t *testing.T) {
	stub := newProviderStub(t, http.StatusBadRequest, `{"success":false,"code":"KEY_NOT_CONFIGURED","message":"Key not found for the merchant"}`)
	g := newChecksumGateway(phonePeConfig(stub.server.URL), &recordingPublisher{})

	_, err := g.InitiatePayment(context.Background(), &models.PayRequest{Amount: amountPtr("10"), UserID: "u", Mobile: "1"})

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "Payment initiation failed", uerr.Message)
	assert.Contains(t, uerr.Error(), "KEY_NOT_CONFIGURED")
}

func TestInitiatePaymentNetworkFailure(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{}`)
	url := stub.server.URL
	stub.server.Close()
	g := newChecksumGateway(phonePeConfig(url), &recordingPublisher{})

	_, err := g.InitiatePayment(context.Background(), &models.PayRequest{Amount: amountPtr("10"), UserID: "u", Mobile: "1"})

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "Payment initiation failed", uerr.Message)
}

func TestCheckStatus(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{"success":true,"code":"PAYMENT_SUCCESS"}`)
	g := newChecksumGateway(phonePeConfig(stub.server.URL), &recordingPublisher{})

	resp, err := g.CheckStatus(context.Background(), "txn_42")
	require.NoError(t, err)
	assert.Equal(t, stub.response, string(resp.Body))

	path := "/pg/v1/status/MERCHANTUAT/txn_42"
	assert.Equal(t, http.MethodGet, stub.request().method)
	assert.Equal(t, path, stub.request().path)
	assert.Equal(t, checksum.Sign(path, "salt-key", "1"), stub.request().headers.Get("X-VERIFY"))
	assert.Equal(t, "MERCHANTUAT", stub.request().headers.Get("X-MERCHANT-ID"))
}

func TestCheckStatusMissingID(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{}`)
	g := newChecksumGateway(phonePeConfig(stub.server.URL), &recordingPublisher{})

	_, err := g.CheckStatus(context.Background(), "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, stub.calls.Load())
}

func TestCheckStatusRejectsUnsafeID(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, `{}`)
	g := newChecksumGateway(phonePeConfig(stub.server.URL), &recordingPublisher{})

	for _, id := range []string{"txn_1?x=1", "txn_1#frag", "../pay", "txn 1", "txn/1"} {
		_, err := g.CheckStatus(context.Background(), id)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "id %q", id)
		assert.Equal(t, "Invalid transaction ID", verr.Message)
	}
	assert.Zero(t, stub.calls.Load())
}

func signedCallback(t *testing.T, merchantID string) ([]byte, string) {
	t.Helper()
	inner, err := json.Marshal(models.CallbackResponse{
		Success: true,
		Code:    "PAYMENT_SUCCESS",
		Data: models.CallbackTransaction{
			MerchantID:            merchantID,
			MerchantTransactionID: "txn_1",
			TransactionID:         "T2401",
			Amount:                10000,
			State:                 "COMPLETED",
		},
	})
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(inner)
	body, err := json.Marshal(models.CallbackRequest{Response: encoded})
	require.NoError(t, err)
	return body, checksum.Sign(encoded, "salt-key", "1")
}

func TestReceiveCallbackVerified(t *testing.T) {
	pub := &recordingPublisher{}
	g := newChecksumGateway(phonePeConfig("http://unused"), pub)

	body, header := signedCallback(t, "MERCHANTUAT")
	assert.True(t, g.ReceiveCallback(context.Background(), body, header))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPaymentCallback, events[0].Type)
	assert.Equal(t, "txn_1", events[0].TransactionID)
	assert.Equal(t, "T2401", events[0].PaymentID)
	assert.Equal(t, int64(10000), events[0].Amount)
	assert.Equal(t, "COMPLETED", events[0].State)
}

func TestReceiveCallbackDoesNotWaitForBroker(t *testing.T) {
	broker := newStallingPublisher()
	pub := events.NewAsyncPublisher(broker, 4, zap.NewNop())
	g := NewChecksumGateway(testTracer(), phonePeConfig("http://unused"), nil, fixedIDs{}, pub)

	body, header := signedCallback(t, "MERCHANTUAT")
	start := time.Now()
	assert.True(t, g.ReceiveCallback(context.Background(), body, header))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(broker.release)
	require.NoError(t, pub.Close())
	select {
	case e := <-broker.published:
		assert.Equal(t, "txn_1", e.TransactionID)
	default:
		t.Fatal("callback event was not delivered")
	}
}

func TestReceiveCallbackRejected(t *testing.T) {
	body, header := signedCallback(t, "MERCHANTUAT")
	otherMerchant, otherHeader := signedCallback(t, "SOMEONEELSE")

	tests := []struct {
		name   string
		body   []byte
		header string
	}{
		{"empty body", nil, ""},
		{"not json", []byte("hello"), header},
		{"missing header", body, ""},
		{"forged header", body, checksum.Sign("other", "salt-key", "1")},
		{"wrong merchant", otherMerchant, otherHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			g := newChecksumGateway(phonePeConfig("http://unused"), pub)

			assert.False(t, g.ReceiveCallback(context.Background(), tt.body, tt.header))
			assert.Empty(t, pub.Events())
		})
	}
}

func TestTimeIDGeneratorUnique(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewTimeIDGenerator()
	g.now = func() time.Time { return fixed }

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := g.NewID("txn")
		require.True(t, strings.HasPrefix(id, "txn_1700000000000"))
		require.LessOrEqual(t, len(id), 38)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.LessOrEqual(t, len(g.NewID("receipt")), 40)
}
