package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the body of POST /api/razorpay-order.
// Amount is already in minor units (paise).
type OrderRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	PlanName string           `json:"planName"`
}

// PaymentConfirmation is the body of POST /api/razorpay-verify
type PaymentConfirmation struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`

	UserName   string          `json:"userName,omitempty"`
	UserEmail  string          `json:"userEmail,omitempty"`
	UserMobile string          `json:"userMobile,omitempty"`
	PlanName   string          `json:"planName,omitempty"`
	Amount     json.RawMessage `json:"amount,omitempty"`
}

// PayRequest is the body of POST /api/pay. Amount is in major units (rupees).
type PayRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	UserID   string           `json:"userId"`
	Mobile   string           `json:"mobile"`
	PlanName string           `json:"planName"`
}

// ChecksumPayload is the PhonePe pay request. Field order is part of the
// signed byte string and must not change.
type ChecksumPayload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	MobileNumber          string            `json:"mobileNumber,omitempty"`
	PaymentInstrument     PaymentInstrument `json:"paymentInstrument"`
}

// PaymentInstrument selects how the buyer pays; PAY_PAGE is the hosted page.
type PaymentInstrument struct {
	Type string `json:"type"`
}

// SignedEnvelope is a base64 payload together with its X-VERIFY checksum
type SignedEnvelope struct {
	Base64Payload string
	Checksum      string
}

// PayEnvelope is the JSON body sent to the PhonePe pay endpoint
type PayEnvelope struct {
	Request string `json:"request"`
}

// CallbackRequest is the body PhonePe posts to the callback URL
type CallbackRequest struct {
	Response string `json:"response"`
}

// CallbackResponse is the decoded content of CallbackRequest.Response
type CallbackResponse struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    CallbackTransaction `json:"data"`
}

// CallbackTransaction is the transaction a callback reports on
type CallbackTransaction struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
}

// ProviderResponse is a provider body relayed verbatim to the caller
type ProviderResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// PaymentEvent is published after a verified payment or callback
type PaymentEvent struct {
	ID            string    `json:"id"`
	Gateway       string    `json:"gateway"`
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	PaymentID     string    `json:"paymentId,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	State         string    `json:"state,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Key returns the partition key for the event.
func (e PaymentEvent) Key() string {
	if e.TransactionID != "" {
		return e.TransactionID
	}
	return e.OrderID
}

const (
	EventPaymentVerified = "payment.verified"
	EventPaymentCallback = "payment.callback"
)
