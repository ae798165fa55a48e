// Package checksum implements the request signing and response
// verification schemes of the supported payment providers.
//
// PhonePe requests carry an X-VERIFY header of the form
//
//	hex(SHA-256(base64Payload + endpointPath + saltKey)) + "###" + saltIndex
//
// Razorpay payment confirmations are signed with
//
//	hex(HMAC-SHA256(keySecret, orderID + "|" + paymentID))
package checksum

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"checkout-gateway/models"
)

// Separator joins the digest and the salt index in a PhonePe checksum.
const Separator = "###"

// Build encodes payload and signs it for endpointPath.
func Build(payload any, endpointPath, saltKey, saltIndex string) (models.SignedEnvelope, error) {
	raw, err := marshal(payload)
	if err != nil {
		return models.SignedEnvelope{}, fmt.Errorf("encode checksum payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return models.SignedEnvelope{
		Base64Payload: encoded,
		Checksum:      Sign(encoded+endpointPath, saltKey, saltIndex),
	}, nil
}

// Sign returns hex(SHA-256(message + saltKey)) + "###" + saltIndex.
func Sign(message, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(message + saltKey))
	return hex.EncodeToString(sum[:]) + Separator + saltIndex
}

// VerifyCallback checks the X-VERIFY header of a PhonePe callback whose
// body carried base64Response.
func VerifyCallback(base64Response, header, saltKey, saltIndex string) bool {
	if base64Response == "" || header == "" {
		return false
	}
	expected := Sign(base64Response, saltKey, saltIndex)
	return hmac.Equal([]byte(expected), []byte(header))
}

// RazorpaySignature computes the signature Razorpay Checkout returns for a
// successful payment.
func RazorpaySignature(keySecret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRazorpay compares signature against the expected value in constant time.
func VerifyRazorpay(keySecret, orderID, paymentID, signature string) bool {
	expected := RazorpaySignature(keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// marshal encodes v without HTML escaping so that URLs containing '&'
// serialize the same way browsers and Node do.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
