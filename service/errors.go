package service

import (
	"errors"
	"fmt"
)

// ErrSignatureMismatch is returned when a payment signature does not match.
var ErrSignatureMismatch = errors.New("invalid signature")

// ValidationError reports missing or malformed caller input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError reports a missing server-side credential
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// UpstreamError reports a rejected or failed provider call. Message is what
// the caller sees: Razorpay's own description, or a generic message for
// PhonePe. Err keeps the provider detail for logs.
type UpstreamError struct {
	Gateway string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Gateway, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Gateway, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func invalid(msg string) error { return &ValidationError{Message: msg} }

func misconfigured(msg string) error { return &ConfigurationError{Message: msg} }
