// Package services provides external service integrations and technical concerns like payment gateways and tokens
package services

import (
	"context"
	"errors"
)

// ErrGatewayUnavailable wraps every failure to start a checkout session
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrCallbackVerification marks a callback that failed provider-specific verification
var ErrCallbackVerification = errors.New("callback verification failed")

// ErrMalformedCallback marks a callback body the provider parser could not read
var ErrMalformedCallback = errors.New("malformed callback body")

type CheckoutRequest struct {
	Amount        uint64 // whole shillings
	ContactHandle string // 2547XXXXXXXX
	CallbackURL   string
	Reference     string // shown to the customer on the prompt
	Description   string
}

type CheckoutSession struct {
	CorrelationToken  string
	MerchantRequestID string
	CustomerMessage   string
}

// CallbackOutcome is the provider-neutral result carried by a callback
type CallbackOutcome string

const (
	CallbackOutcomeSuccess CallbackOutcome = "success"
	CallbackOutcomeFailure CallbackOutcome = "failure"
	CallbackOutcomePending CallbackOutcome = "pending" // interim notification, nothing to apply
)

// CallbackNotification is a provider callback reduced to what the activation engine needs
type CallbackNotification struct {
	CorrelationToken  string
	Outcome           CallbackOutcome
	ResultCode        string
	ResultDesc        string
	ExternalReceiptID string
	Amount            *float64
}

// PaymentGateway starts checkout sessions on a mobile-money provider and reads its callbacks.
// Configuration is injected at construction.
type PaymentGateway interface {
	Name() string
	StartCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutSession, error)
	ParseCallback(body []byte) (*CallbackNotification, error)
}
