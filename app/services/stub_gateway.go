package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StubGateway is an in-process gateway for local development and tests.
// It accepts every checkout unless Fail is set and reads a provider-neutral callback body.
type StubGateway struct {
	mu       sync.Mutex
	Fail     error
	requests []CheckoutRequest
}

func NewStubGateway() *StubGateway {
	return &StubGateway{}
}

func (g *StubGateway) Name() string { return "stub" }

func (g *StubGateway) StartCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: stub: %v", ErrGatewayUnavailable, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return nil, fmt.Errorf("%w: stub: %v", ErrGatewayUnavailable, g.Fail)
	}
	g.requests = append(g.requests, in)

	return &CheckoutSession{
		CorrelationToken:  "stub_" + uuid.NewString(),
		MerchantRequestID: uuid.NewString(),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

// Requests returns the checkouts started so far
func (g *StubGateway) Requests() []CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]CheckoutRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// StubCallback is the body the stub gateway's callback endpoint accepts
type StubCallback struct {
	CorrelationToken string   `json:"correlationToken"`
	Outcome          string   `json:"outcome"` // success | failure
	ReceiptID        string   `json:"receiptId,omitempty"`
	FailureReason    string   `json:"failureReason,omitempty"`
	Amount           *float64 `json:"amount,omitempty"`
}

func (g *StubGateway) ParseCallback(body []byte) (*CallbackNotification, error) {
	var cb StubCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if cb.CorrelationToken == "" {
		return nil, fmt.Errorf("%w: missing correlationToken", ErrMalformedCallback)
	}

	n := &CallbackNotification{
		CorrelationToken:  cb.CorrelationToken,
		ResultCode:        cb.Outcome,
		ResultDesc:        cb.FailureReason,
		ExternalReceiptID: cb.ReceiptID,
		Amount:            cb.Amount,
	}
	switch CallbackOutcome(cb.Outcome) {
	case CallbackOutcomeSuccess:
		n.Outcome = CallbackOutcomeSuccess
	case CallbackOutcomeFailure:
		n.Outcome = CallbackOutcomeFailure
	default:
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrMalformedCallback, cb.Outcome)
	}
	return n, nil
}
