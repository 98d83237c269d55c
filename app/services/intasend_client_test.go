package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntaSendClient_StartCheckout(t *testing.T) {
	var captured intaSendSTKReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payment/mpesa-stk-push/", r.URL.Path)
		assert.Equal(t, "Bearer ISSecretKey_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "req-1",
			"invoice": map[string]string{"invoice_id": "NR5XKGY", "state": "PENDING", "api_ref": "anchor-1"},
		})
	}))
	defer srv.Close()

	client := NewIntaSendClient(IntaSendConfig{BaseURL: srv.URL, SecretKey: "ISSecretKey_test", PublishableKey: "ISPubKey_test"})
	session, err := client.StartCheckout(context.Background(), CheckoutRequest{
		Amount: 50, ContactHandle: "254712345678", Reference: "anchor-1", Description: "Anchor activation",
	})
	require.NoError(t, err)
	assert.Equal(t, "NR5XKGY", session.CorrelationToken)
	assert.Equal(t, "50", captured.Amount)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "KES", captured.Currency)
}

func TestIntaSendClient_StartCheckoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token"}`))
	}))
	defer srv.Close()

	client := NewIntaSendClient(IntaSendConfig{BaseURL: srv.URL})
	_, err := client.StartCheckout(context.Background(), CheckoutRequest{Amount: 50, ContactHandle: "254712345678"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestIntaSendClient_ParseCallback(t *testing.T) {
	client := NewIntaSendClient(IntaSendConfig{WebhookChallenge: "anchor-challenge"})

	tests := []struct {
		name        string
		body        string
		wantErr     error
		wantOutcome CallbackOutcome
		wantReceipt string
		wantDesc    string
	}{
		{
			name:        "complete",
			body:        `{"invoice_id":"INV1","state":"COMPLETE","value":"300.00","mpesa_reference":"QKL7RT61SV","challenge":"anchor-challenge"}`,
			wantOutcome: CallbackOutcomeSuccess,
			wantReceipt: "QKL7RT61SV",
		},
		{
			name:        "failed",
			body:        `{"invoice_id":"INV1","state":"FAILED","failed_reason":"Request cancelled by user","failed_code":"1032","challenge":"anchor-challenge"}`,
			wantOutcome: CallbackOutcomeFailure,
			wantDesc:    "Request cancelled by user",
		},
		{
			name:        "processing is interim",
			body:        `{"invoice_id":"INV1","state":"PROCESSING","challenge":"anchor-challenge"}`,
			wantOutcome: CallbackOutcomePending,
		},
		{
			name:    "wrong challenge",
			body:    `{"invoice_id":"INV1","state":"COMPLETE","challenge":"guess"}`,
			wantErr: ErrCallbackVerification,
		},
		{
			name:    "missing invoice",
			body:    `{"state":"COMPLETE","challenge":"anchor-challenge"}`,
			wantErr: ErrMalformedCallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := client.ParseCallback([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "INV1", n.CorrelationToken)
			assert.Equal(t, tt.wantOutcome, n.Outcome)
			assert.Equal(t, tt.wantReceipt, n.ExternalReceiptID)
			assert.Equal(t, tt.wantDesc, n.ResultDesc)
		})
	}
}

func TestStubGateway(t *testing.T) {
	g := NewStubGateway()

	session, err := g.StartCheckout(context.Background(), CheckoutRequest{Amount: 50, ContactHandle: "254712345678"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.CorrelationToken)
	assert.Len(t, g.Requests(), 1)

	g.Fail = assert.AnError
	_, err = g.StartCheckout(context.Background(), CheckoutRequest{Amount: 50})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	n, err := g.ParseCallback([]byte(`{"correlationToken":"t1","outcome":"failure","failureReason":"insufficient funds"}`))
	require.NoError(t, err)
	assert.Equal(t, CallbackOutcomeFailure, n.Outcome)
	assert.Equal(t, "insufficient funds", n.ResultDesc)

	_, err = g.ParseCallback([]byte(`{"correlationToken":"t1","outcome":"maybe"}`))
	assert.ErrorIs(t, err, ErrMalformedCallback)
}
