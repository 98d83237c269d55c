package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMpesaServer(t *testing.T, stkStatus int, stkBody any) (*httptest.Server, *mpesaSTKPushReq) {
	t.Helper()
	captured := &mpesaSTKPushReq{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		w.WriteHeader(stkStatus)
		_ = json.NewEncoder(w).Encode(stkBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestMpesaClient_StartCheckout(t *testing.T) {
	srv, captured := newTestMpesaServer(t, http.StatusOK, map[string]string{
		"MerchantRequestID":   "29115-34620561-1",
		"CheckoutRequestID":   "ws_CO_191220191020363925",
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})

	client := NewMpesaClient(MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://anchor.example/api/v1/payments/callback",
		Timeout:        2 * time.Second,
	})
	client.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	session, err := client.StartCheckout(context.Background(), CheckoutRequest{
		Amount:        300,
		ContactHandle: "254712345678",
		Reference:     "Plan: premium",
		Description:   "Anchor premium subscription",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", session.CorrelationToken)
	assert.Equal(t, "29115-34620561-1", session.MerchantRequestID)

	assert.Equal(t, "20260102060405", captured.Timestamp)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379passkey20260102060405")), captured.Password)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
	assert.Equal(t, uint64(300), captured.Amount)
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, "174379", captured.PartyB)
	assert.Equal(t, "https://anchor.example/api/v1/payments/callback", captured.CallBackURL)
	assert.Equal(t, "Plan: premiu", captured.AccountReference)
	assert.Equal(t, "Anchor premiu", captured.TransactionDesc)
}

func TestMpesaClient_StartCheckoutFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		secret string
	}{
		{"oauth rejected", http.StatusOK, map[string]string{}, "wrong"},
		{"stk http error", http.StatusBadRequest, map[string]string{"errorMessage": "Invalid PhoneNumber"}, "secret"},
		{"stk non zero response code", http.StatusOK, map[string]string{"ResponseCode": "1", "ResponseDescription": "rejected"}, "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestMpesaServer(t, tt.status, tt.body)
			client := NewMpesaClient(MpesaConfig{
				BaseURL:        srv.URL,
				ConsumerKey:    "key",
				ConsumerSecret: tt.secret,
				ShortCode:      "174379",
				Passkey:        "passkey",
			})

			session, err := client.StartCheckout(context.Background(), CheckoutRequest{Amount: 50, ContactHandle: "254712345678"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGatewayUnavailable)
			assert.Nil(t, session)
		})
	}
}

func TestMpesaClient_StartCheckoutTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := NewMpesaClient(MpesaConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.StartCheckout(context.Background(), CheckoutRequest{Amount: 50, ContactHandle: "254712345678"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestMpesaClient_ParseCallback(t *testing.T) {
	client := NewMpesaClient(MpesaConfig{})

	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantOutcome CallbackOutcome
		wantToken   string
		wantReceipt string
		wantDesc    string
	}{
		{
			name: "success with metadata",
			body: `{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"ws_CO_1","ResultCode":0,
				"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[
				{"Name":"Amount","Value":300},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
				{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`,
			wantOutcome: CallbackOutcomeSuccess,
			wantToken:   "ws_CO_1",
			wantReceipt: "NLJ7RT61SV",
			wantDesc:    "The service request is processed successfully.",
		},
		{
			name:        "cancelled by user",
			body:        `{"Body":{"stkCallback":{"MerchantRequestID":"m2","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`,
			wantOutcome: CallbackOutcomeFailure,
			wantToken:   "ws_CO_2",
			wantDesc:    "Request cancelled by user",
		},
		{
			name:        "string result code without description",
			body:        `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_3","ResultCode":"1"}}}`,
			wantOutcome: CallbackOutcomeFailure,
			wantToken:   "ws_CO_3",
			wantDesc:    "insufficient funds",
		},
		{name: "missing checkout id", body: `{"Body":{"stkCallback":{"ResultCode":0}}}`, wantErr: true},
		{name: "not json", body: `<xml/>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := client.ParseCallback([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCallback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, n.Outcome)
			assert.Equal(t, tt.wantToken, n.CorrelationToken)
			assert.Equal(t, tt.wantReceipt, n.ExternalReceiptID)
			assert.Equal(t, tt.wantDesc, n.ResultDesc)
		})
	}
}

func TestMpesaClient_ParseCallbackAmount(t *testing.T) {
	client := NewMpesaClient(MpesaConfig{})
	n, err := client.ParseCallback([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_9","ResultCode":0,
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":50.00},{"Name":"MpesaReceiptNumber","Value":"QWE123"}]}}}}`))
	require.NoError(t, err)
	require.NotNil(t, n.Amount)
	assert.InDelta(t, 50.0, *n.Amount, 0.001)
}
