package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const intaSendSandboxBaseURL = "https://sandbox.intasend.com"

type IntaSendConfig struct {
	BaseURL          string
	PublishableKey   string
	SecretKey        string
	WebhookChallenge string // echoed back by IntaSend on every webhook
	Timeout          time.Duration
}

// IntaSendClient is the alternate checkout provider. It collects M-Pesa payments through
// IntaSend's STK push collection API and reports them via invoice webhooks.
type IntaSendClient struct {
	cfg        IntaSendConfig
	HTTPClient *http.Client
}

func NewIntaSendClient(cfg IntaSendConfig) *IntaSendClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = intaSendSandboxBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &IntaSendClient{
		cfg:        cfg,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *IntaSendClient) Name() string { return "intasend" }

type intaSendSTKReq struct {
	PublicKey   string `json:"public_key,omitempty"`
	Amount      string `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	APIRef      string `json:"api_ref"`
	Narrative   string `json:"narrative,omitempty"`
	Currency    string `json:"currency"`
}

type intaSendInvoice struct {
	InvoiceID string `json:"invoice_id"`
	State     string `json:"state"`
	APIRef    string `json:"api_ref"`
}

type intaSendSTKResp struct {
	ID      string          `json:"id"`
	Invoice intaSendInvoice `json:"invoice"`
	Detail  string          `json:"detail"`
}

func (c *IntaSendClient) StartCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutSession, error) {
	body := intaSendSTKReq{
		PublicKey:   c.cfg.PublishableKey,
		Amount:      formatAmount(in.Amount),
		PhoneNumber: in.ContactHandle,
		APIRef:      in.Reference,
		Narrative:   in.Description,
		Currency:    "KES",
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: intasend: %v", ErrGatewayUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/payment/mpesa-stk-push/", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: intasend: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: intasend: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var out intaSendSTKResp
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: intasend: status %d %s", ErrGatewayUnavailable, resp.StatusCode, out.Detail)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: intasend: %v", ErrGatewayUnavailable, decodeErr)
	}
	if out.Invoice.InvoiceID == "" {
		return nil, fmt.Errorf("%w: intasend: empty invoice id", ErrGatewayUnavailable)
	}

	return &CheckoutSession{
		CorrelationToken:  out.Invoice.InvoiceID,
		MerchantRequestID: out.ID,
		CustomerMessage:   "Check your phone and enter your M-Pesa PIN to complete the payment",
	}, nil
}

type intaSendWebhook struct {
	InvoiceID      string `json:"invoice_id"`
	State          string `json:"state"`
	Value          any    `json:"value"`
	APIRef         string `json:"api_ref"`
	MpesaReference string `json:"mpesa_reference"`
	FailedReason   string `json:"failed_reason"`
	FailedCode     string `json:"failed_code"`
	Challenge      string `json:"challenge"`
}

// ParseCallback reads an IntaSend invoice webhook after checking its challenge
func (c *IntaSendClient) ParseCallback(body []byte) (*CallbackNotification, error) {
	var wh intaSendWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if c.cfg.WebhookChallenge != "" &&
		subtle.ConstantTimeCompare([]byte(wh.Challenge), []byte(c.cfg.WebhookChallenge)) != 1 {
		return nil, ErrCallbackVerification
	}
	if wh.InvoiceID == "" {
		return nil, fmt.Errorf("%w: missing invoice_id", ErrMalformedCallback)
	}

	n := &CallbackNotification{
		CorrelationToken: wh.InvoiceID,
		ResultCode:       wh.State,
		ResultDesc:       wh.FailedReason,
	}
	switch strings.ToUpper(wh.State) {
	case "COMPLETE":
		n.Outcome = CallbackOutcomeSuccess
		n.ExternalReceiptID = wh.MpesaReference
		n.Amount = parseAmount(wh.Value)
	case "FAILED":
		n.Outcome = CallbackOutcomeFailure
		if n.ResultDesc == "" {
			n.ResultDesc = "payment failed"
		}
		if wh.FailedCode != "" {
			n.ResultCode = wh.FailedCode
		}
	default:
		n.Outcome = CallbackOutcomePending
	}
	return n, nil
}

func parseAmount(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
	}
	return nil
}
