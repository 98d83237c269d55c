package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anchorchat/anchor/utils"
)

const (
	mpesaSandboxBaseURL      = "https://sandbox.safaricom.co.ke"
	mpesaTransactionPayBill  = "CustomerPayBillOnline"
	mpesaMaxAccountReference = 12
	mpesaMaxTransactionDesc  = 13
)

// Daraja result codes seen on STK callbacks
const (
	MpesaResultSuccess         = "0"
	MpesaResultInsufficient    = "1"
	MpesaResultCancelledByUser = "1032"
	MpesaResultTimeout         = "1037"
	MpesaResultWrongPIN        = "2001"
)

type MpesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	Passkey         string
	CallbackURL     string
	TransactionType string
	Timeout         time.Duration
}

// MpesaClient talks to the Safaricom Daraja API (OAuth + Lipa Na M-Pesa Online STK push)
type MpesaClient struct {
	cfg        MpesaConfig
	HTTPClient *http.Client
	now        func() time.Time
}

func NewMpesaClient(cfg MpesaConfig) *MpesaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = mpesaSandboxBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TransactionType == "" {
		cfg.TransactionType = mpesaTransactionPayBill
	}
	return &MpesaClient{
		cfg:        cfg,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		now:        utils.NairobiNow,
	}
}

func (c *MpesaClient) Name() string { return "mpesa" }

type mpesaTokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type mpesaSTKPushReq struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            uint64 `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type mpesaSTKPushResp struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// StartCheckout sends an STK push prompt to the customer's phone
func (c *MpesaClient) StartCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutSession, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: mpesa oauth: %v", ErrGatewayUnavailable, err)
	}

	callbackURL := in.CallbackURL
	if callbackURL == "" {
		callbackURL = c.cfg.CallbackURL
	}

	ts := utils.DarajaTimestamp(c.now())
	body := mpesaSTKPushReq{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   c.cfg.TransactionType,
		Amount:            in.Amount,
		PartyA:            in.ContactHandle,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       in.ContactHandle,
		CallBackURL:       callbackURL,
		AccountReference:  truncate(in.Reference, mpesaMaxAccountReference),
		TransactionDesc:   truncate(in.Description, mpesaMaxTransactionDesc),
	}

	var out mpesaSTKPushResp
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body, &out); err != nil {
		return nil, fmt.Errorf("%w: mpesa stk push: %v", ErrGatewayUnavailable, err)
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: mpesa stk push rejected: code=%s %s%s",
			ErrGatewayUnavailable, out.ResponseCode, out.ResponseDescription, out.ErrorMessage)
	}

	return &CheckoutSession{
		CorrelationToken:  out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

// password is base64(shortcode + passkey + timestamp) as Daraja requires
func (c *MpesaClient) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))
}

func (c *MpesaClient) accessToken(ctx context.Context) (string, error) {
	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var out mpesaTokenResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}
	return out.AccessToken, nil
}

func (c *MpesaClient) postJSON(ctx context.Context, path, bearer string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Daraja returns a JSON body with errorMessage on 4xx; decode it for the error text
	if resp.StatusCode != http.StatusOK {
		var failure mpesaSTKPushResp
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return fmt.Errorf("status %d for %s: %s", resp.StatusCode, path, failure.ErrorMessage)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type mpesaCallbackEnvelope struct {
	Body struct {
		StkCallback *mpesaSTKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type mpesaSTKCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        json.Number `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []mpesaMetadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type mpesaMetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ParseCallback reads a Daraja STK callback. ResultCode 0 is success; every other code is a failure.
func (c *MpesaClient) ParseCallback(body []byte) (*CallbackNotification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env mpesaCallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing stkCallback.CheckoutRequestID", ErrMalformedCallback)
	}

	n := &CallbackNotification{
		CorrelationToken: cb.CheckoutRequestID,
		ResultCode:       cb.ResultCode.String(),
		ResultDesc:       cb.ResultDesc,
	}

	if n.ResultCode != MpesaResultSuccess {
		n.Outcome = CallbackOutcomeFailure
		if n.ResultDesc == "" {
			n.ResultDesc = mpesaResultDescription(n.ResultCode)
		}
		return n, nil
	}

	n.Outcome = CallbackOutcomeSuccess
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				n.ExternalReceiptID = fmt.Sprint(item.Value)
			case "Amount":
				if num, ok := item.Value.(json.Number); ok {
					if f, err := num.Float64(); err == nil {
						n.Amount = &f
					}
				}
			}
		}
	}
	return n, nil
}

func mpesaResultDescription(code string) string {
	switch code {
	case MpesaResultInsufficient:
		return "insufficient funds"
	case MpesaResultCancelledByUser:
		return "request cancelled by user"
	case MpesaResultTimeout:
		return "customer could not be reached"
	case MpesaResultWrongPIN:
		return "wrong PIN entered"
	default:
		return "payment failed with result code " + code
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// formatAmount renders whole shillings the way form-style provider APIs expect
func formatAmount(amount uint64) string {
	return strconv.FormatUint(amount, 10)
}
