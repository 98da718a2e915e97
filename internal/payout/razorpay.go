package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const idempotencyHeader = "X-Payout-Idempotency-Key"

type RazorpayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	AccountNumber string
	Timeout       time.Duration
}

// RazorpayClient implements Processor against the RazorpayX payouts API.
// Amounts are whole rupees and are sent as paise.
type RazorpayClient struct {
	cfg        RazorpayConfig
	httpClient *http.Client
}

var _ Processor = (*RazorpayClient)(nil)

func NewRazorpayClient(cfg RazorpayConfig) *RazorpayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RazorpayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type fundAccountRequest struct {
	ContactID   string `json:"contact_id"`
	AccountType string `json:"account_type"`
	VPA         struct {
		Address string `json:"address"`
	} `json:"vpa"`
}

type payoutRequest struct {
	AccountNumber     string `json:"account_number"`
	FundAccountID     string `json:"fund_account_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Mode              string `json:"mode"`
	Purpose           string `json:"purpose"`
	QueueIfLowBalance bool   `json:"queue_if_low_balance"`
	ReferenceID       string `json:"reference_id,omitempty"`
}

func (c *RazorpayClient) CreateFundAccount(ctx context.Context, contactID, vpaAddress string) (string, error) {
	req := fundAccountRequest{ContactID: contactID, AccountType: "vpa"}
	req.VPA.Address = vpaAddress

	body, err := c.post(ctx, "create fund account", "/fund_accounts", req, "")
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		// A fund account may exist on the processor without our record of
		// it, but nothing was paid out, so this is still definitive.
		return "", &Error{Op: "create fund account", Definitive: true, Message: "response has no id"}
	}
	return id, nil
}

func (c *RazorpayClient) CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	if req.IdempotencyKey == "" {
		return nil, &Error{Op: "create payout", Definitive: true, Message: "idempotency key is required"}
	}
	payload := payoutRequest{
		AccountNumber:     c.cfg.AccountNumber,
		FundAccountID:     req.FundAccountID,
		Amount:            req.Amount * 100,
		Currency:          "INR",
		Mode:              "UPI",
		Purpose:           "payout",
		QueueIfLowBalance: false,
		ReferenceID:       req.ReferenceID,
	}

	body, err := c.post(ctx, "create payout", "/payouts", payload, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(body)
	p := &Payout{
		ID:            doc.Get("id").String(),
		Status:        doc.Get("status").String(),
		ReferenceID:   doc.Get("reference_id").String(),
		FailureReason: failureReason(doc),
	}
	if p.ID == "" || p.Status == "" {
		// The call went through, so the payout may exist. Leave it to the
		// webhook or the reconcile sweep.
		return nil, &Error{Op: "create payout", Message: "response has no id or status"}
	}

	log.WithFields(log.Fields{
		"payout_id": p.ID,
		"status":    p.Status,
		"reference": p.ReferenceID,
	}).Info("Payout created")
	return p, nil
}

func (c *RazorpayClient) post(ctx context.Context, op, path string, payload any, idempotencyKey string) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: op, Definitive: true, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, &Error{Op: op, Definitive: true, Err: err}
	}
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The request may have reached the processor.
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: apiErrorMessage(body)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Definitive: true, Message: apiErrorMessage(body)}
	default:
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: apiErrorMessage(body)}
	}
}

func apiErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.description").String(); msg != "" {
		return msg
	}
	if len(body) == 0 {
		return "empty response"
	}
	return string(body)
}

func failureReason(doc gjson.Result) string {
	if r := doc.Get("failure_reason").String(); r != "" {
		return r
	}
	return doc.Get("status_details.description").String()
}

// Validate checks that the client has what it needs to call the API.
func (c *RazorpayClient) Validate() error {
	var missing []string
	if c.cfg.BaseURL == "" {
		missing = append(missing, "RAZORPAY_API_URL")
	}
	if c.cfg.KeyID == "" {
		missing = append(missing, "RAZORPAY_API_KEY")
	}
	if c.cfg.KeySecret == "" {
		missing = append(missing, "RAZORPAY_API_SECRET")
	}
	if c.cfg.AccountNumber == "" {
		missing = append(missing, "RAZORPAY_ACCOUNT_NUMBER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("payout: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
