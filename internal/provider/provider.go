package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTimeout reports that the settlement provider did not answer within the
// configured deadline. The caller cannot know whether the operation landed.
var ErrTimeout = errors.New("provider timeout")

// Error is a definitive rejection from the provider.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	OrderName  string `json:"orderName"`
	Amount     int64  `json:"amount"`
}

type ConfirmResult struct {
	Method     string
	ReceiptURL string
}

type PayoutRequest struct {
	RefID         string `json:"refId"`
	Amount        int64  `json:"amount"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
}

type PayoutResult struct {
	PayoutID string
}

// Client talks to the external settlement/payout API. Every call carries a
// bounded deadline; the services treat the client as a black box.
type Client struct {
	http      *http.Client
	baseURL   string
	basicAuth string
	timeout   time.Duration
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		basicAuth: "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
		timeout:   timeout,
	}
}

func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	var body struct {
		Status  string `json:"status"`
		Method  string `json:"method"`
		Receipt struct {
			URL string `json:"url"`
		} `json:"receipt"`
	}
	if err := c.post(ctx, "/v1/payments/confirm", req, &body); err != nil {
		return ConfirmResult{}, err
	}
	if body.Status != "DONE" {
		return ConfirmResult{}, &Error{Code: body.Status, Message: "payment not approved"}
	}
	return ConfirmResult{Method: body.Method, ReceiptURL: body.Receipt.URL}, nil
}

func (c *Client) Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	var body struct {
		PayoutID string `json:"payoutId"`
	}
	if err := c.post(ctx, "/v1/payouts", req, &body); err != nil {
		return PayoutResult{}, err
	}
	if body.PayoutID == "" {
		return PayoutResult{}, &Error{Message: "payout id missing in response"}
	}
	return PayoutResult{PayoutID: body.PayoutID}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.basicAuth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &Error{StatusCode: resp.StatusCode, Code: failure.Code, Message: failure.Message}
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
