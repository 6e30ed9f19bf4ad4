// Package paystack adapts the Paystack transaction API to the payment
// gateway contract: initialize a hosted checkout, verify a charge by
// reference, and authenticate inbound webhook payloads.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/courseloop/coursepay/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

// kobo is the subunit factor: Paystack amounts are integer kobo, 100 per
// naira.
var kobo = decimal.NewFromInt(100)

// APIError is a definitive rejection from the gateway (4xx or status=false
// in the response envelope), as opposed to a transport fault.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.StatusCode)
}

// Config holds the gateway connection settings.
type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// Client talks to the Paystack REST API. Outbound calls run through a
// circuit breaker so a struggling gateway sheds load fast instead of tying
// up request handlers, and through an otel-instrumented transport.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Client. Timeout bounds every call; a timed-out verify
// reports an error, never a guessed outcome.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name: "paystack",
		}),
	}
}

type initializeRequest struct {
	Email       string           `json:"email"`
	Amount      int64            `json:"amount"`
	Reference   string           `json:"reference"`
	Metadata    payment.Metadata `json:"metadata"`
	CallbackURL string           `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
	} `json:"data"`
}

// InitializeTransaction opens a hosted checkout for the given amount (in
// currency units; converted to kobo on the wire) and returns the
// authorization URL the client must be redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string, meta payment.Metadata) (string, error) {
	reqBody := initializeRequest{
		Email:       email,
		Amount:      amount.Mul(kobo).IntPart(),
		Reference:   reference,
		Metadata:    meta,
		CallbackURL: c.cfg.CallbackURL,
	}

	raw, err := c.post(ctx, "/transaction/initialize", reqBody)
	if err != nil {
		return "", err
	}

	var resp initializeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errors.Wrap(err, "decode initialize response")
	}
	if !resp.Status {
		return "", &APIError{StatusCode: http.StatusOK, Message: resp.Message}
	}
	return resp.Data.AuthorizationURL, nil
}

// VerifyTransaction asks Paystack for the authoritative state of a charge.
// A false result is definitive ("not successful") and is never retried here.
// A returned error means the outcome is unknown and the caller must leave
// the payment pending.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (bool, error) {
	raw, status, err := c.get(ctx, "/transaction/verify/"+reference)
	if err != nil {
		return false, err
	}
	// Unknown or failed references come back as 4xx with an envelope; both
	// are a definitive "not successful".
	if status >= 400 && status < 500 {
		return false, nil
	}

	var resp verifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, errors.Wrap(err, "decode verify response")
	}
	return resp.Status && resp.Data.Status == "success", nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "paystack request")
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		if resp.StatusCode >= 500 {
			return nil, errors.Errorf("paystack unavailable: http %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(raw)}
		}
		return raw, nil
	})
}

// get returns the body and HTTP status. 4xx responses are returned to the
// caller rather than turned into errors: for verify they carry a definitive
// answer. 5xx and transport faults are errors and count against the breaker.
func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	var status int
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "paystack request")
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		if resp.StatusCode >= 500 {
			return nil, errors.Errorf("paystack unavailable: http %d", resp.StatusCode)
		}
		status = resp.StatusCode
		return raw, nil
	})
	return raw, status, err
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")
}

func apiMessage(raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Message == "" {
		return "request rejected"
	}
	return envelope.Message
}
