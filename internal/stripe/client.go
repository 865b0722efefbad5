// Package stripe implements the payment gateway port against the Stripe
// Checkout API: outbound session creation and inbound signed webhooks.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/averlane/storefront/internal/domain/payment"
)

const defaultBaseURL = "https://api.stripe.com"

var _ payment.Gateway = (*Client)(nil)

// Client talks to the Stripe REST API with a secret key and verifies
// webhook callbacks with a shared webhook secret.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret []byte
	currency      string

	// now is swappable for signature-tolerance tests.
	now func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL points the client at a different API host (tests, mocks).
func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

// WithCurrency overrides the default "usd" currency code.
func WithCurrency(code string) Option {
	return func(cl *Client) { cl.currency = code }
}

// NewClient creates a Stripe gateway client.
func NewClient(secretKey string, webhookSecret []byte, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		baseURL:       defaultBaseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		currency:      "usd",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sessionResponse is the subset of the Checkout Session object we consume.
type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateCheckoutSession creates a hosted checkout session with one line item
// per order item. Gateway failures are wrapped in payment.UpstreamError.
func (c *Client) CreateCheckoutSession(ctx context.Context, params payment.SessionParams) (*payment.Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("client_reference_id", strconv.FormatInt(params.OrderID, 10))
	form.Set("metadata[order_id]", strconv.FormatInt(params.OrderID, 10))
	form.Set("metadata[user_id]", strconv.FormatInt(params.UserID, 10))
	form.Set("payment_method_types[0]", "card")

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", c.currency)
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", item.Description)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &payment.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &payment.UpstreamError{Err: errors.Wrap(err, "read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, &payment.UpstreamError{
				Err: errors.Errorf("status %d: %s", resp.StatusCode, apiErr.Error.Message),
			}
		}
		return nil, &payment.UpstreamError{Err: errors.Errorf("status %d", resp.StatusCode)}
	}

	var sess sessionResponse
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, &payment.UpstreamError{Err: errors.Wrap(err, "decode response")}
	}

	ref := sess.PaymentIntent
	if ref == "" {
		ref = sess.ID
	}
	return &payment.Session{
		ID:         sess.ID,
		URL:        sess.URL,
		PaymentRef: ref,
	}, nil
}
