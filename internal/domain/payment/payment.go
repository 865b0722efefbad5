package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// Sentinel errors for payment operations.
var (
	// ErrAlreadyPaid is returned when a checkout session is requested for an
	// order whose payment has already succeeded.
	ErrAlreadyPaid = errors.New("order is already paid")
	// ErrInvalidSignature is returned when a webhook signature does not
	// verify against the shared secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload is returned when a webhook body cannot be parsed.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// UpstreamError wraps a failure of the external gateway call. It is surfaced
// to the caller, never retried internally.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "payment gateway: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// LineItem is one billable line of a checkout session. UnitAmount is in
// minor currency units (cents).
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int
}

// SessionParams is the input for creating an external checkout session.
type SessionParams struct {
	OrderID    int64
	UserID     int64
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
}

// Session is a created external checkout session.
type Session struct {
	ID string
	// URL is the hosted page the customer is redirected to.
	URL string
	// PaymentRef identifies the payment on the gateway side; falls back to
	// the session id when the gateway has not assigned one yet.
	PaymentRef string
}

// EventType classifies verified webhook events.
type EventType string

const (
	EventCheckoutCompleted  EventType = "checkout.session.completed"
	EventPaymentSucceeded   EventType = "payment_intent.succeeded"
	EventPaymentFailed      EventType = "payment_intent.payment_failed"
	EventAsyncPaymentFailed EventType = "checkout.session.async_payment_failed"
)

// Event is a verified, parsed webhook callback. OrderID is zero when the
// gateway payload carried no order metadata.
type Event struct {
	ID         string
	Type       EventType
	OrderID    int64
	PaymentRef string
}

// Gateway is the outbound port to the external payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	// VerifyWebhook authenticates raw payload bytes against the signature
	// header and parses the event. Unrecognized event types are returned
	// with their raw type so the caller can acknowledge them.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}
