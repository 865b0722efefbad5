package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/averlane/storefront/internal/domain/order"
	"github.com/averlane/storefront/internal/domain/product"
)

var centsPerUnit = decimal.NewFromInt(100)

// CheckoutResult is returned to the client after a session is created.
type CheckoutResult struct {
	OrderID     int64
	SessionID   string
	CheckoutURL string
}

// Service orchestrates checkout-session creation and webhook-driven payment
// state transitions.
type Service struct {
	orders   *order.Service
	products product.Repository
	gateway  Gateway

	successURL string
	cancelURL  string
}

// NewService creates a payment Service. successURL and cancelURL are where
// the gateway redirects the customer after the hosted checkout.
func NewService(orders *order.Service, products product.Repository, gateway Gateway, successURL, cancelURL string) *Service {
	return &Service{
		orders:     orders,
		products:   products,
		gateway:    gateway,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckout builds one gateway line item per order item (prices
// converted to cents) and requests an external checkout session. The session
// reference is stored on the order with payment status still pending.
func (s *Service) CreateCheckout(ctx context.Context, o *order.Order) (*CheckoutResult, error) {
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrAlreadyPaid
	}

	_, items, err := s.orders.GetWithItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	lineItems := make([]LineItem, 0, len(items))
	for _, it := range items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				// Product deleted since the order was created; the snapshot
				// price still bills correctly under a generic name.
				p = &product.Product{Name: "Item"}
			} else {
				return nil, errors.Wrap(err, "get product")
			}
		}
		lineItems = append(lineItems, LineItem{
			Name:        p.Name,
			Description: p.Description,
			UnitAmount:  it.UnitPrice.Mul(centsPerUnit).IntPart(),
			Quantity:    it.Quantity,
		})
	}
	if len(lineItems) == 0 {
		return nil, order.ErrEmptyOrder
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, SessionParams{
		OrderID:    o.ID,
		UserID:     o.UserID,
		LineItems:  lineItems,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.orders.SetPaymentStatus(ctx, o.ID, order.PaymentPending, sess.PaymentRef); err != nil {
		return nil, errors.Wrap(err, "store payment ref")
	}

	return &CheckoutResult{
		OrderID:     o.ID,
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
	}, nil
}

// HandleWebhook verifies and applies a gateway callback. Replays are safe:
// the downstream transition is idempotent. Unrecognized event types and
// events that resolve to no order are acknowledged without side effects so
// the gateway does not retry them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		return err
	}
	lg := zctx.From(ctx).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	var status order.PaymentStatus
	switch event.Type {
	case EventCheckoutCompleted, EventPaymentSucceeded:
		status = order.PaymentPaid
	case EventPaymentFailed, EventAsyncPaymentFailed:
		status = order.PaymentFailed
	default:
		lg.Debug("Ignoring unrecognized webhook event")
		return nil
	}

	o, err := s.resolveOrder(ctx, event)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			lg.Warn("Webhook event matches no order, acknowledging")
			return nil
		}
		return errors.Wrap(err, "resolve order")
	}

	if _, err := s.orders.SetPaymentStatus(ctx, o.ID, status, event.PaymentRef); err != nil {
		return errors.Wrap(err, "set payment status")
	}
	lg.Info("Applied payment transition",
		zap.Int64("order_id", o.ID),
		zap.String("payment_status", string(status)),
	)
	return nil
}

// resolveOrder finds the event's order. Embedded order-id metadata takes
// precedence over the stored payment reference.
func (s *Service) resolveOrder(ctx context.Context, event *Event) (*order.Order, error) {
	if event.OrderID != 0 {
		return s.orders.Get(ctx, event.OrderID)
	}
	if event.PaymentRef != "" {
		return s.orders.FindByPaymentRef(ctx, event.PaymentRef)
	}
	return nil, order.ErrNotFound
}
