package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/storefront/internal/domain/payment"
)

var webhookSecret = []byte("whsec_test")

func signPayload(secret []byte, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookClient(at time.Time) *Client {
	c := NewClient("sk_test", webhookSecret)
	c.now = func() time.Time { return at }
	return c
}

const completedPayload = `{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_live_1",
			"payment_intent": "pi_55",
			"metadata": {"order_id": "42", "user_id": "7"}
		}
	}
}`

func TestVerifyWebhook(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := webhookClient(now)
	payload := []byte(completedPayload)

	event, err := c.VerifyWebhook(payload, signPayload(webhookSecret, now.Unix(), payload))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, payment.EventCheckoutCompleted, event.Type)
	assert.Equal(t, int64(42), event.OrderID)
	assert.Equal(t, "pi_55", event.PaymentRef)
}

func TestVerifyWebhookWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := webhookClient(now)
	payload := []byte(completedPayload)

	_, err := c.VerifyWebhook(payload, signPayload([]byte("whsec_other"), now.Unix(), payload))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestVerifyWebhookTamperedPayload(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := webhookClient(now)

	header := signPayload(webhookSecret, now.Unix(), []byte(completedPayload))
	tampered := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"metadata":{"order_id":"999"}}}}`)

	_, err := c.VerifyWebhook(tampered, header)
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestVerifyWebhookStaleTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := webhookClient(now)
	payload := []byte(completedPayload)

	stale := now.Add(-6 * time.Minute).Unix()
	_, err := c.VerifyWebhook(payload, signPayload(webhookSecret, stale, payload))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	// Inside the tolerance the same signature verifies.
	recent := now.Add(-4 * time.Minute).Unix()
	_, err = c.VerifyWebhook(payload, signPayload(webhookSecret, recent, payload))
	assert.NoError(t, err)
}

func TestVerifyWebhookMalformedHeader(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := webhookClient(now)
	payload := []byte(completedPayload)

	for _, header := range []string{
		"",
		"t=abc,v1=00",
		"v1=00",
		fmt.Sprintf("t=%d", now.Unix()),
		fmt.Sprintf("t=%d,v1=nothex", now.Unix()),
	} {
		_, err := c.VerifyWebhook(payload, header)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature, "header %q", header)
	}
}

func TestVerifyWebhookRotatedSecrets(t *testing.T) {
	// Two v1 entries during secret rotation: one valid match is enough.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := webhookClient(now)
	payload := []byte(completedPayload)

	valid := signPayload(webhookSecret, now.Unix(), payload)
	header := fmt.Sprintf("%s,v1=%s", valid, hex.EncodeToString(make([]byte, 32)))

	_, err := c.VerifyWebhook(payload, header)
	assert.NoError(t, err)
}

func TestParseEventPaymentIntent(t *testing.T) {
	// payment_intent events have no payment_intent field; the object id is
	// the reference.
	payload := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_77", "metadata": {}}}
	}`)

	event, err := parseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, payment.EventPaymentSucceeded, event.Type)
	assert.Zero(t, event.OrderID)
	assert.Equal(t, "pi_77", event.PaymentRef)
}

func TestParseEventNullPaymentIntent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_3",
		"type": "checkout.session.async_payment_failed",
		"data": {"object": {"id": "cs_9", "payment_intent": null, "metadata": {"order_id": "3"}}}
	}`)

	event, err := parseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(3), event.OrderID)
	assert.Equal(t, "cs_9", event.PaymentRef, "falls back to the object id")
}

func TestParseEventInvalid(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":     `{{`,
		"missing type": `{"id": "evt_4", "data": {"object": {}}}`,
		"bad order id": `{"id": "evt_5", "type": "payment_intent.succeeded", "data": {"object": {"metadata": {"order_id": "NaN"}}}}`,
	} {
		_, err := parseEvent([]byte(payload))
		assert.ErrorIs(t, err, payment.ErrInvalidPayload, name)
	}
}
