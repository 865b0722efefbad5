package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/averlane/storefront/internal/domain/payment"
)

// signatureTolerance bounds the age of a signed webhook payload; older
// timestamps are rejected to limit replay of captured requests.
const signatureTolerance = 5 * time.Minute

// VerifyWebhook authenticates a webhook payload against the
// "t=<unix>,v1=<hex>" signature header, where v1 is the HMAC-SHA256 of
// "<t>.<payload>" under the shared webhook secret, then parses the event.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (*payment.Event, error) {
	ts, sigs, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}

	age := c.now().Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, payment.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, c.webhookSecret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, payment.ErrInvalidSignature
	}

	return parseEvent(payload)
}

// parseSignatureHeader splits the header into the timestamp and the list of
// v1 signatures. Multiple v1 entries can be present during secret rotation.
func parseSignatureHeader(header string) (ts int64, sigs [][]byte, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, payment.ErrInvalidSignature
			}
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, payment.ErrInvalidSignature
	}
	return ts, sigs, nil
}

// parseEvent extracts the event id, type, payment reference, and embedded
// order-id metadata from the event envelope without decoding the full object.
func parseEvent(payload []byte) (*payment.Event, error) {
	event := &payment.Event{}
	var objectID string

	d := jx.DecodeBytes(payload)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			event.ID = v
			return nil
		case "type":
			v, err := d.Str()
			if err != nil {
				return err
			}
			event.Type = payment.EventType(v)
			return nil
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "object" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "id":
						v, err := d.Str()
						if err != nil {
							return err
						}
						objectID = v
						return nil
					case "payment_intent":
						if d.Next() == jx.Null {
							return d.Null()
						}
						v, err := d.Str()
						if err != nil {
							return err
						}
						event.PaymentRef = v
						return nil
					case "metadata":
						return d.Obj(func(d *jx.Decoder, key string) error {
							if key != "order_id" {
								return d.Skip()
							}
							v, err := d.Str()
							if err != nil {
								return err
							}
							id, err := strconv.ParseInt(v, 10, 64)
							if err != nil {
								return errors.Wrap(err, "order_id metadata")
							}
							event.OrderID = id
							return nil
						})
					default:
						return d.Skip()
					}
				})
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, payment.ErrInvalidPayload
	}
	if event.Type == "" {
		return nil, payment.ErrInvalidPayload
	}

	// payment_intent events carry the reference as the object id itself.
	if event.PaymentRef == "" {
		event.PaymentRef = objectID
	}
	return event, nil
}
