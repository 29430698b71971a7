package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

var (
	// ErrInvalidSignature means the event's authenticity check failed; it is
	// rejected at the boundary and never reaches fulfillment.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload means the payload could not be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrUnhandledEvent marks an authentic event of a type this pipeline
	// does not process.
	ErrUnhandledEvent = errors.New("unhandled webhook event")
)

// CheckoutSessionCompleted is the one event variant the pipeline handles,
// decoded from the untyped provider payload at the boundary.
type CheckoutSessionCompleted struct {
	EventID         string
	SessionID       string
	OrderID         string
	PaymentStatus   Status
	ConfirmationRef string
}

// Verifier authenticates and decodes provider webhook payloads.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// VerifyAndDecode checks the signature header against the endpoint secret
// before any processing, then decodes the payload into a known variant.
func (v *Verifier) VerifyAndDecode(payload []byte, sigHeader string) (*CheckoutSessionCompleted, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode session object: %v", ErrMalformedPayload, err)
		}

		out := &CheckoutSessionCompleted{
			EventID:       event.ID,
			SessionID:     sess.ID,
			OrderID:       sess.Metadata["order_id"],
			PaymentStatus: Status(sess.PaymentStatus),
		}
		if sess.PaymentIntent != nil {
			out.ConfirmationRef = sess.PaymentIntent.ID
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
	}
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
