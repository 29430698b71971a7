package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hideaki1979/ud-la12react-ec/internal/order"
)

// StripeGateway adapts Stripe Checkout as the hosted payment provider.
// Provider calls carry a bounded timeout and run behind a circuit breaker;
// there is no automatic retry here, the two reconciliation entry points are
// the system's retry mechanism.
type StripeGateway struct {
	api        *client.API
	breaker    *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	successURL string
	cancelURL  string
}

func NewStripeGateway(secretKey, successURL, cancelURL string, timeout time.Duration) *StripeGateway {
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	})
	backends := &stripe.Backends{API: backend, Connect: backend, Uploads: backend}

	return &StripeGateway{
		api: client.New(secretKey, backends),
		breaker: gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
			Name:    "stripe-checkout",
			Timeout: 30 * time.Second,
		}),
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateSession opens a hosted checkout session for the order. The line
// items sent to the provider are display-only; the authoritative set of
// goods stays on the order's embedded snapshot.
func (g *StripeGateway) CreateSession(ctx context.Context, o *order.Order, customerEmail string) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(g.cancelURL),
		CustomerEmail:      stripe.String(customerEmail),
	}
	params.Context = ctx
	params.AddMetadata("order_id", o.ID)

	for _, it := range o.Snapshot {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(it.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyJPY)),
				UnitAmount: stripe.Int64(it.Price),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
		})
	}

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: create session: %v", ErrGatewayUnavailable, err)
	}

	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// RetrieveStatus fetches the payment state of a session. It is used only to
// verify before fulfilling, never to drive state transitions directly.
func (g *StripeGateway) RetrieveStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.Get(sessionID, params)
	})
	if err != nil {
		return SessionStatus{}, fmt.Errorf("%w: retrieve session %s: %v", ErrGatewayUnavailable, sessionID, err)
	}

	st := SessionStatus{Payment: Status(sess.PaymentStatus)}
	if sess.PaymentIntent != nil {
		st.ConfirmationRef = sess.PaymentIntent.ID
	}
	return st, nil
}
