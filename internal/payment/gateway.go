package payment

import (
	"context"
	"errors"

	"github.com/hideaki1979/ud-la12react-ec/internal/order"
)

// ErrGatewayUnavailable is returned when the hosted checkout provider is
// unreachable or erroring. Callers surface it as a retryable failure and
// mutate no local state.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type Status string

const (
	StatusPaid              Status = "paid"
	StatusUnpaid            Status = "unpaid"
	StatusNoPaymentRequired Status = "no_payment_required"
)

// Session is a hosted checkout session the customer is redirected to.
type Session struct {
	ID  string
	URL string
}

// SessionStatus reports whether a session was paid. It authorizes only the
// yes/no payment outcome; the goods being paid for come from the order's
// embedded snapshot, never from the provider response.
type SessionStatus struct {
	Payment         Status
	ConfirmationRef string
}

func (s SessionStatus) Paid() bool {
	return s.Payment == StatusPaid
}

type Gateway interface {
	CreateSession(ctx context.Context, o *order.Order, customerEmail string) (Session, error)
	RetrieveStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}
