package fulfillment

import (
	"context"

	"github.com/hideaki1979/ud-la12react-ec/internal/order"
)

// Notifier sends post-fulfillment notifications. Implementations are
// fire-and-forget from the pipeline's perspective: errors are logged by the
// caller and never affect order durability.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
	SendOperatorAlert(ctx context.Context, o *order.Order) error
}
