package order

import (
	"time"

	"github.com/hideaki1979/ud-la12react-ec/internal/cart"
)

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodHostedCheckout PaymentMethod = "hosted_checkout"
)

type Order struct {
	ID              string        `json:"orderId"`
	UserID          string        `json:"userId"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	TotalPrice      int64         `json:"totalPrice"`
	Status          Status        `json:"paymentStatus"`
	SessionRef      string        `json:"paymentSessionRef,omitempty"`
	ConfirmationRef string        `json:"paymentConfirmationRef,omitempty"`
	// Snapshot is the cart captured at checkout initiation. Fulfillment
	// builds line items from it, never from the live session cart.
	Snapshot  cart.Snapshot `json:"cartSnapshot"`
	Items     []LineItem    `json:"items,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// LineItem is created exactly once, at the pending -> completed transition,
// and never updated afterwards.
type LineItem struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}
