package cart

import (
	"errors"
	"fmt"
)

// ErrEmptyCart is returned when checkout is attempted with no items.
var ErrEmptyCart = errors.New("cart is empty")

// Item is one cart entry keyed by product id. Price is in minor currency
// units (JPY, so 1 unit = 1 yen).
type Item struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Image    string `json:"image"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Snapshot is an immutable capture of a session cart. Once stored on an
// order it is the only source of truth for fulfillment; the live session
// cart is never consulted again.
type Snapshot map[string]Item

// Capture copies the session cart into a snapshot. Later mutation of the
// input map does not affect the returned snapshot.
func Capture(raw Snapshot) (Snapshot, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyCart
	}
	snap := make(Snapshot, len(raw))
	for productID, it := range raw {
		snap[productID] = it
	}
	return snap, nil
}

// Total returns the frozen order total in minor currency units.
func (s Snapshot) Total() int64 {
	var total int64
	for _, it := range s {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

// Validate checks every entry carries a usable quantity and price.
// Fulfillment treats a violation as a data-integrity fault.
func (s Snapshot) Validate() error {
	if len(s) == 0 {
		return ErrEmptyCart
	}
	for productID, it := range s {
		if it.Quantity <= 0 {
			return fmt.Errorf("product %s: invalid quantity %d", productID, it.Quantity)
		}
		if it.Price <= 0 {
			return fmt.Errorf("product %s: invalid price %d", productID, it.Price)
		}
	}
	return nil
}
