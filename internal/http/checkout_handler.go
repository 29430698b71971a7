package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/hideaki1979/ud-la12react-ec/internal/cart"
	"github.com/hideaki1979/ud-la12react-ec/internal/fulfillment"
	"github.com/hideaki1979/ud-la12react-ec/internal/order"
	"github.com/hideaki1979/ud-la12react-ec/internal/payment"
	"github.com/hideaki1979/ud-la12react-ec/internal/user"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"
)

// Fulfiller is the slice of the fulfillment service the handlers need.
type Fulfiller interface {
	Fulfill(ctx context.Context, orderID, sessionID string) (fulfillment.Result, error)
}

// CheckoutHandler owns the synchronous checkout endpoints: starting a hosted
// payment session, placing a cash order, and the browser return leg.
type CheckoutHandler struct {
	orders  order.Repository
	carts   cart.Store
	gateway payment.Gateway
	users   user.Directory
	fulfill Fulfiller
	logger  *log.Logger
}

func NewCheckoutHandler(orders order.Repository, carts cart.Store, gateway payment.Gateway, users user.Directory, fulfill Fulfiller, logger *log.Logger) *CheckoutHandler {
	return &CheckoutHandler{orders: orders, carts: carts, gateway: gateway, users: users, fulfill: fulfill, logger: logger}
}

type sessionResponse struct {
	OrderID     string `json:"orderId"`
	RedirectURL string `json:"redirectUrl"`
}

// CreateSession freezes the session cart onto a new pending order and opens
// a hosted payment session for it. The order is created before the provider
// call so the session metadata can carry the order id back on the webhook.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	cartSession := r.Header.Get(HeaderSessionID)
	if cartSession == "" {
		writeError(w, http.StatusBadRequest, "missing cart session")
		return
	}

	u, err := h.users.Lookup(r.Context(), userID)
	if err != nil {
		h.logger.Printf("checkout: lookup user %s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "user service unavailable")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}

	snap, err := h.captureCart(r.Context(), w, cartSession)
	if snap == nil || err != nil {
		return
	}

	o := &order.Order{
		UserID:        userID,
		PaymentMethod: order.PaymentMethodHostedCheckout,
		TotalPrice:    snap.Total(),
		Snapshot:      snap,
	}
	if err := h.orders.CreatePending(r.Context(), o); err != nil {
		h.logger.Printf("checkout: create pending order: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	sess, err := h.gateway.CreateSession(r.Context(), o, u.Email)
	if err != nil {
		// The pending order stays behind; the customer can retry checkout
		// and nothing gets fulfilled without a verified payment.
		h.logger.Printf("checkout: create payment session order=%s: %v", o.ID, err)
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	if err := h.orders.AttachSessionRef(r.Context(), o.ID, sess.ID); err != nil {
		h.logger.Printf("checkout: attach session ref order=%s: %v", o.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to record payment session")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{OrderID: o.ID, RedirectURL: sess.URL})
}

type cashOrderResponse struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// PlaceCashOrder runs the no-gateway path: freeze the cart, create the
// order, fulfill immediately.
func (h *CheckoutHandler) PlaceCashOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	cartSession := r.Header.Get(HeaderSessionID)
	if cartSession == "" {
		writeError(w, http.StatusBadRequest, "missing cart session")
		return
	}

	snap, err := h.captureCart(r.Context(), w, cartSession)
	if snap == nil || err != nil {
		return
	}

	o := &order.Order{
		UserID:        userID,
		PaymentMethod: order.PaymentMethodCashOnDelivery,
		TotalPrice:    snap.Total(),
		Snapshot:      snap,
	}
	if err := h.orders.CreatePending(r.Context(), o); err != nil {
		h.logger.Printf("checkout: create cash order: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	res, err := h.fulfill.Fulfill(r.Context(), o.ID, "")
	if err != nil || !res.Success {
		h.logger.Printf("checkout: fulfill cash order %s: %v", o.ID, err)
		writeError(w, http.StatusInternalServerError, "order processing failed")
		return
	}

	h.clearCart(r.Context(), cartSession)
	writeJSON(w, http.StatusCreated, cashOrderResponse{OrderID: o.ID, Message: res.Message})
}

type returnResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// Return handles the customer's redirect back from the hosted payment page.
// The session id from the query string is trusted only as a lookup key; the
// fulfillment pipeline re-verifies payment with the provider itself.
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}

	o, err := h.orders.GetBySessionRef(r.Context(), sessionID)
	if err != nil {
		h.logger.Printf("checkout return: lookup session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if o == nil {
		// Forged or stale session id; nothing to reconcile.
		h.logger.Printf("checkout return: no order for session %s", sessionID)
		writeError(w, http.StatusNotFound, "unknown checkout session")
		return
	}

	res, err := h.fulfill.Fulfill(r.Context(), o.ID, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			writeError(w, http.StatusBadGateway, "payment provider unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "order processing failed")
		return
	}

	if !res.Success {
		// Payment not completed: the order stays pending and the cart stays
		// intact so the customer can try again.
		writeJSON(w, http.StatusOK, returnResponse{Status: "pending", OrderID: o.ID, Message: res.Message})
		return
	}

	if cartSession := r.Header.Get(HeaderSessionID); cartSession != "" {
		h.clearCart(r.Context(), cartSession)
	}
	writeJSON(w, http.StatusOK, returnResponse{Status: "success", OrderID: o.ID, Message: res.Message})
}

// captureCart loads and freezes the session cart, writing the error response
// itself. A nil snapshot means the response is already written.
func (h *CheckoutHandler) captureCart(ctx context.Context, w http.ResponseWriter, cartSession string) (cart.Snapshot, error) {
	raw, err := h.carts.Get(ctx, cartSession)
	if err != nil {
		h.logger.Printf("checkout: load cart %s: %v", cartSession, err)
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return nil, err
	}

	snap, err := cart.Capture(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return nil, err
	}
	return snap, nil
}

func (h *CheckoutHandler) clearCart(ctx context.Context, cartSession string) {
	if err := h.carts.Clear(ctx, cartSession); err != nil {
		h.logger.Printf("checkout: clear cart %s: %v", cartSession, err)
	}
}
