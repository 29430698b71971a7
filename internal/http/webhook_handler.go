package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hideaki1979/ud-la12react-ec/internal/events"
	"github.com/hideaki1979/ud-la12react-ec/internal/payment"
)

const maxWebhookBody = 64 << 10

// TaskEnqueuer is the slice of the publisher the webhook handler needs.
type TaskEnqueuer interface {
	EnqueuePaymentTask(ctx context.Context, task events.PaymentSessionTask) error
}

// WebhookHandler receives provider payment events. It authenticates, hands
// verified events to the background worker, and answers fast so the provider
// never times out waiting on fulfillment.
type WebhookHandler struct {
	verifier *payment.Verifier
	tasks    TaskEnqueuer
	logger   *log.Logger
}

func NewWebhookHandler(verifier *payment.Verifier, tasks TaskEnqueuer, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, tasks: tasks, logger: logger}
}

func (h *WebhookHandler) HandleProviderEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	ev, err := h.verifier.VerifyAndDecode(body, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.Printf("webhook: rejected unauthentic event from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	case errors.Is(err, payment.ErrUnhandledEvent):
		// Authentic but irrelevant; ack so the provider stops sending it.
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	default:
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if ev.OrderID == "" {
		// Cannot be tied to an order, and a retry would carry the same
		// payload. Ack and drop.
		h.logger.Printf("webhook: event %s session %s has no order reference, dropping", ev.EventID, ev.SessionID)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	task := events.PaymentSessionTask{
		EventID:    ev.EventID,
		OrderID:    ev.OrderID,
		SessionID:  ev.SessionID,
		ReceivedAt: time.Now().UTC(),
	}
	if err := h.tasks.EnqueuePaymentTask(r.Context(), task); err != nil {
		// Non-2xx makes the provider redeliver, which is safe: the worker
		// dedups on event id and fulfillment is idempotent.
		h.logger.Printf("webhook: enqueue event %s: %v", ev.EventID, err)
		writeError(w, http.StatusInternalServerError, "failed to queue event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
