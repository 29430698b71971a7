package events

import "time"

// PaymentSessionTask is the unit of work the webhook handler enqueues after
// verifying a provider event. The worker re-verifies payment status itself,
// so the task carries references only, never amounts.
type PaymentSessionTask struct {
	EventID    string    `json:"eventId"`
	OrderID    string    `json:"orderId"`
	SessionID  string    `json:"sessionId"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EmailRequest asks the mailer to render and send one message.
type EmailRequest struct {
	To       string `json:"to"`
	Template string `json:"template"`
	OrderID  string `json:"orderId"`
	UserID   string `json:"userId"`
	Total    int64  `json:"total"`
}

const (
	EmailRequestedEventName    = "notification.email.requested"
	EmailRequestedEventVersion = 1

	TemplateOrderConfirmation = "order_confirmation"
	TemplateOperatorAlert     = "operator_alert"
)
