package events

import (
	"context"
	"fmt"
	"log"

	"github.com/hideaki1979/ud-la12react-ec/internal/order"
	"github.com/hideaki1979/ud-la12react-ec/internal/user"
)

// EmailPublisher is the slice of Publisher the notifier needs.
type EmailPublisher interface {
	PublishEmailRequest(ctx context.Context, req EmailRequest) error
}

// EmailNotifier turns completed orders into mail requests on the
// notification queue. The customer address comes from the user directory;
// the operator address from config.
type EmailNotifier struct {
	pub        EmailPublisher
	users      user.Directory
	adminEmail string
	logger     *log.Logger
}

func NewEmailNotifier(pub EmailPublisher, users user.Directory, adminEmail string, logger *log.Logger) *EmailNotifier {
	return &EmailNotifier{pub: pub, users: users, adminEmail: adminEmail, logger: logger}
}

func (n *EmailNotifier) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	u, err := n.users.Lookup(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", o.UserID, err)
	}
	if u == nil || u.Email == "" {
		return fmt.Errorf("no email on file for user %s", o.UserID)
	}

	return n.pub.PublishEmailRequest(ctx, EmailRequest{
		To:       u.Email,
		Template: TemplateOrderConfirmation,
		OrderID:  o.ID,
		UserID:   o.UserID,
		Total:    o.TotalPrice,
	})
}

func (n *EmailNotifier) SendOperatorAlert(ctx context.Context, o *order.Order) error {
	if n.adminEmail == "" {
		n.logger.Printf("notify: no operator address configured, skipping alert for order %s", o.ID)
		return nil
	}

	return n.pub.PublishEmailRequest(ctx, EmailRequest{
		To:       n.adminEmail,
		Template: TemplateOperatorAlert,
		OrderID:  o.ID,
		UserID:   o.UserID,
		Total:    o.TotalPrice,
	})
}
