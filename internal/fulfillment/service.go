package fulfillment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hideaki1979/ud-la12react-ec/internal/order"
	"github.com/hideaki1979/ud-la12react-ec/internal/payment"
)

// ErrInvalidCartData marks an order whose embedded snapshot is missing or
// malformed at fulfillment time. The order is forced to failed so retries
// don't spin forever on it.
var ErrInvalidCartData = errors.New("invalid cart snapshot data")

// Result is the outcome of a fulfillment attempt. AlreadyProcessed is a
// success, not an error: it is the idempotent no-op outcome when the other
// reconciliation path won the race.
type Result struct {
	Success          bool   `json:"success"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	Message          string `json:"message"`
}

// Repository is the slice of the order repository fulfillment needs.
type Repository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	LockByID(ctx context.Context, tx *sql.Tx, orderID string) (*order.Order, error)
	CompleteTx(ctx context.Context, tx *sql.Tx, orderID, confirmationRef string) error
	InsertLineItemsTx(ctx context.Context, tx *sql.Tx, items []order.LineItem) error
	MarkFailed(ctx context.Context, orderID string) error
}

// Service converts a pending order plus a verified payment into a completed
// order with line items. Both reconciliation entry points (browser return
// and webhook worker) call Fulfill; it is safe to invoke concurrently and
// repeatedly for the same order.
type Service struct {
	repo     Repository
	gateway  payment.Gateway
	notifier Notifier
	logger   *log.Logger
}

func NewService(repo Repository, gateway payment.Gateway, notifier Notifier, logger *log.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, notifier: notifier, logger: logger}
}

// Fulfill runs the fulfillment pipeline for one order. When sessionID is
// non-empty the payment status is verified with the provider first; an
// unpaid session leaves the order untouched. The provider call happens
// before the row lock and notifications happen after commit, so the lock is
// never held across a network call.
func (s *Service) Fulfill(ctx context.Context, orderID, sessionID string) (Result, error) {
	confirmationRef := ""
	if sessionID != "" {
		status, err := s.gateway.RetrieveStatus(ctx, sessionID)
		if err != nil {
			return Result{Message: "payment status check failed"}, err
		}
		if !status.Paid() {
			s.logger.Printf("fulfill: payment not completed order=%s session=%s status=%s", orderID, sessionID, status.Payment)
			return Result{Message: "payment not completed"}, nil
		}
		confirmationRef = status.ConfirmationRef
	}

	res, fulfilled, err := s.fulfillTx(ctx, orderID, confirmationRef)
	if err != nil {
		s.logger.Printf("fulfill: order=%s error=%v", orderID, err)
		// The transaction is already rolled back; record the failure in a
		// separate write so it is durable.
		if markErr := s.repo.MarkFailed(ctx, orderID); markErr != nil {
			s.logger.Printf("fulfill: mark failed order=%s error=%v", orderID, markErr)
		}
		if errors.Is(err, ErrInvalidCartData) {
			return Result{Message: "invalid cart data"}, err
		}
		return Result{Message: "order processing failed"}, err
	}

	if res.Success && !res.AlreadyProcessed && fulfilled != nil {
		s.notify(ctx, fulfilled)
	}
	return res, nil
}

func (s *Service) fulfillTx(ctx context.Context, orderID, confirmationRef string) (Result, *order.Order, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return Result{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.repo.LockByID(ctx, tx, orderID)
	if err != nil {
		return Result{}, nil, fmt.Errorf("lock order: %w", err)
	}
	if locked == nil {
		s.logger.Printf("fulfill: order %s not found", orderID)
		return Result{Message: "order not found"}, nil, nil
	}

	// Re-check under the lock. The pre-lock verification is not sufficient:
	// the other reconciliation path may have completed the order between the
	// provider call and lock acquisition.
	if locked.Status == order.StatusCompleted {
		if err := tx.Commit(); err != nil {
			return Result{}, nil, fmt.Errorf("commit no-op: %w", err)
		}
		s.logger.Printf("fulfill: order %s already processed", orderID)
		return Result{Success: true, AlreadyProcessed: true, Message: "order already processed"}, locked, nil
	}
	if locked.Status == order.StatusFailed {
		return Result{Message: "order previously failed"}, nil, nil
	}

	if len(locked.Snapshot) == 0 {
		return Result{}, nil, fmt.Errorf("%w: order %s has an empty snapshot", ErrInvalidCartData, orderID)
	}
	if err := locked.Snapshot.Validate(); err != nil {
		return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidCartData, err)
	}

	if err := s.repo.CompleteTx(ctx, tx, orderID, confirmationRef); err != nil {
		return Result{}, nil, err
	}

	if err := s.repo.InsertLineItemsTx(ctx, tx, buildLineItems(locked)); err != nil {
		return Result{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Printf("fulfill: order %s completed", orderID)
	return Result{Success: true, Message: "order completed"}, locked, nil
}

// buildLineItems expands the embedded snapshot into line items, all stamped
// with the same creation timestamp.
func buildLineItems(o *order.Order) []order.LineItem {
	now := time.Now().UTC()
	items := make([]order.LineItem, 0, len(o.Snapshot))
	for productID, it := range o.Snapshot {
		items = append(items, order.LineItem{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: productID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			CreatedAt: now,
		})
	}
	return items
}

// notify runs outside the transaction. A slow or failing notification must
// not roll back the financial state or block the caller's success result.
func (s *Service) notify(ctx context.Context, o *order.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendOrderConfirmation(ctx, o); err != nil {
		s.logger.Printf("fulfill: order confirmation mail order=%s error=%v", o.ID, err)
	}
	if err := s.notifier.SendOperatorAlert(ctx, o); err != nil {
		s.logger.Printf("fulfill: operator alert order=%s error=%v", o.ID, err)
	}
}
