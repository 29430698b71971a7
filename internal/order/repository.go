package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hideaki1979/ud-la12react-ec/internal/cart"
)

type Repository interface {
	CreatePending(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	GetBySessionRef(ctx context.Context, sessionRef string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	AttachSessionRef(ctx context.Context, orderID, sessionRef string) error

	BeginTx(ctx context.Context) (*sql.Tx, error)
	// LockByID acquires a FOR UPDATE row lock on the order; the lock is the
	// concurrency boundary between racing reconciliation paths.
	LockByID(ctx context.Context, tx *sql.Tx, orderID string) (*Order, error)
	CompleteTx(ctx context.Context, tx *sql.Tx, orderID, confirmationRef string) error
	InsertLineItemsTx(ctx context.Context, tx *sql.Tx, items []LineItem) error
	MarkFailed(ctx context.Context, orderID string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const orderColumns = `id, user_id, payment_method, total_price, payment_status,
       payment_session_ref, payment_confirmation_ref, cart_snapshot, created_at, updated_at`

func (r *repo) CreatePending(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Status = StatusPending
	o.UpdatedAt = o.CreatedAt

	snap, err := json.Marshal(o.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, payment_method, total_price, payment_status, cart_snapshot, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, string(o.PaymentMethod), o.TotalPrice, string(o.Status), snap, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repo) GetBySessionRef(ctx context.Context, sessionRef string) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_session_ref = $1`, sessionRef)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order by session ref: %w", err)
	}
	return o, nil
}

func (r *repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *repo) AttachSessionRef(ctx context.Context, orderID, sessionRef string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_session_ref = $2, updated_at = now() WHERE id = $1`,
		orderID, sessionRef,
	)
	if err != nil {
		return fmt.Errorf("attach session ref: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("attach session ref: order %s not found", orderID)
	}
	return nil
}

func (r *repo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *repo) LockByID(ctx context.Context, tx *sql.Tx, orderID string) (*Order, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

func (r *repo) CompleteTx(ctx context.Context, tx *sql.Tx, orderID, confirmationRef string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
         SET payment_status = $2, payment_confirmation_ref = NULLIF($3, ''), updated_at = now()
         WHERE id = $1`,
		orderID, string(StatusCompleted), confirmationRef,
	)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	return nil
}

// InsertLineItemsTx inserts all line items in a single statement so they
// commit atomically with the status change and share one created_at.
func (r *repo) InsertLineItemsTx(ctx context.Context, tx *sql.Tx, items []LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("insert line items: empty batch")
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO order_line_items (id, order_id, product_id, quantity, price, created_at) VALUES `)
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price, it.CreatedAt)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert line items: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure. It never demotes a completed order.
func (r *repo) MarkFailed(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now()
         WHERE id = $1 AND payment_status <> $3`,
		orderID, string(StatusFailed), string(StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	return nil
}

func (r *repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price, created_at
         FROM order_line_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return fmt.Errorf("select line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.CreatedAt); err != nil {
			return fmt.Errorf("scan line item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o          Order
		method     string
		status     string
		sessionRef sql.NullString
		confirmRef sql.NullString
		snap       []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &method, &o.TotalPrice, &status,
		&sessionRef, &confirmRef, &snap, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.PaymentMethod = PaymentMethod(method)
	o.Status = Status(status)
	o.SessionRef = sessionRef.String
	o.ConfirmationRef = confirmRef.String

	if len(snap) > 0 {
		var s cart.Snapshot
		if err := json.Unmarshal(snap, &s); err != nil {
			return nil, fmt.Errorf("decode cart snapshot: %w", err)
		}
		o.Snapshot = s
	}
	return &o, nil
}
