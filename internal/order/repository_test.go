package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hideaki1979/ud-la12react-ec/internal/cart"
)

var orderCols = []string{
	"id", "user_id", "payment_method", "total_price", "payment_status",
	"payment_session_ref", "payment_confirmation_ref", "cart_snapshot", "created_at", "updated_at",
}

func TestCreatePending_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	createdAt := time.Now().UTC()

	o := &Order{
		ID:            "order-123",
		UserID:        "user-1",
		PaymentMethod: PaymentMethodHostedCheckout,
		TotalPrice:    500,
		CreatedAt:     createdAt,
		Snapshot: cart.Snapshot{
			"p1": {Name: "Fountain Pen", Price: 100, Quantity: 2},
			"p2": {Name: "Notebook A5", Price: 300, Quantity: 1},
		},
	}

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.UserID, "hosted_checkout", int64(500), "pending", sqlmock.AnyArg(), createdAt, createdAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.CreatePending(ctx, o))
	assert.Equal(t, StatusPending, o.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePending_GeneratesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(1, 1))

	o := &Order{UserID: "user-1", PaymentMethod: PaymentMethodCashOnDelivery, TotalPrice: 100,
		Snapshot: cart.Snapshot{"p1": {Price: 100, Quantity: 1}}}
	require.NoError(t, repo.CreatePending(context.Background(), o))
	assert.NotEmpty(t, o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1`).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("order-1", "user-1", "hosted_checkout", int64(500), "completed",
				"cs_123", "pi_456", []byte(`{"p1":{"price":100,"quantity":2}}`), now, now))

	mock.ExpectQuery(`SELECT (.+) FROM order_line_items WHERE order_id = \$1`).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price", "created_at"}).
			AddRow("li-1", "order-1", "p1", 2, int64(100), now))

	o, err := repo.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, "cs_123", o.SessionRef)
	assert.Equal(t, "pi_456", o.ConfirmationRef)
	assert.Equal(t, int64(100), o.Snapshot["p1"].Price)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "p1", o.Items[0].ProductID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	o, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestGetBySessionRef_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE payment_session_ref = \$1`).
		WithArgs("cs_forged").
		WillReturnError(sql.ErrNoRows)

	o, err := repo.GetBySessionRef(context.Background(), "cs_forged")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestLockByID_ReturnsLockedOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1 FOR UPDATE`).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("order-1", "user-1", "hosted_checkout", int64(500), "pending",
				nil, nil, []byte(`{"p1":{"price":100,"quantity":2}}`), now, now))

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	o, err := repo.LockByID(context.Background(), tx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, o.SessionRef)
}

func TestInsertLineItemsTx_SingleBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now().UTC()

	items := []LineItem{
		{ID: "li-1", OrderID: "order-1", ProductID: "p1", Quantity: 2, Price: 100, CreatedAt: now},
		{ID: "li-2", OrderID: "order-1", ProductID: "p2", Quantity: 1, Price: 300, CreatedAt: now},
	}

	mock.ExpectBegin()
	// One statement for the whole batch.
	mock.ExpectExec("INSERT INTO order_line_items").
		WithArgs("li-1", "order-1", "p1", 2, int64(100), now,
			"li-2", "order-1", "p2", 1, int64(300), now).
		WillReturnResult(sqlmock.NewResult(2, 2))

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.InsertLineItemsTx(context.Background(), tx, items))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLineItemsTx_EmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectBegin()
	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	err = repo.InsertLineItemsTx(context.Background(), tx, nil)
	require.Error(t, err)
}

func TestCompleteTx_PersistsConfirmationRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs("order-1", "completed", "pi_456").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.CompleteTx(context.Background(), tx, "order-1", "pi_456"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed_NeverDemotesCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectExec("UPDATE orders").
		WithArgs("order-1", "failed", "completed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkFailed(context.Background(), "order-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachSessionRef_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectExec("UPDATE orders").
		WithArgs("missing", "cs_123").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.AttachSessionRef(context.Background(), "missing", "cs_123")
	require.Error(t, err)
}
