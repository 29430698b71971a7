package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hideaki1979/ud-la12react-ec/internal/cart"
	"github.com/hideaki1979/ud-la12react-ec/internal/order"
	"github.com/hideaki1979/ud-la12react-ec/internal/testutil"
)

func TestRepository_CreatePendingAndGetByID(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, _, cleanup := testutil.StartPostgres(ctx, t)
	t.Cleanup(cleanup)
	truncateTables(t, db)

	repo := order.NewRepository(db)

	o := &order.Order{
		UserID:        "user-abc",
		PaymentMethod: order.PaymentMethodHostedCheckout,
		TotalPrice:    500,
		Snapshot: cart.Snapshot{
			"P1": {Name: "Fountain Pen", Price: 100, Quantity: 2},
			"P2": {Name: "Notebook A5", Price: 300, Quantity: 1},
		},
	}
	require.NoError(t, repo.CreatePending(ctx, o))
	require.NotEmpty(t, o.ID)

	fetched, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, o.UserID, fetched.UserID)
	require.Equal(t, order.StatusPending, fetched.Status)
	require.EqualValues(t, 500, fetched.TotalPrice)
	require.Equal(t, o.Snapshot, fetched.Snapshot)
	require.Empty(t, fetched.Items)
}

func TestRepository_GetBySessionRef(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, _, cleanup := testutil.StartPostgres(ctx, t)
	t.Cleanup(cleanup)
	truncateTables(t, db)

	repo := order.NewRepository(db)

	o := &order.Order{
		UserID:        "user-abc",
		PaymentMethod: order.PaymentMethodHostedCheckout,
		TotalPrice:    100,
		Snapshot:      cart.Snapshot{"P1": {Price: 100, Quantity: 1}},
	}
	require.NoError(t, repo.CreatePending(ctx, o))
	require.NoError(t, repo.AttachSessionRef(ctx, o.ID, "cs_integration_1"))

	fetched, err := repo.GetBySessionRef(ctx, "cs_integration_1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, o.ID, fetched.ID)
	require.Equal(t, "cs_integration_1", fetched.SessionRef)

	missing, err := repo.GetBySessionRef(ctx, "cs_never_issued")
	require.NoError(t, err)
	require.Nil(t, missing)
}
