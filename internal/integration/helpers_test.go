package integration

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func truncateTables(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE order_line_items, orders, session_carts, webhook_events_seen, event_sequence`)
	require.NoError(t, err)
}
