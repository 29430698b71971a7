package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hideaki1979/ud-la12react-ec/internal/fulfillment"
)

type fakeFulfiller struct {
	res    fulfillment.Result
	err    error
	calls  []string
	gotSes []string
}

func (f *fakeFulfiller) Fulfill(ctx context.Context, orderID, sessionID string) (fulfillment.Result, error) {
	f.calls = append(f.calls, orderID)
	f.gotSes = append(f.gotSes, sessionID)
	return f.res, f.err
}

type fakeDedup struct {
	seen   map[string]bool
	marked []string
}

func (f *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeDedup) MarkSeen(ctx context.Context, eventID string) error {
	f.marked = append(f.marked, eventID)
	return nil
}

func taskBody(t *testing.T, task PaymentSessionTask) []byte {
	t.Helper()
	b, err := json.Marshal(task)
	require.NoError(t, err)
	return b
}

func TestHandlePaymentTask_FulfillsAndMarksSeen(t *testing.T) {
	svc := &fakeFulfiller{res: fulfillment.Result{Success: true}}
	seen := &fakeDedup{seen: map[string]bool{}}
	logger := log.New(io.Discard, "", 0)

	body := taskBody(t, PaymentSessionTask{EventID: "evt_1", OrderID: "order-1", SessionID: "cs_1"})
	require.NoError(t, handlePaymentTask(context.Background(), svc, seen, body, logger))

	assert.Equal(t, []string{"order-1"}, svc.calls)
	assert.Equal(t, []string{"cs_1"}, svc.gotSes)
	assert.Equal(t, []string{"evt_1"}, seen.marked)
}

func TestHandlePaymentTask_SkipsDuplicateEvent(t *testing.T) {
	svc := &fakeFulfiller{}
	seen := &fakeDedup{seen: map[string]bool{"evt_1": true}}
	logger := log.New(io.Discard, "", 0)

	body := taskBody(t, PaymentSessionTask{EventID: "evt_1", OrderID: "order-1", SessionID: "cs_1"})
	require.NoError(t, handlePaymentTask(context.Background(), svc, seen, body, logger))

	assert.Empty(t, svc.calls, "duplicate must not reach fulfillment")
	assert.Empty(t, seen.marked)
}

func TestHandlePaymentTask_MissingOrderID(t *testing.T) {
	svc := &fakeFulfiller{}
	logger := log.New(io.Discard, "", 0)

	body := taskBody(t, PaymentSessionTask{EventID: "evt_1", SessionID: "cs_1"})
	err := handlePaymentTask(context.Background(), svc, &fakeDedup{seen: map[string]bool{}}, body, logger)
	require.Error(t, err)
	assert.Empty(t, svc.calls)
}

func TestHandlePaymentTask_MalformedBody(t *testing.T) {
	svc := &fakeFulfiller{}
	logger := log.New(io.Discard, "", 0)

	err := handlePaymentTask(context.Background(), svc, &fakeDedup{seen: map[string]bool{}}, []byte("{nope"), logger)
	require.Error(t, err)
	assert.Empty(t, svc.calls)
}

func TestHandlePaymentTask_FulfillErrorNotMarkedSeen(t *testing.T) {
	svc := &fakeFulfiller{err: context.DeadlineExceeded}
	seen := &fakeDedup{seen: map[string]bool{}}
	logger := log.New(io.Discard, "", 0)

	body := taskBody(t, PaymentSessionTask{EventID: "evt_1", OrderID: "order-1"})
	err := handlePaymentTask(context.Background(), svc, seen, body, logger)
	require.Error(t, err)
	assert.Empty(t, seen.marked, "failed attempt stays retryable")
}
