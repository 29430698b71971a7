package events

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hideaki1979/ud-la12react-ec/internal/order"
	"github.com/hideaki1979/ud-la12react-ec/internal/user"
)

type fakeEmailPublisher struct {
	requests []EmailRequest
	err      error
}

func (f *fakeEmailPublisher) PublishEmailRequest(ctx context.Context, req EmailRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

type fakeDirectory struct {
	users map[string]*user.User
	err   error
}

func (f *fakeDirectory) Lookup(ctx context.Context, userID string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[userID], nil
}

func completedOrder() *order.Order {
	return &order.Order{ID: "order-1", UserID: "user-1", TotalPrice: 500, Status: order.StatusCompleted}
}

func TestSendOrderConfirmation(t *testing.T) {
	pub := &fakeEmailPublisher{}
	dir := &fakeDirectory{users: map[string]*user.User{
		"user-1": {ID: "user-1", Email: "mei@example.com"},
	}}
	n := NewEmailNotifier(pub, dir, "ops@example.com", log.New(io.Discard, "", 0))

	require.NoError(t, n.SendOrderConfirmation(context.Background(), completedOrder()))

	require.Len(t, pub.requests, 1)
	assert.Equal(t, "mei@example.com", pub.requests[0].To)
	assert.Equal(t, TemplateOrderConfirmation, pub.requests[0].Template)
	assert.Equal(t, "order-1", pub.requests[0].OrderID)
	assert.EqualValues(t, 500, pub.requests[0].Total)
}

func TestSendOrderConfirmation_UnknownUser(t *testing.T) {
	pub := &fakeEmailPublisher{}
	n := NewEmailNotifier(pub, &fakeDirectory{users: map[string]*user.User{}}, "", log.New(io.Discard, "", 0))

	err := n.SendOrderConfirmation(context.Background(), completedOrder())
	require.Error(t, err)
	assert.Empty(t, pub.requests)
}

func TestSendOrderConfirmation_DirectoryError(t *testing.T) {
	pub := &fakeEmailPublisher{}
	n := NewEmailNotifier(pub, &fakeDirectory{err: errors.New("user service down")}, "", log.New(io.Discard, "", 0))

	err := n.SendOrderConfirmation(context.Background(), completedOrder())
	require.Error(t, err)
	assert.Empty(t, pub.requests)
}

func TestSendOperatorAlert(t *testing.T) {
	pub := &fakeEmailPublisher{}
	n := NewEmailNotifier(pub, &fakeDirectory{}, "ops@example.com", log.New(io.Discard, "", 0))

	require.NoError(t, n.SendOperatorAlert(context.Background(), completedOrder()))

	require.Len(t, pub.requests, 1)
	assert.Equal(t, "ops@example.com", pub.requests[0].To)
	assert.Equal(t, TemplateOperatorAlert, pub.requests[0].Template)
}

func TestSendOperatorAlert_NoAddressConfigured(t *testing.T) {
	pub := &fakeEmailPublisher{}
	n := NewEmailNotifier(pub, &fakeDirectory{}, "", log.New(io.Discard, "", 0))

	require.NoError(t, n.SendOperatorAlert(context.Background(), completedOrder()))
	assert.Empty(t, pub.requests)
}
