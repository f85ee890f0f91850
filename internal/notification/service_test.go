package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightlab/exchange/internal/clock"
	"github.com/nightlab/exchange/internal/logging"
)

type testNotifier struct {
	sent []Message
	err  error
}

func (n *testNotifier) Send(_ context.Context, msg Message) error {
	n.sent = append(n.sent, msg)
	return n.err
}

func TestPublishStoresAndDelivers(t *testing.T) {
	notifier := &testNotifier{}
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryRepository(), notifier, clock.NewManual(now), logging.Discard())
	ctx := context.Background()

	require.NoError(t, svc.Publish(ctx, Record{UserID: 42, Kind: KindRequisitesIssued, Title: "t", Message: "m"}))

	recs, err := svc.List(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, now, recs[0].CreatedAt)
	assert.False(t, recs[0].IsRead)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "42", notifier.sent[0].Destination)
}

func TestPublishIgnoresDeliveryFailure(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &testNotifier{err: errors.New("down")}, nil, logging.Discard())
	ctx := context.Background()

	require.NoError(t, svc.Publish(ctx, Record{UserID: 1, Kind: KindStatusChanged}))
	n, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkReadChecksOwner(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil, nil)
	ctx := context.Background()
	require.NoError(t, svc.Publish(ctx, Record{UserID: 1, Kind: KindStatusChanged}))
	require.NoError(t, svc.Publish(ctx, Record{UserID: 1, Kind: KindStatusChanged}))

	recs, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	ok, err := svc.MarkRead(ctx, recs[0].ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "other users cannot mark the record")

	ok, err = svc.MarkRead(ctx, recs[0].ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
