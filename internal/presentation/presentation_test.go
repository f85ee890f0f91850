package presentation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightlab/exchange/internal/application"
	"github.com/nightlab/exchange/internal/notification"
)

func TestStatusLabelCoversEveryStatus(t *testing.T) {
	for _, s := range application.Statuses {
		assert.NotEqual(t, string(s), StatusLabel(s), "missing label for %s", s)
	}
	assert.Equal(t, "UNKNOWN", StatusLabel("UNKNOWN"))
}

func TestCreateFailureHidesInternals(t *testing.T) {
	assert.Equal(t, "Банк не найден", CreateFailure(fmt.Errorf("bank 3: %w", application.ErrNotFound)))
	assert.Equal(t, "Не удалось создать заявку, попробуйте позже", CreateFailure(errors.New("pq: connection refused")))
}

type recordingPublisher struct {
	recs []notification.Record
}

func (p *recordingPublisher) Publish(_ context.Context, rec notification.Record) error {
	p.recs = append(p.recs, rec)
	return nil
}

func TestInboxPublishesForOwner(t *testing.T) {
	pub := &recordingPublisher{}
	inbox := NewInbox(pub, nil)
	app := application.Application{ID: 5, OwnerID: 42, PaymentCode: "AB12CD", Status: application.StatusExpired}

	inbox.Expired(context.Background(), app)

	require.Len(t, pub.recs, 1)
	assert.Equal(t, int64(42), pub.recs[0].UserID)
	assert.Equal(t, notification.KindApplicationExpired, pub.recs[0].Kind)
	assert.Contains(t, pub.recs[0].Message, "AB12CD")
	assert.Equal(t, int64(5), pub.recs[0].Data["app_id"])
}
