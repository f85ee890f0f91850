package presentation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nightlab/exchange/internal/application"
	"github.com/nightlab/exchange/internal/notification"
)

// Publisher stores a notification for a user.
type Publisher interface {
	Publish(ctx context.Context, rec notification.Record) error
}

// Inbox turns lifecycle events into user notifications.
type Inbox struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewInbox builds an application.Events implementation backed by publisher.
func NewInbox(publisher Publisher, logger *slog.Logger) *Inbox {
	return &Inbox{publisher: publisher, logger: logger}
}

func (i *Inbox) RequisitesAssigned(ctx context.Context, app application.Application) {
	message := fmt.Sprintf("Реквизиты по заявке %s выданы.", app.PaymentCode)
	if app.ExpiresAt != nil {
		message += fmt.Sprintf(" Оплатите до %s UTC.", app.ExpiresAt.UTC().Format("15:04"))
	}
	i.publish(ctx, app, notification.KindRequisitesIssued, "Реквизиты получены", message)
}

func (i *Inbox) StatusChanged(ctx context.Context, app application.Application, _ application.Status) {
	i.publish(ctx, app, notification.KindStatusChanged,
		"Статус заявки изменён",
		fmt.Sprintf("Заявка %s: %s", app.PaymentCode, StatusLabel(app.Status)))
}

func (i *Inbox) Expired(ctx context.Context, app application.Application) {
	i.publish(ctx, app, notification.KindApplicationExpired,
		"Время заявки истекло",
		fmt.Sprintf("Срок оплаты по заявке %s истёк.", app.PaymentCode))
}

func (i *Inbox) publish(ctx context.Context, app application.Application, kind, title, message string) {
	err := i.publisher.Publish(ctx, notification.Record{
		UserID:  app.OwnerID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Data: map[string]any{
			"app_id": app.ID,
			"status": string(app.Status),
		},
	})
	if err != nil && i.logger != nil {
		i.logger.Error("store notification", slog.Int64("application_id", app.ID), slog.Any("error", err))
	}
}
