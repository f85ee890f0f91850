// Package presentation holds the user-facing wording of the mini-app.
package presentation

import (
	"errors"

	"github.com/nightlab/exchange/internal/application"
)

var statusLabels = map[application.Status]string{
	application.StatusWaitingMerchant: "Ожидает мерчанта",
	application.StatusMerchantTaken:   "Взята мерчантом",
	application.StatusWaitingPayment:  "Ожидает оплату",
	application.StatusWaitingReceipt:  "Ожидает чек",
	application.StatusWaitingCheck:    "На проверке",
	application.StatusConfirmed:       "Подтверждено",
	application.StatusRejected:        "Отклонено",
	application.StatusExpired:         "Истекло время",
}

var outcomeMessages = map[application.Outcome]string{
	application.OutcomeRequisitesIssued: "Заявка создана! Реквизиты получены автоматически.",
	application.OutcomeQueued:           "Заявка создана! Ожидайте выдачи реквизитов оператором.",
}

// StatusLabel returns the display label for s, or s itself when unknown.
func StatusLabel(s application.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// OutcomeMessage describes which creation branch was taken.
func OutcomeMessage(o application.Outcome) string {
	if msg, ok := outcomeMessages[o]; ok {
		return msg
	}
	return string(o)
}

// CreateFailure renders a creation error for the user. Unexpected errors get
// a generic message so internals never reach the client.
func CreateFailure(err error) string {
	var verr *application.ValidationError
	switch {
	case errors.As(err, &verr) && verr.Reason == "amount must be positive":
		return "Сумма должна быть больше 0"
	case errors.Is(err, application.ErrValidation):
		return "Некорректные данные заявки"
	case errors.Is(err, application.ErrNotFound):
		return "Банк не найден"
	default:
		return "Не удалось создать заявку, попробуйте позже"
	}
}
