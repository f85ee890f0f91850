package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nightlab/exchange/internal/identity"
	"github.com/nightlab/exchange/internal/notification"
)

// RegisterNotificationRoutes wires the in-app inbox.
func RegisterNotificationRoutes(r fiber.Router, h *NotificationHandler) {
	r.Get("/notifications", h.List)
	r.Get("/notifications/unread-count", h.UnreadCount)
	r.Post("/notifications/:id/read", h.MarkRead)
}

// NotificationHandler serves the inbox.
type NotificationHandler struct {
	service *notification.Service
}

func NewNotificationHandler(service *notification.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type notificationView struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"created_at"`
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals(identity.LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	records, err := h.service.List(c.UserContext(), uid, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	out := make([]notificationView, len(records))
	for i, rec := range records {
		out[i] = notificationView{
			ID:        rec.ID,
			Type:      rec.Kind,
			Title:     rec.Title,
			Message:   rec.Message,
			IsRead:    rec.IsRead,
			Data:      rec.Data,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return c.Status(http.StatusOK).JSON(out)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	uid, _ := c.Locals(identity.LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	n, err := h.service.UnreadCount(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"count": n})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	uid, _ := c.Locals(identity.LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid notification id")
	}
	ok, err := h.service.MarkRead(c.UserContext(), int64(id), uid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": ok})
}
