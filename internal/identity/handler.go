package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LocalsUserID is the fiber locals key holding the authenticated user id.
const LocalsUserID = "user_id"

// Handler exposes profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type profileResponse struct {
	TgID         int64   `json:"tg_id"`
	Username     string  `json:"username"`
	Role         string  `json:"role"`
	BalanceUAH   float64 `json:"balance_uah"`
	ReferralCode string  `json:"referral_code"`
	CreatedAt    string  `json:"created_at"`
}

// Profile returns the caller's stored profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	uid, _ := c.Locals(LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	user, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(profileResponse{
		TgID:         user.ExternalID,
		Username:     user.Username,
		Role:         user.Role,
		BalanceUAH:   float64(user.Balance) / 100,
		ReferralCode: user.ReferralCode,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
	})
}
