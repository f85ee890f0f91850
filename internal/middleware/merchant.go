package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const merchantKeyHeader = "X-Merchant-Key"

// MerchantKey admits operator requests whose X-Merchant-Key matches the
// bcrypt hash. An empty hash disables the operator surface.
func MerchantKey(hash string) fiber.Handler {
	stored := []byte(hash)
	return func(c *fiber.Ctx) error {
		if len(stored) == 0 {
			return fiber.NewError(http.StatusForbidden, "merchant access disabled")
		}
		key := strings.TrimSpace(c.Get(merchantKeyHeader))
		if key == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing merchant key")
		}
		if err := bcrypt.CompareHashAndPassword(stored, []byte(key)); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid merchant key")
		}
		return c.Next()
	}
}
