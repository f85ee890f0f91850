package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nightlab/exchange/internal/identity"
	"github.com/nightlab/exchange/internal/initdata"
)

const (
	initDataHeader = "X-Telegram-Init-Data"
	initDataField  = "init_data"
)

// Verifier authenticates a raw launch payload.
type Verifier interface {
	Validate(raw string) (initdata.Identity, error)
}

// UserEnsurer materializes the authenticated caller.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id initdata.Identity) (identity.User, error)
}

// AuthObserver is told why a payload was rejected.
type AuthObserver interface {
	AuthFailure(reason string)
}

// InitDataAuth authenticates requests by their launch payload and stores the
// caller's platform id in locals under identity.LocalsUserID.
func InitDataAuth(v Verifier, users UserEnsurer, observer AuthObserver, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := v.Validate(extractInitData(c))
		if err != nil {
			reason := initdata.Reason(err)
			if observer != nil {
				observer.AuthFailure(reason)
			}
			logger.Debug("init data rejected", slog.String("reason", reason), slog.String("ip", c.IP()))
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}

		user, err := users.EnsureUser(c.UserContext(), id)
		if err != nil {
			return err
		}

		c.Locals(identity.LocalsUserID, user.ExternalID)
		return c.Next()
	}
}

// extractInitData looks at the header, then the query string, then a JSON body.
func extractInitData(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get(initDataHeader)); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.Query(initDataField)); v != "" {
		return v
	}
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		return ""
	}
	var body struct {
		InitData string `json:"init_data"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.InitData)
}

// statusOf reports the status a request will be answered with once the
// error handler has run.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return http.StatusInternalServerError
}
