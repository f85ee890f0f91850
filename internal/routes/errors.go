package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nightlab/exchange/internal/application"
)

// ErrorHandler renders errors as {"error": message}. Anything that is not a
// fiber.Error is logged and reported as a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			logger.Error("unhandled error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
			fe = fiber.NewError(http.StatusInternalServerError, "internal error")
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
}

// lifecycleError maps engine errors onto HTTP statuses; unknown errors pass
// through to ErrorHandler.
func lifecycleError(err error) error {
	switch {
	case errors.Is(err, application.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "application not found")
	case errors.Is(err, application.ErrForbidden):
		return fiber.NewError(http.StatusForbidden, "access denied")
	case errors.Is(err, application.ErrTerminal), errors.Is(err, application.ErrTransition):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return err
	}
}
