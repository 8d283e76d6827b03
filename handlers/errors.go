// handlers/errors.go
package handlers

import (
	"match-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps the service error taxonomy onto HTTP status codes.
// Anything untyped is an infrastructure failure and is logged.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	kind, ok := services.KindOf(err)
	if !ok {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	status := fiber.StatusInternalServerError
	switch kind {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindConflict:
		status = fiber.StatusConflict
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindForbidden:
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}

func badRequest(c *fiber.Ctx, msg string, cause error) error {
	body := fiber.Map{"error": msg}
	if cause != nil {
		body["cause"] = cause.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
