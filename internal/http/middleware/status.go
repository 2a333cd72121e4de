package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// responseStatus is the status the client will see. Middleware runs before the global
// error handler writes the response, so a returned error decides the code.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
