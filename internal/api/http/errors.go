package httpapi

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ecosync/internal/ai"
	"github.com/i474232898/ecosync/internal/session"
	"github.com/i474232898/ecosync/internal/store"
	"github.com/i474232898/ecosync/internal/weather"
)

// ErrorHandler is the app-wide error responder. Handlers return typed errors
// and this maps them onto status codes and bodies.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		vErr     *weather.ValidationError
		parseErr *ai.ParseError
		upErr    *weather.UpstreamError
		fErr     *fiber.Error
	)

	switch {
	case errors.As(err, &vErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   vErr.Error(),
			"field":   vErr.Field,
		})

	case errors.As(err, &parseErr):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":     false,
			"error":       "Failed to parse AI response",
			"message":     parseErr.Error(),
			"rawResponse": parseErr.Raw,
		})

	case errors.Is(err, ai.ErrModelUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Language model unavailable",
			"message": err.Error(),
		})

	case errors.As(err, &upErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success":      false,
			"error":        "Upstream request failed",
			"source":       upErr.Source,
			"message":      upErr.Error(),
			"nasaResponse": upErr.PayloadValue(),
		})

	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})

	case errors.As(err, &fErr):
		return c.Status(fErr.Code).JSON(fiber.Map{
			"error":   true,
			"message": fErr.Message,
		})
	}

	log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
		"message": err.Error(),
	})
}
