package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ecosync/internal/ai"
	"github.com/i474232898/ecosync/internal/store"
	"github.com/i474232898/ecosync/internal/weather"
)

type queryRequest struct {
	Query  string `json:"query" validate:"required"`
	UserID string `json:"userId" validate:"omitempty,max=128"`
}

func (r *queryRequest) bind(c *fiber.Ctx) error {
	if err := c.BodyParser(r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return &weather.ValidationError{Field: "query", Reason: "Query is required"}
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *handlers) interpreter() (*ai.Interpreter, error) {
	if h.deps.Interpreter == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "query interpretation is not configured")
	}
	return h.deps.Interpreter, nil
}

func (h *handlers) aiQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := req.bind(c); err != nil {
		return err
	}
	interpreter, err := h.interpreter()
	if err != nil {
		return err
	}

	out, err := interpreter.Interpret(c.UserContext(), req.Query)
	if err != nil {
		return err
	}
	h.recordQuery(c.UserContext(), req.UserID, out)

	return c.JSON(interpretationBody(out))
}

// interpretationBody renders the resolved or degraded interpretation.
func interpretationBody(out *ai.Interpretation) fiber.Map {
	if !out.Resolved() {
		return fiber.Map{
			"success":  true,
			"query":    out.Query,
			"response": out.Intent,
			"message":  out.Message,
		}
	}
	return fiber.Map{
		"success":       true,
		"query":         out.Query,
		"response":      out.Intent,
		"enriched":      out.Enriched,
		"nasaData":      envelope(out.Series),
		"visualization": out.Visualization,
	}
}

// recordQuery saves the interpretation to the history. Failures are logged only.
func (h *handlers) recordQuery(ctx context.Context, userID string, out *ai.Interpretation) {
	if h.deps.History == nil {
		return
	}
	response, err := json.Marshal(out.Intent)
	if err != nil {
		log.Printf("WARN: encode intent for history: %v", err)
		return
	}
	rec := store.QueryRecord{
		UserID:     userID,
		Query:      out.Query,
		Location:   store.Location{City: out.Intent.City, Coordinates: out.Intent.Coordinates},
		Parameters: out.Intent.Parameters,
		Response:   response,
		Series:     out.Series,
	}
	if _, err := h.deps.History.Save(ctx, rec); err != nil {
		log.Printf("WARN: failed to record query %q: %v", out.Query, err)
	}
}

func (h *handlers) cities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"cities":  h.deps.Cities,
	})
}
