package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ecosync/internal/session"
	"github.com/i474232898/ecosync/internal/viz"
	"github.com/i474232898/ecosync/internal/weather"
)

// sessionChangeRequest is the body of session create and update calls.
type sessionChangeRequest struct {
	Center     *coordinateBody `json:"center"`
	City       string          `json:"city" validate:"omitempty,max=100"`
	Zoom       *float64        `json:"zoom" validate:"omitempty,gte=0,lte=22"`
	Parameters []string        `json:"parameters"`
	Layers     map[string]bool `json:"layers"`
}

func (r sessionChangeRequest) change() (session.Change, error) {
	change := session.Change{
		Center: r.Center.coordinate(),
		City:   r.City,
		Zoom:   r.Zoom,
	}
	if r.Parameters != nil {
		if len(r.Parameters) == 0 {
			return change, &weather.ValidationError{Field: "parameters", Reason: "at least one parameter is required"}
		}
		params := make([]weather.ParameterCode, len(r.Parameters))
		for i, p := range r.Parameters {
			params[i] = weather.ParameterCode(p)
		}
		change.Parameters = params
	}
	if len(r.Layers) > 0 {
		layers, err := viz.ParseToggles(r.Layers)
		if err != nil {
			return change, err
		}
		change.Layers = layers
	}
	return change, nil
}

func bindChange(c *fiber.Ctx) (session.Change, error) {
	var req sessionChangeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return session.Change{}, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
	}
	if err := validate.Struct(req); err != nil {
		return session.Change{}, validationError(err)
	}
	return req.change()
}

func (h *handlers) sessions() (*session.Manager, error) {
	if h.deps.Sessions == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "sessions are not configured")
	}
	return h.deps.Sessions, nil
}

func (h *handlers) createSession(c *fiber.Ctx) error {
	sessions, err := h.sessions()
	if err != nil {
		return err
	}
	change, err := bindChange(c)
	if err != nil {
		return err
	}
	ctrl, err := sessions.Create(c.UserContext(), change)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      ctrl.ID(),
		"session": ctrl.Snapshot(),
	})
}

func (h *handlers) getSession(c *fiber.Ctx) error {
	sessions, err := h.sessions()
	if err != nil {
		return err
	}
	ctrl, err := sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	snap := ctrl.Snapshot()
	return c.JSON(fiber.Map{
		"success":    true,
		"generation": snap.Generation,
		"session":    snap,
	})
}

func (h *handlers) updateSession(c *fiber.Ctx) error {
	sessions, err := h.sessions()
	if err != nil {
		return err
	}
	ctrl, err := sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	change, err := bindChange(c)
	if err != nil {
		return err
	}
	gen, err := ctrl.Apply(c.UserContext(), change)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"generation": gen,
		"session":    ctrl.Snapshot(),
	})
}

// refreshSession refetches the current location and parameters.
func (h *handlers) refreshSession(c *fiber.Ctx) error {
	sessions, err := h.sessions()
	if err != nil {
		return err
	}
	ctrl, err := sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	gen := ctrl.Refresh()
	return c.JSON(fiber.Map{
		"success":    true,
		"generation": gen,
		"session":    ctrl.Snapshot(),
	})
}

func (h *handlers) deleteSession(c *fiber.Ctx) error {
	sessions, err := h.sessions()
	if err != nil {
		return err
	}
	if err := sessions.Delete(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// sessionQuery interprets a free-text query and moves the session to it.
func (h *handlers) sessionQuery(c *fiber.Ctx) error {
	sessions, err := h.sessions()
	if err != nil {
		return err
	}
	ctrl, err := sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
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

	gen, err := ctrl.ApplyInterpretation(c.UserContext(), out)
	if err != nil {
		return err
	}
	body := interpretationBody(out)
	body["generation"] = gen
	body["session"] = ctrl.Snapshot()
	return c.JSON(body)
}
