package httpapi

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ecosync/internal/store"
	"github.com/i474232898/ecosync/internal/weather"
)

type coordinateBody struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

func (b *coordinateBody) coordinate() *weather.Coordinate {
	if b == nil {
		return nil
	}
	return &weather.Coordinate{Lat: *b.Lat, Lon: *b.Lon}
}

type saveQueryRequest struct {
	UserID   string `json:"userId" validate:"omitempty,max=128"`
	Query    string `json:"query" validate:"required"`
	Location *struct {
		City        string          `json:"city" validate:"omitempty,max=100"`
		Coordinates *coordinateBody `json:"coordinates"`
	} `json:"location"`
	Parameters []string        `json:"parameters"`
	Response   json.RawMessage `json:"response"`
	NasaData   *seriesEnvelope `json:"nasaData"`
}

func (h *handlers) history() (store.Store, error) {
	if h.deps.History == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "query history is not configured")
	}
	return h.deps.History, nil
}

func (h *handlers) listQueries(c *fiber.Ctx) error {
	history, err := h.history()
	if err != nil {
		return err
	}
	records, err := history.List(c.UserContext(), c.QueryInt("limit", store.MaxListLimit))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"queries": records,
	})
}

func (h *handlers) getQuery(c *fiber.Ctx) error {
	history, err := h.history()
	if err != nil {
		return err
	}
	rec, err := history.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"query":   rec,
	})
}

func (h *handlers) saveQuery(c *fiber.Ctx) error {
	history, err := h.history()
	if err != nil {
		return err
	}

	var req saveQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	rec := store.QueryRecord{
		UserID:   req.UserID,
		Query:    req.Query,
		Response: req.Response,
	}
	if req.Location != nil {
		rec.Location = store.Location{City: req.Location.City, Coordinates: req.Location.Coordinates.coordinate()}
	}
	for _, p := range req.Parameters {
		rec.Parameters = append(rec.Parameters, weather.ParameterCode(p))
	}
	if len(rec.Parameters) > 0 {
		if err := weather.ValidateParameters(rec.Parameters); err != nil {
			return err
		}
	}
	if req.NasaData != nil {
		rec.Series = weather.Normalize(weather.TimeSeries(req.NasaData.Properties.Parameter))
	}

	saved, err := history.Save(c.UserContext(), rec)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"query":   saved,
	})
}
