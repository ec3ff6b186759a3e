package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ecosync/internal/weather"
)

// pointQuery holds query parameters for the point endpoint.
type pointQuery struct {
	Lat        string `query:"lat" validate:"required,latitude"`
	Lon        string `query:"lon" validate:"required,longitude"`
	Parameters string `query:"parameters" validate:"required"`
	Start      string `query:"start" validate:"omitempty,len=8,numeric"`
	End        string `query:"end" validate:"omitempty,len=8,numeric"`
}

func (h *handlers) pointData(c *fiber.Ctx) error {
	var q pointQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if q.Lat == "" || q.Lon == "" || q.Parameters == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing required parameters: lat, lon, parameters",
			"details": fiber.Map{"lat": q.Lat, "lon": q.Lon, "parameters": q.Parameters},
		})
	}
	if err := validate.Struct(q); err != nil {
		return validationError(err)
	}

	coord, err := parseCoordinate(q.Lat, q.Lon)
	if err != nil {
		return err
	}
	params, err := weather.ParseParameters(q.Parameters)
	if err != nil {
		return err
	}

	var rng *weather.DateRange
	if q.Start != "" || q.End != "" {
		window := h.deps.Gateway.TrailingRange(weather.DefaultRangeDays)
		if q.Start != "" {
			window.Start = q.Start
		}
		if q.End != "" {
			window.End = q.End
		}
		rng = &window
	}

	result, err := h.deps.Gateway.FetchPoint(c.UserContext(), coord, params, rng)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    envelope(result.Series),
		"metadata": fiber.Map{
			"coordinates": result.Coordinate,
			"parameters":  result.Parameters,
			"dateRange":   result.Range,
		},
	})
}

// regionalQuery holds query parameters for the regional endpoint.
type regionalQuery struct {
	LatMin     string `query:"latMin" validate:"required,latitude"`
	LatMax     string `query:"latMax" validate:"required,latitude"`
	LonMin     string `query:"lonMin" validate:"required,longitude"`
	LonMax     string `query:"lonMax" validate:"required,longitude"`
	Parameters string `query:"parameters" validate:"required"`
}

type regionalPoint struct {
	Coordinates [2]float64      `json:"coordinates"`
	Data        *seriesEnvelope `json:"data"`
}

func (h *handlers) regionalData(c *fiber.Ctx) error {
	var q regionalQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return validationError(err)
	}

	bounds := weather.Bounds{}
	for _, f := range []struct {
		raw string
		dst *float64
	}{
		{q.LatMin, &bounds.LatMin},
		{q.LatMax, &bounds.LatMax},
		{q.LonMin, &bounds.LonMin},
		{q.LonMax, &bounds.LonMax},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return &weather.ValidationError{Field: "bounds", Reason: err.Error()}
		}
		*f.dst = v
	}
	params, err := weather.ParseParameters(q.Parameters)
	if err != nil {
		return err
	}

	result, err := h.deps.Gateway.FetchRegional(c.UserContext(), bounds, params)
	if err != nil {
		return err
	}

	points := make([]regionalPoint, len(result.Points))
	for i, p := range result.Points {
		points[i] = regionalPoint{Coordinates: p.Coordinate.LonLat(), Data: envelope(p.Series)}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    points,
		"metadata": fiber.Map{
			"region":          result.Bounds,
			"gridSize":        result.GridSize,
			"dateRange":       result.Range,
			"requestedPoints": result.Requested,
			"totalPoints":     len(result.Points),
			"complete":        result.Complete(),
		},
	})
}

func parseCoordinate(latRaw, lonRaw string) (weather.Coordinate, error) {
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return weather.Coordinate{}, &weather.ValidationError{Field: "lat", Reason: err.Error()}
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return weather.Coordinate{}, &weather.ValidationError{Field: "lon", Reason: err.Error()}
	}
	coord := weather.Coordinate{Lat: lat, Lon: lon}
	return coord, coord.Validate()
}
