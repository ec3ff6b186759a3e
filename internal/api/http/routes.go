package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/ecosync/internal/ai"
	"github.com/i474232898/ecosync/internal/observability"
	"github.com/i474232898/ecosync/internal/session"
	"github.com/i474232898/ecosync/internal/store"
	"github.com/i474232898/ecosync/internal/weather"
)

var validate = validator.New()

// Dependencies are the services behind the HTTP surface. Interpreter,
// Sessions, History and Metrics may be nil; their routes then answer 503 or
// are not mounted.
type Dependencies struct {
	Gateway     *weather.Gateway
	Interpreter *ai.Interpreter
	Cities      weather.CityCatalog
	Sessions    *session.Manager
	History     store.Store
	Metrics     *observability.Collector
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	h := &handlers{deps: deps}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "ecosync",
			"provider": deps.Gateway.ProviderName(),
		})
	})

	if gatherer := deps.Metrics.Gatherer(); gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	api.Get("/", h.index)

	nasa := api.Group("/nasa")
	nasa.Get("/data", h.pointData)
	nasa.Get("/regional", h.regionalData)

	aiGroup := api.Group("/ai")
	aiGroup.Post("/query", h.aiQuery)
	aiGroup.Get("/cities", h.cities)

	queries := api.Group("/queries")
	queries.Get("/", h.listQueries)
	queries.Post("/", h.saveQuery)
	queries.Get("/:id", h.getQuery)

	sessions := api.Group("/sessions")
	sessions.Post("/", h.createSession)
	sessions.Get("/:id", h.getSession)
	sessions.Patch("/:id", h.updateSession)
	sessions.Delete("/:id", h.deleteSession)
	sessions.Post("/:id/query", h.sessionQuery)
	sessions.Post("/:id/refresh", h.refreshSession)
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "ecosync",
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"GET /api/nasa/data?lat=&lon=&parameters=&start=&end=",
			"GET /api/nasa/regional?latMin=&latMax=&lonMin=&lonMax=&parameters=",
			"POST /api/ai/query",
			"GET /api/ai/cities",
			"GET /api/queries",
			"POST /api/queries",
			"GET /api/queries/:id",
			"POST /api/sessions",
			"GET /api/sessions/:id",
			"PATCH /api/sessions/:id",
			"DELETE /api/sessions/:id",
			"POST /api/sessions/:id/query",
			"POST /api/sessions/:id/refresh",
		},
		"parameters": weather.Catalog,
	})
}

// seriesEnvelope mirrors the provider's {properties:{parameter:{...}}} shape.
type seriesEnvelope struct {
	Properties seriesProperties `json:"properties"`
}

type seriesProperties struct {
	Parameter weather.NormalizedSeries `json:"parameter"`
}

func envelope(series weather.NormalizedSeries) *seriesEnvelope {
	if series == nil {
		return nil
	}
	return &seriesEnvelope{Properties: seriesProperties{Parameter: series}}
}

func validationError(err error) error {
	return &weather.ValidationError{Reason: err.Error()}
}
