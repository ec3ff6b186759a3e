package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/i474232898/ecosync/internal/ai"
	httpapi "github.com/i474232898/ecosync/internal/api/http"
	"github.com/i474232898/ecosync/internal/config"
	"github.com/i474232898/ecosync/internal/observability"
	"github.com/i474232898/ecosync/internal/scheduler"
	"github.com/i474232898/ecosync/internal/session"
	"github.com/i474232898/ecosync/internal/store"
	"github.com/i474232898/ecosync/internal/viz"
	"github.com/i474232898/ecosync/internal/weather"
	"github.com/i474232898/ecosync/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewCollector(registry)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var provider weather.Provider
	switch cfg.Provider {
	case config.ProviderOpenMeteo:
		provider = providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoBaseURL, cfg.ProviderMaxRetries)
	default:
		provider = providers.NewPowerProvider(httpClient, cfg.PowerBaseURL, cfg.ProviderMaxRetries)
	}
	gateway := weather.NewGateway(provider,
		weather.WithMetrics(metrics),
		weather.WithRegionalGrid(cfg.RegionalGridSize, cfg.RegionalConcurrency),
	)

	var geocoder weather.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geocoder = weather.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}
	resolver := weather.NewCityResolver(cfg.Cities, geocoder)

	var model ai.Model
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiModel(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("WARN: language model disabled: %v", err)
		} else {
			model = gemini
		}
	} else {
		log.Printf("WARN: GEMINI_API_KEY not set; query interpretation will answer 502")
	}
	interpreter := ai.NewInterpreter(model, gateway, cfg.Cities, ai.WithMetrics(metrics))

	sessions := session.NewManager(session.Config{
		Fetcher:      gateway,
		Resolver:     resolver,
		Sampler:      viz.NewSampler(nil),
		Metrics:      metrics,
		FetchTimeout: cfg.SessionFetchTimeout,
	})

	var history store.Store
	switch cfg.QueryStore {
	case config.StoreSQLite:
		history, err = store.NewSQLiteStore(cfg.QueryDBPath)
		if err != nil {
			log.Fatalf("failed to open query store: %v", err)
		}
	default:
		history = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}
	defer history.Close()

	// Housekeeping: prune history and evict idle sessions.
	sched := scheduler.New(scheduler.Config{
		Interval:   cfg.HousekeepingInterval,
		HistoryAge: cfg.StoreMaxAge,
		SessionTTL: cfg.SessionIdleTTL,
	}, history, sessions)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "ecosync",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 30*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Gateway:     gateway,
		Interpreter: interpreter,
		Cities:      cfg.Cities,
		Sessions:    sessions,
		History:     history,
		Metrics:     metrics,
	})

	go func() {
		log.Printf("INFO: ecosync listening on :%s (provider %s)", cfg.Port, gateway.ProviderName())
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	sessions.Wait()
}
