package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/geomap/internal/adapters/geocoding"
	"github.com/samirrijal/geomap/internal/adapters/http"
	natsadapter "github.com/samirrijal/geomap/internal/adapters/nats"
	"github.com/samirrijal/geomap/internal/adapters/postgres"
	"github.com/samirrijal/geomap/internal/adapters/valkey"
	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/mapctl"
	"github.com/samirrijal/geomap/internal/pkg/config"
	"github.com/samirrijal/geomap/internal/pkg/logging"
	"github.com/samirrijal/geomap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geomap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "geomap:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	var (
		events      ports.EventPublisher
		submissions ports.SubmissionPublisher
	)
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		events, submissions = nc, nc
	}

	// Raw NATS connection for field session relays
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	host := postgres.NewHostRepo(db, cfg.Server.AppRoot, cfg.Geolocation.SummaryCards)
	widgetRepo := postgres.NewWidgetRepo(db)

	// Use cases
	settings := cfg.Geolocation.Settings()
	registry := usecases.NewAttributeRegistry(host)
	collector := usecases.NewLocationCollector(host, host, host, slog.Default())
	builder := usecases.NewMapConfigBuilder(settings, usecases.MapConfigDeps{
		Collector: collector,
		Registry:  registry,
		Formatter: host,
		Auth:      host,
		Localizer: usecases.EnglishDictionary(),
		AppRoot:   cfg.Server.AppRoot,
		Log:       slog.Default(),
	})
	locationSvc := usecases.NewLocationService(registry, host, cacheSvc, events, slog.Default())
	geocodeSvc := usecases.NewGeocodeService(geocoders(cfg), cacheSvc, usecases.GeocodeOptions{
		Default:       cfg.Geocoding.Default,
		RatePerSecond: cfg.Geocoding.RatePerSecond,
		CacheTTL:      cfg.Geocoding.CacheTTL,
	}, slog.Default())
	widgetSvc := usecases.NewWidgetService(widgetRepo, registry)

	fetcher := mapctl.NewHTTPFetcher(cfg.Geocoding.UserAgent, time.Duration(cfg.Geocoding.TimeoutSeconds)*time.Second)

	deps := &http.Dependencies{
		Builder:     builder,
		Registry:    registry,
		Locations:   locationSvc,
		Geocoding:   geocodeSvc,
		Widgets:     widgetSvc,
		Assets:      mapctl.NewAssets(fetcher),
		Fetcher:     fetcher,
		Submissions: submissions,
		NATS:        natsConn,
		DB:          db,
		Cache:       cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GeoMap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "provider", builder.Provider().Name)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// geocoders builds the server-side geocoders. Nominatim needs no key and
// is always present.
func geocoders(cfg *config.Config) []ports.Geocoder {
	timeout := time.Duration(cfg.Geocoding.TimeoutSeconds) * time.Second
	out := []ports.Geocoder{
		geocoding.NewNominatim(cfg.Geocoding.NominatimURL, cfg.Geocoding.UserAgent, timeout),
	}

	googleKey := cfg.Geocoding.GoogleAPIKey
	if googleKey == "" && cfg.Geolocation.Provider == domain.ProviderGoogleMaps {
		googleKey = cfg.Geolocation.APIKey
	}
	if googleKey != "" {
		out = append(out, geocoding.NewGoogle("", googleKey, "", timeout))
	}

	tilerKey := cfg.Geocoding.MapTilerAPIKey
	if tilerKey == "" && cfg.Geolocation.Provider == domain.ProviderMapTiler {
		tilerKey = cfg.Geolocation.APIKey
	}
	if tilerKey != "" {
		out = append(out, geocoding.NewMapTiler("", tilerKey, timeout))
	}
	return out
}
