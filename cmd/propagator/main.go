package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/geomap/internal/adapters/nats"
	"github.com/samirrijal/geomap/internal/adapters/postgres"
	"github.com/samirrijal/geomap/internal/adapters/valkey"
	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/pkg/config"
	"github.com/samirrijal/geomap/internal/pkg/logging"
	"github.com/samirrijal/geomap/internal/pkg/telemetry"
	"github.com/samirrijal/geomap/internal/workflows"
)

func main() {
	cfg, err := config.Load("geomap-propagator")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "geomap:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	host := postgres.NewHostRepo(db, cfg.Server.AppRoot, cfg.Geolocation.SummaryCards)
	registry := usecases.NewAttributeRegistry(host)
	locations := usecases.NewLocationService(registry, host, cacheSvc, pub, slog.Default())

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.PropagateLocationWorkflow)
	w.RegisterActivity(&workflows.LocationActivities{Locations: locations})

	// Each queued submission runs as one workflow. The subscription callback
	// waits for it, so submissions are applied in arrival order.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "geomap-propagator")
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeSubmissions(ctx, func(ctx context.Context, s *domain.LocationSubmission) error {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflows.WorkflowID(*s),
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.PropagateLocationWorkflow, *s)
		if err != nil {
			return err
		}
		// The workflow already retried; a failed run is logged, not redelivered.
		if err := run.Get(ctx, nil); err != nil {
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.Type() == workflows.ErrTypeRejected {
				slog.Warn("submission rejected", "entity", s.Entity.String(), "attribute", s.Attribute, "error", err)
			} else {
				slog.Error("propagation failed", "workflow", run.GetID(), "error", err)
			}
			return nil
		}
		slog.Info("location propagated", "workflow", run.GetID(), "entity", s.Entity.String())
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe submissions: %v", err)
	}

	slog.Info("propagator worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
