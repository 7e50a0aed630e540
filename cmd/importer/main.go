package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/geomap/internal/adapters/nats"
	"github.com/samirrijal/geomap/internal/adapters/postgres"
	"github.com/samirrijal/geomap/internal/adapters/valkey"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/pkg/config"
	"github.com/samirrijal/geomap/internal/pkg/logging"
)

// importer loads coordinates from a CSV file with a key column and a
// column named after the attribute code:
//
//	importer Location position locations.csv
func main() {
	if len(os.Args) < 4 {
		log.Fatal("usage: importer <class> <attribute> <file.csv>")
	}
	class, code, path := os.Args[1], os.Args[2], os.Args[3]

	cfg, err := config.Load("geomap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr, "geomap:"); err != nil {
		slog.Warn("valkey unavailable, cached values expire on their own", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, changes are not announced", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	host := postgres.NewHostRepo(db, cfg.Server.AppRoot, cfg.Geolocation.SummaryCards)
	locations := usecases.NewLocationService(usecases.NewAttributeRegistry(host), host, cacheSvc, events, slog.Default())
	importer := usecases.NewLocationImporter(locations, slog.Default())

	slog.Info("importing", "class", class, "attribute", code, "file", path)
	report, err := importer.Import(ctx, f, class, code)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	for _, rej := range report.Rejected {
		slog.Warn("row rejected", "line", rej.Line, "key", rej.Key, "error", rej.Err)
	}
	slog.Info("import complete",
		"rows", report.Rows,
		"stored", report.Stored,
		"cleared", report.Cleared,
		"rejected", len(report.Rejected),
	)
}
