package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geomap/internal/adapters/postgres"
	"github.com/samirrijal/geomap/internal/adapters/valkey"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/mapctl"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Builder   *usecases.MapConfigBuilder
	Registry  *usecases.AttributeRegistry
	Locations *usecases.LocationService
	Geocoding *usecases.GeocodeService
	Widgets   *usecases.WidgetService
	// Assets is shared by every map session so provider scripts and styles
	// are fetched at most once per process.
	Assets  *mapctl.Assets
	Fetcher mapctl.Fetcher
	// Submissions queues ?async=true field writes; nil disables them.
	Submissions ports.SubmissionPublisher
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
}
