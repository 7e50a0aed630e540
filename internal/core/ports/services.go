package ports

import (
	"context"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// DisplayFormatter renders host entities for map labels and tooltips.
type DisplayFormatter interface {
	Name(ctx context.Context, e domain.Entity) (string, error)
	Icon(ctx context.Context, e domain.Entity) (string, error)
	// Tooltip returns trusted HTML.
	Tooltip(ctx context.Context, e domain.Entity) (string, error)
	ClassLabel(ctx context.Context, class string) (string, error)
	ClassIcon(ctx context.Context, class string) (string, error)
}

// Authorizer answers the host's create permission check.
type Authorizer interface {
	CanCreate(ctx context.Context, class string) (bool, error)
}

// SummaryResolver returns the summary panel URL of an entity, or "" when
// the host does not offer summaries for its class.
type SummaryResolver interface {
	SummaryURL(ctx context.Context, e domain.Entity) (string, error)
}

// Localizer looks up dictionary entries.
type Localizer interface {
	Translate(key string, args ...any) string
}

// EventPublisher publishes location change events to a message broker.
type EventPublisher interface {
	PublishLocationChanged(ctx context.Context, event *domain.LocationChanged) error
}

// SubmissionPublisher queues asynchronous location writes.
type SubmissionPublisher interface {
	SubmitLocation(ctx context.Context, sub *domain.LocationSubmission) error
}

// SubmissionSubscriber consumes queued location writes.
type SubmissionSubscriber interface {
	SubscribeSubmissions(ctx context.Context, handler func(ctx context.Context, sub *domain.LocationSubmission) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves an address to a position. bias may be zero.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error)
}
