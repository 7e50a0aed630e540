package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/pkg/metrics"
	"github.com/samirrijal/geomap/internal/pkg/telemetry"
)

const valueCacheTTL = 600

// LocationService reads and writes the geolocation attributes of single
// entities and announces changes.
type LocationService struct {
	registry  *AttributeRegistry
	entities  ports.EntityRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// NewLocationService creates a new LocationService. cache and publisher may
// be nil.
func NewLocationService(
	registry *AttributeRegistry,
	entities ports.EntityRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	log *slog.Logger,
) *LocationService {
	if log == nil {
		log = slog.Default()
	}
	return &LocationService{
		registry:  registry,
		entities:  entities,
		cache:     cache,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

func valueCacheKey(ref domain.EntityRef, code string) string {
	return "geo:value:" + ref.String() + ":" + code
}

// Attribute resolves the geolocation attribute code of ref's class.
func (s *LocationService) Attribute(ctx context.Context, class, code string) (domain.AttributeSchema, error) {
	return s.registry.Geolocation(ctx, class, code)
}

// Get returns the attribute schema and current value. A nil value means the
// entity has no location.
func (s *LocationService) Get(ctx context.Context, ref domain.EntityRef, code string) (domain.AttributeSchema, *domain.Coordinate, error) {
	attr, err := s.registry.Geolocation(ctx, ref.Class, code)
	if err != nil {
		return domain.AttributeSchema{}, nil, err
	}

	key := valueCacheKey(ref, code)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var v struct{ Value *domain.Coordinate }
			if err := json.Unmarshal(data, &v); err == nil {
				metrics.CacheHits.WithLabelValues("value").Inc()
				return attr, v.Value, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("value").Inc()
	}

	value, err := s.entities.GetCoordinate(ctx, ref, attr)
	if err != nil {
		return domain.AttributeSchema{}, nil, fmt.Errorf("get %s.%s: %w", ref, code, err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(struct{ Value *domain.Coordinate }{value}); err == nil {
			_ = s.cache.Set(ctx, key, data, valueCacheTTL)
		}
	}
	return attr, value, nil
}

// Prepare validates submitted text and builds the change event without
// persisting it. Empty text clears the value.
func (s *LocationService) Prepare(ctx context.Context, ref domain.EntityRef, code, text string) (*domain.LocationChanged, error) {
	attr, err := s.registry.Geolocation(ctx, ref.Class, code)
	if err != nil {
		return nil, err
	}
	if err := attr.Validate(text); err != nil {
		metrics.LocationUpdates.WithLabelValues("invalid").Inc()
		return nil, err
	}
	ev := &domain.LocationChanged{
		Entity:    ref,
		Attribute: code,
		Value:     attr.MakeValue(text),
		ChangedAt: s.now().UTC(),
	}
	if ev.Value != nil {
		rd := ev.Value.ToRD()
		ev.RD = &rd
	}
	return ev, nil
}

// Snapshot reads the stored value of the attribute, bypassing the cache,
// as an event that restores it when persisted.
func (s *LocationService) Snapshot(ctx context.Context, ref domain.EntityRef, code string) (*domain.LocationChanged, error) {
	attr, err := s.registry.Geolocation(ctx, ref.Class, code)
	if err != nil {
		return nil, err
	}
	value, err := s.entities.GetCoordinate(ctx, ref, attr)
	if err != nil {
		return nil, fmt.Errorf("get %s.%s: %w", ref, code, err)
	}
	ev := &domain.LocationChanged{Entity: ref, Attribute: code, Value: value, ChangedAt: s.now().UTC()}
	if value != nil {
		rd := value.ToRD()
		ev.RD = &rd
	}
	return ev, nil
}

// Persist stores the value carried by ev.
func (s *LocationService) Persist(ctx context.Context, ev *domain.LocationChanged) error {
	ctx, span := telemetry.Start(ctx, telemetry.SpanSetCoordinate,
		attributeKV("entity", ev.Entity.String()), attributeKV("attribute", ev.Attribute))
	defer span.End()

	attr, err := s.registry.Geolocation(ctx, ev.Entity.Class, ev.Attribute)
	if err != nil {
		return err
	}
	if err := s.entities.SetCoordinate(ctx, ev.Entity, attr, ev.Value); err != nil {
		metrics.LocationUpdates.WithLabelValues("failed").Inc()
		return fmt.Errorf("set %s.%s: %w", ev.Entity, ev.Attribute, err)
	}
	return nil
}

// Invalidate drops the cached value of ev's attribute.
func (s *LocationService) Invalidate(ctx context.Context, ev *domain.LocationChanged) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, valueCacheKey(ev.Entity, ev.Attribute))
}

// Publish announces ev. Publish failures are logged; the value is already
// stored.
func (s *LocationService) Publish(ctx context.Context, ev *domain.LocationChanged) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishLocationChanged(ctx, ev); err != nil {
		s.log.Warn("publish location change failed", "entity", ev.Entity.String(), "attribute", ev.Attribute, "error", err)
		return err
	}
	return nil
}

// SetText validates, stores and announces a new value for the attribute.
func (s *LocationService) SetText(ctx context.Context, ref domain.EntityRef, code, text string) (*domain.LocationChanged, error) {
	ev, err := s.Prepare(ctx, ref, code, text)
	if err != nil {
		return nil, err
	}
	if err := s.Persist(ctx, ev); err != nil {
		return nil, err
	}
	if err := s.Invalidate(ctx, ev); err != nil {
		s.log.Warn("cache invalidation failed", "entity", ref.String(), "error", err)
	}
	_ = s.Publish(ctx, ev)

	metrics.LocationUpdates.WithLabelValues("stored").Inc()
	return ev, nil
}

// Render returns the value of ref's attribute formatted for a template verb.
func (s *LocationService) Render(ctx context.Context, builder *MapConfigBuilder, ref domain.EntityRef, code, verb string) (string, error) {
	attr, value, err := s.Get(ctx, ref, code)
	if err != nil {
		return "", err
	}
	return builder.RenderTemplate(attr, value, verb)
}

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrFormat) || errors.Is(err, domain.ErrNotGeolocation)
}
