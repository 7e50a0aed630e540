package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// --- Mock QueryExecutor ---

type mockExecutor struct {
	executeFn func(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error)
}

func (m *mockExecutor) Execute(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, q, attribute)
	}
	return nil, nil
}

// --- Mock DisplayFormatter ---

type mockFormatter struct {
	nameFn       func(ctx context.Context, e domain.Entity) (string, error)
	tooltipFn    func(ctx context.Context, e domain.Entity) (string, error)
	classLabelFn func(ctx context.Context, class string) (string, error)
}

func (m *mockFormatter) Name(ctx context.Context, e domain.Entity) (string, error) {
	if m.nameFn != nil {
		return m.nameFn(ctx, e)
	}
	return e.Name, nil
}

func (m *mockFormatter) Icon(ctx context.Context, e domain.Entity) (string, error) {
	return e.Icon, nil
}

func (m *mockFormatter) Tooltip(ctx context.Context, e domain.Entity) (string, error) {
	if m.tooltipFn != nil {
		return m.tooltipFn(ctx, e)
	}
	return "<b>" + e.Name + "</b>", nil
}

func (m *mockFormatter) ClassLabel(ctx context.Context, class string) (string, error) {
	if m.classLabelFn != nil {
		return m.classLabelFn(ctx, class)
	}
	return class, nil
}

func (m *mockFormatter) ClassIcon(ctx context.Context, class string) (string, error) {
	return "/icons/" + class + ".svg", nil
}

// --- Mock SummaryResolver ---

type mockSummaries struct {
	summaryFn func(ctx context.Context, e domain.Entity) (string, error)
}

func (m *mockSummaries) SummaryURL(ctx context.Context, e domain.Entity) (string, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, e)
	}
	return "", nil
}

// --- Mock Authorizer ---

type mockAuth struct {
	allowed bool
	err     error
}

func (m *mockAuth) CanCreate(ctx context.Context, class string) (bool, error) {
	return m.allowed, m.err
}

// --- Mock SchemaSource ---

type mockSchema struct {
	calls  int
	listFn func(ctx context.Context, class string) ([]domain.AttributeSchema, error)
}

func (m *mockSchema) ListAttributes(ctx context.Context, class string) ([]domain.AttributeSchema, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx, class)
	}
	return []domain.AttributeSchema{
		{Code: "name", Label: "Name", Capabilities: domain.CapList},
		{Code: "position", Label: "Position", Capabilities: domain.CapGeolocation},
		{Code: "entrance", Label: "Entrance", Capabilities: domain.CapGeolocation},
	}, nil
}

// --- Mock EntityRepository ---

type mockEntities struct {
	getFn func(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema) (*domain.Coordinate, error)
	setFn func(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema, value *domain.Coordinate) error
}

func (m *mockEntities) GetCoordinate(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema) (*domain.Coordinate, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ref, attr)
	}
	return nil, nil
}

func (m *mockEntities) SetCoordinate(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema, value *domain.Coordinate) error {
	if m.setFn != nil {
		return m.setFn(ctx, ref, attr, value)
	}
	return nil
}

// --- Mock WidgetRepository ---

type mockWidgets struct {
	stored map[string]domain.Widget
}

func (m *mockWidgets) Get(ctx context.Context, id string) (*domain.Widget, error) {
	w, ok := m.stored[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &w, nil
}

func (m *mockWidgets) Save(ctx context.Context, w *domain.Widget) error {
	if m.stored == nil {
		m.stored = map[string]domain.Widget{}
	}
	m.stored[w.ID] = *w
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	events []*domain.LocationChanged
	err    error
}

func (m *mockPublisher) PublishLocationChanged(ctx context.Context, ev *domain.LocationChanged) error {
	m.events = append(m.events, ev)
	return m.err
}

// --- In-memory CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	name      string
	mu        sync.Mutex
	calls     int
	geocodeFn func(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error)
}

func (m *mockGeocoder) Name() string { return m.name }

func (m *mockGeocoder) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, address, bias)
	}
	return domain.GeocodeResult{Position: domain.Coordinate{Lat: 52.3731, Lng: 4.8922}}, nil
}

func entityAt(key, name string, pos *domain.Coordinate) domain.Entity {
	e := domain.Entity{Ref: domain.EntityRef{Class: "Location", Key: key}, Name: name}
	if pos != nil {
		e.Coordinates = map[string]domain.Coordinate{"position": *pos}
	}
	return e
}
