package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
)

// WidgetService manages dashboard map definitions.
type WidgetService struct {
	widgets  ports.WidgetRepository
	registry *AttributeRegistry
}

// NewWidgetService creates a new WidgetService.
func NewWidgetService(widgets ports.WidgetRepository, registry *AttributeRegistry) *WidgetService {
	return &WidgetService{widgets: widgets, registry: registry}
}

// Get returns the widget definition, or the default definition when none
// has been saved yet.
func (s *WidgetService) Get(ctx context.Context, id string) (domain.Widget, error) {
	w, err := s.widgets.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewWidget(id), nil
	}
	if err != nil {
		return domain.Widget{}, fmt.Errorf("get widget %s: %w", id, err)
	}
	if w.Height <= 0 {
		w.Height = domain.DefaultWidgetHeight
	}
	if w.Query == "" {
		w.Query = domain.DefaultWidgetQuery
	}
	return *w, nil
}

// Save validates and stores w. It reports whether the definition form must
// be redrawn because the query now targets another class, in which case a
// stale attribute choice is cleared.
func (s *WidgetService) Save(ctx context.Context, w domain.Widget) (domain.Widget, bool, error) {
	q, err := domain.ParseQuery(w.Query)
	if err != nil {
		return domain.Widget{}, false, err
	}
	prev, err := s.Get(ctx, w.ID)
	if err != nil {
		return domain.Widget{}, false, err
	}
	redraw := NeedsRedraw(prev, w)

	if w.Attribute != "" {
		if _, err := s.registry.Geolocation(ctx, q.Class, w.Attribute); err != nil {
			if !redraw {
				return domain.Widget{}, false, err
			}
			w.Attribute = ""
		}
	}
	if w.Height <= 0 {
		w.Height = domain.DefaultWidgetHeight
	}
	if err := s.widgets.Save(ctx, &w); err != nil {
		return domain.Widget{}, false, fmt.Errorf("save widget %s: %w", w.ID, err)
	}
	return w, redraw, nil
}

// AttributeChoices lists the geolocation attributes selectable for the
// class targeted by query, keyed by code.
func (s *WidgetService) AttributeChoices(ctx context.Context, query string) (map[string]string, error) {
	q, err := domain.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	attrs, err := s.registry.GeolocationAttributes(ctx, q.Class)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[a.Code] = a.Label
	}
	return out, nil
}

// NeedsRedraw reports whether changing prev into next changes the class the
// query targets. Unparsable queries count as a change.
func NeedsRedraw(prev, next domain.Widget) bool {
	a, errA := domain.ParseQuery(prev.Query)
	b, errB := domain.ParseQuery(next.Query)
	if errA != nil || errB != nil {
		return true
	}
	return a.Class != b.Class
}
