package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/pkg/logging"
)

func pos(lat, lng float64) *domain.Coordinate {
	return &domain.Coordinate{Lat: lat, Lng: lng}
}

func TestLocationCollector_SkipsMissingCoordinatesInOrder(t *testing.T) {
	exec := &mockExecutor{
		executeFn: func(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
			if q.Class != "Location" || attribute != "position" {
				t.Errorf("unexpected query %+v / %s", q, attribute)
			}
			return []domain.Entity{
				entityAt("1", "Amsterdam", pos(52.3731, 4.8922)),
				entityAt("2", "Nowhere", nil),
				entityAt("3", "Rotterdam", pos(51.9225, 4.47917)),
				entityAt("4", "Utrecht", pos(52.0907, 5.1214)),
			}, nil
		},
	}
	c := usecases.NewLocationCollector(exec, &mockFormatter{}, nil, logging.Discard())

	records, err := c.Collect(context.Background(), domain.EntityQuery{Class: "Location"}, "position")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []string{"Amsterdam", "Rotterdam", "Utrecht"}
	for i, r := range records {
		if r.Title != want[i] {
			t.Errorf("record %d: expected %s, got %s", i, want[i], r.Title)
		}
	}
	if records[0].Tooltip != "<b>Amsterdam</b>" {
		t.Errorf("unexpected tooltip %q", records[0].Tooltip)
	}
	if records[2].Key != "4" {
		t.Errorf("expected key 4, got %s", records[2].Key)
	}
}

func TestLocationCollector_DropsFailedDelegate(t *testing.T) {
	exec := &mockExecutor{
		executeFn: func(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
			return []domain.Entity{
				entityAt("1", "ok", pos(1, 1)),
				entityAt("2", "broken", pos(2, 2)),
				entityAt("3", "ok too", pos(3, 3)),
			}, nil
		},
	}
	formatter := &mockFormatter{
		nameFn: func(ctx context.Context, e domain.Entity) (string, error) {
			if e.Ref.Key == "2" {
				return "", errors.New("access denied")
			}
			return e.Name, nil
		},
	}
	c := usecases.NewLocationCollector(exec, formatter, nil, logging.Discard())

	records, err := c.Collect(context.Background(), domain.EntityQuery{Class: "Location"}, "position")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Key != "1" || records[1].Key != "3" {
		t.Errorf("unexpected keys %s, %s", records[0].Key, records[1].Key)
	}
}

func TestLocationCollector_QueryFailure(t *testing.T) {
	exec := &mockExecutor{
		executeFn: func(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := usecases.NewLocationCollector(exec, &mockFormatter{}, nil, logging.Discard())
	if _, err := c.Collect(context.Background(), domain.EntityQuery{Class: "Location"}, "position"); err == nil {
		t.Error("expected error")
	}
}

func TestLocationCollector_SummarySuppressesTooltip(t *testing.T) {
	exec := &mockExecutor{
		executeFn: func(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
			return []domain.Entity{entityAt("7", "Depot", pos(52, 5))}, nil
		},
	}
	tooltipCalled := false
	formatter := &mockFormatter{
		tooltipFn: func(ctx context.Context, e domain.Entity) (string, error) {
			tooltipCalled = true
			return "tip", nil
		},
	}
	summaries := &mockSummaries{
		summaryFn: func(ctx context.Context, e domain.Entity) (string, error) {
			return "/summary/" + e.Ref.Key, nil
		},
	}
	c := usecases.NewLocationCollector(exec, formatter, summaries, logging.Discard())

	records, err := c.Collect(context.Background(), domain.EntityQuery{Class: "Location"}, "position")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Summary != "/summary/7" {
		t.Errorf("unexpected summary %q", records[0].Summary)
	}
	if records[0].Tooltip != "" || tooltipCalled {
		t.Error("tooltip must not be resolved when a summary is available")
	}
}
