//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/geomap/internal/adapters/http"
	"github.com/samirrijal/geomap/internal/adapters/postgres"
	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/pkg/config"
)

// setupTestDB connects to the migrated test database.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("geomap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// setupTestDeps creates dependencies with real DB and repos, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	host := postgres.NewHostRepo(db, "https://itop.example/", false)
	registry := usecases.NewAttributeRegistry(host)
	builder := usecases.NewMapConfigBuilder(testSettings, usecases.MapConfigDeps{
		Collector: usecases.NewLocationCollector(host, host, host, nil),
		Registry:  registry,
		Formatter: host,
		Auth:      host,
		AppRoot:   "https://itop.example/",
	})

	return &http.Dependencies{
		Builder:   builder,
		Registry:  registry,
		Locations: usecases.NewLocationService(registry, host, nil, nil, nil),
		Geocoding: usecases.NewGeocodeService([]ports.Geocoder{&fakeGeocoder{}}, nil, usecases.GeocodeOptions{}, nil),
		Widgets:   usecases.NewWidgetService(postgres.NewWidgetRepo(db), registry),
		DB:        db,
	}
}

// seedLocation inserts a location and returns its key.
func seedLocation(t *testing.T, db *postgres.DB, name string, pos *domain.Coordinate) string {
	var lat, lng *float64
	if pos != nil {
		lat, lng = &pos.Lat, &pos.Lng
	}
	var id string
	if err := db.Pool.QueryRow(context.Background(), `
		INSERT INTO location (name, city, position_lat, position_lng)
		VALUES ($1, 'Amsterdam', $2, $3)
		RETURNING id::text
	`, name, lat, lng).Scan(&id); err != nil {
		t.Fatalf("seed location: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM location WHERE id = $1::bigint`, id)
	})
	return id
}

func TestFieldRoundTrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	key := seedLocation(t, db, "Integration office", nil)
	app := setupApp(setupTestDeps(t, db))

	req := httptest.NewRequest("PUT", "/v1/entities/Location/"+key+"/fields/position", strings.NewReader(`{"value":"52.3731,4.8922"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/entities/Location/"+key+"/fields/position/edit", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	var p domain.FieldEditPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Value != "52.373100,4.892200" {
		t.Errorf("expected stored value, got %q", p.Value)
	}
	if p.Attribute.Width != 400 || p.Attribute.Height != 300 {
		t.Errorf("expected schema size 400x300, got %+v", p.Attribute)
	}
}

func TestWidgetMap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	located := seedLocation(t, db, "Located", &domain.Coordinate{Lat: 51.9225, Lng: 4.47917})
	seedLocation(t, db, "Nowhere", nil)
	app := setupApp(setupTestDeps(t, db))

	widgetID := "it_" + time.Now().Format("20060102150405")
	body := `{"height":500,"search":true,"query":"SELECT Location WHERE city = 'Amsterdam'","attribute":"position"}`
	req := httptest.NewRequest("PUT", "/v1/widgets/"+widgetID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM widgets WHERE id = $1`, widgetID)
	})

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/widgets/"+widgetID+"/map", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	var cfg domain.MapConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	found := false
	for _, r := range cfg.Locations {
		if r.Key == located {
			found = true
			if !strings.Contains(r.Tooltip, "Located") {
				t.Errorf("expected tooltip with the name, got %s", r.Tooltip)
			}
		}
		if r.Title == "Nowhere" {
			t.Error("entity without a location must be skipped")
		}
	}
	if !found {
		t.Errorf("location %s missing from %+v", located, cfg.Locations)
	}
	if cfg.Height != 500 || !cfg.SearchEnabled {
		t.Errorf("widget settings not applied: height=%d search=%v", cfg.Height, cfg.SearchEnabled)
	}
}
