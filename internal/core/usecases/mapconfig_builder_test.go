package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/usecases"
	"github.com/samirrijal/geomap/internal/pkg/logging"
)

func testSettings(provider, key string) domain.Settings {
	return domain.Settings{
		Provider:           provider,
		APIKey:             key,
		DefaultCenter:      domain.Coordinate{Lat: 45.157389, Lng: 5.748830},
		DefaultZoom:        17,
		DisplayCoordinates: true,
		Precision:          6,
	}
}

func newBuilder(settings domain.Settings, auth *mockAuth) *usecases.MapConfigBuilder {
	exec := &mockExecutor{
		executeFn: func(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
			return []domain.Entity{
				entityAt("1", "Amsterdam", pos(52.3731, 4.8922)),
				entityAt("2", "Nowhere", nil),
			}, nil
		},
	}
	formatter := &mockFormatter{
		classLabelFn: func(ctx context.Context, class string) (string, error) {
			return "Site", nil
		},
	}
	log := logging.Discard()
	return usecases.NewMapConfigBuilder(settings, usecases.MapConfigDeps{
		Collector: usecases.NewLocationCollector(exec, formatter, nil, log),
		Registry:  usecases.NewAttributeRegistry(&mockSchema{}),
		Formatter: formatter,
		Auth:      auth,
		AppRoot:   "https://itop.example/",
		Log:       log,
	})
}

func TestMapConfigBuilder_BuildWidget_Google(t *testing.T) {
	b := newBuilder(testSettings(domain.ProviderGoogleMaps, "KEY"), &mockAuth{allowed: true})

	cfg, err := b.BuildWidget(context.Background(), domain.NewWidget("42"), "FR FR", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ID != "map_42" {
		t.Errorf("expected id map_42, got %s", cfg.ID)
	}
	if cfg.Provider.Kind != domain.KindGoogle {
		t.Errorf("expected google provider, got %s", cfg.Provider.Kind)
	}
	if cfg.Height != domain.DefaultWidgetHeight {
		t.Errorf("expected default height, got %d", cfg.Height)
	}
	if cfg.Zoom != 17 || cfg.Center.Lat != 45.157389 {
		t.Errorf("expected default view, got %v @ %d", cfg.Center, cfg.Zoom)
	}
	if len(cfg.Locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(cfg.Locations))
	}
	if cfg.Create == nil {
		t.Fatal("expected a create affordance")
	}
	want := "https://itop.example/pages/UI.php?operation=new&class=Location&default[position]="
	if cfg.Create.URLTemplate != want {
		t.Errorf("expected %s, got %s", want, cfg.Create.URLTemplate)
	}
	if cfg.Create.Label != "Click to create a new Site" {
		t.Errorf("unexpected label %q", cfg.Create.Label)
	}
	if len(cfg.Scripts) != 1 || !strings.Contains(cfg.Scripts[0], "language=fr") {
		t.Errorf("unexpected scripts %v", cfg.Scripts)
	}
}

func TestMapConfigBuilder_BuildWidget_NoCreatePermission(t *testing.T) {
	b := newBuilder(testSettings(domain.ProviderOpenStreetMap, ""), &mockAuth{allowed: false})

	cfg, err := b.BuildWidget(context.Background(), domain.NewWidget("1"), "EN US", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Create != nil {
		t.Error("create affordance must be omitted without permission")
	}
	if cfg.ID != "map_1_edit" {
		t.Errorf("expected edit id, got %s", cfg.ID)
	}
	if cfg.Provider.Kind != domain.KindVectorTile || cfg.Provider.Style == nil {
		t.Errorf("expected vector tile provider with style, got %+v", cfg.Provider)
	}
	if len(cfg.Stylesheets) != 1 {
		t.Errorf("expected maplibre stylesheet, got %v", cfg.Stylesheets)
	}
}

func TestMapConfigBuilder_BuildWidget_PermissionErrorOmitsCreate(t *testing.T) {
	b := newBuilder(testSettings(domain.ProviderGoogleMaps, "KEY"), &mockAuth{allowed: true, err: errors.New("boom")})
	cfg, err := b.BuildWidget(context.Background(), domain.NewWidget("1"), "EN US", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Create != nil {
		t.Error("create affordance must be omitted when the permission check fails")
	}
}

func TestMapConfigBuilder_UnconfiguredProviderDegrades(t *testing.T) {
	for _, name := range []string{domain.ProviderGoogleMaps, "Bing"} {
		b := newBuilder(testSettings(name, ""), &mockAuth{})
		cfg, err := b.BuildWidget(context.Background(), domain.NewWidget("1"), "EN US", false)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if cfg.Provider.Interactive() {
			t.Errorf("%s: expected static-only payload, got %s", name, cfg.Provider.Kind)
		}
		if len(cfg.Scripts) != 0 {
			t.Errorf("%s: static payload must not load scripts", name)
		}
	}
}

func TestMapConfigBuilder_BuildWidget_BadQuery(t *testing.T) {
	b := newBuilder(testSettings(domain.ProviderGoogleMaps, "KEY"), &mockAuth{})
	w := domain.NewWidget("1")
	w.Query = "DELETE Location"
	_, err := b.BuildWidget(context.Background(), w, "EN US", false)
	if !errors.Is(err, domain.ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestMapConfigBuilder_BuildField(t *testing.T) {
	b := newBuilder(testSettings(domain.ProviderGoogleMaps, "KEY"), &mockAuth{})
	attr := domain.AttributeSchema{Class: "Location", Code: "position", DisplayRawText: true, Capabilities: domain.CapGeolocation}

	p := b.BuildField(context.Background(), "field_position", attr, pos(52.3731, 4.8922), "EN US")
	if p.Value != "52.373100,4.892200" {
		t.Errorf("unexpected value %q", p.Value)
	}
	if p.Attribute.Width != domain.DefaultWidth || p.Attribute.Height != domain.DefaultHeight || !p.Attribute.Display {
		t.Errorf("unexpected attribute %+v", p.Attribute)
	}
	if !strings.HasPrefix(p.Fallback, "https://maps.googleapis.com/maps/api/staticmap") {
		t.Errorf("unexpected fallback %q", p.Fallback)
	}

	empty := b.BuildField(context.Background(), "field_position", attr, nil, "EN US")
	if empty.Value != "" || empty.Fallback != "" {
		t.Errorf("expected empty field payload, got %+v", empty)
	}
}

func TestMapConfigBuilder_RenderTemplate(t *testing.T) {
	b := newBuilder(testSettings("none", ""), &mockAuth{})
	attr := domain.AttributeSchema{Code: "position", Capabilities: domain.CapGeolocation}
	c := pos(52.1551744, 5.38720621)

	got, err := b.RenderTemplate(attr, c, "rd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "155000.000000,463000.000000" {
		t.Errorf("unexpected rd %q", got)
	}
	csv, _ := b.RenderTemplate(attr, c, "csv")
	if csv != `"52.155174,5.387206"` {
		t.Errorf("unexpected csv %q", csv)
	}
	html, _ := b.RenderTemplate(attr, nil, "html")
	if html != "<em>undefined</em>" {
		t.Errorf("unexpected html %q", html)
	}
}
