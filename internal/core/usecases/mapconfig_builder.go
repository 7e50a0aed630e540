package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/pkg/metrics"
	"github.com/samirrijal/geomap/internal/pkg/telemetry"
)

// MapConfigBuilder assembles render payloads from the module settings and
// per-widget overrides.
type MapConfigBuilder struct {
	settings  domain.Settings
	provider  domain.ProviderSpec
	collector *LocationCollector
	registry  *AttributeRegistry
	formatter ports.DisplayFormatter
	auth      ports.Authorizer
	loc       ports.Localizer
	appRoot   string
	log       *slog.Logger
}

// MapConfigDeps groups the collaborators of a MapConfigBuilder.
type MapConfigDeps struct {
	Collector *LocationCollector
	Registry  *AttributeRegistry
	Formatter ports.DisplayFormatter
	Auth      ports.Authorizer
	Localizer ports.Localizer
	AppRoot   string
	Log       *slog.Logger
}

// NewMapConfigBuilder resolves the provider once. A provider that cannot
// run interactively is logged and the builder produces static payloads.
func NewMapConfigBuilder(settings domain.Settings, deps MapConfigDeps) *MapConfigBuilder {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	loc := deps.Localizer
	if loc == nil {
		loc = EnglishDictionary()
	}
	spec, err := domain.ResolveProvider(settings.Provider, settings.APIKey, settings.Style)
	if err != nil {
		log.Warn("interactive map disabled", "provider", settings.Provider, "error", err)
	}
	return &MapConfigBuilder{
		settings:  settings,
		provider:  spec,
		collector: deps.Collector,
		registry:  deps.Registry,
		formatter: deps.Formatter,
		auth:      deps.Auth,
		loc:       loc,
		appRoot:   deps.AppRoot,
		log:       log,
	}
}

// Provider returns the resolved provider.
func (b *MapConfigBuilder) Provider() domain.ProviderSpec { return b.provider }

// Settings returns the module settings the builder was created with.
func (b *MapConfigBuilder) Settings() domain.Settings { return b.settings }

// Assets returns the scripts and stylesheets the client must load for the
// provider, given the user's language.
func (b *MapConfigBuilder) Assets(userLanguage string) (scripts, stylesheets []string) {
	switch b.provider.Kind {
	case domain.KindGoogle:
		return []string{domain.GoogleScriptURL(b.provider.APIKey, userLanguage)}, nil
	case domain.KindVectorTile:
		return []string{domain.MapLibreScriptURL}, []string{domain.MapLibreStylesheetURL}
	default:
		return nil, nil
	}
}

// BuildWidget builds the payload of a dashboard map. editMode marks the
// dashboard designer, which gets a distinct element id.
func (b *MapConfigBuilder) BuildWidget(ctx context.Context, w domain.Widget, userLanguage string, editMode bool) (domain.MapConfig, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanBuildWidget, attributeKV("widget", w.ID))
	defer span.End()

	q, err := domain.ParseQuery(w.Query)
	if err != nil {
		return domain.MapConfig{}, fmt.Errorf("widget %s: %w", w.ID, err)
	}

	attribute := w.Attribute
	if attribute == "" {
		attrs, err := b.registry.GeolocationAttributes(ctx, q.Class)
		if err != nil {
			return domain.MapConfig{}, fmt.Errorf("widget %s: %w", w.ID, err)
		}
		if len(attrs) > 0 {
			attribute = attrs[0].Code
		}
	}

	height := w.Height
	if height <= 0 {
		height = domain.DefaultWidgetHeight
	}
	id := "map_" + w.ID
	if editMode {
		id += "_edit"
	}

	cfg := domain.MapConfig{
		ID:            id,
		Provider:      b.provider,
		Center:        b.settings.DefaultCenter,
		Zoom:          b.settings.DefaultZoom,
		Height:        height,
		Locations:     []domain.LocationRecord{},
		SearchEnabled: w.Search,
	}
	cfg.Scripts, cfg.Stylesheets = b.Assets(userLanguage)

	if attribute != "" {
		records, err := b.collector.Collect(ctx, q, attribute)
		if err != nil {
			return domain.MapConfig{}, fmt.Errorf("widget %s: %w", w.ID, err)
		}
		cfg.Locations = records
	}

	cfg.ClassLabel = b.classLabel(ctx, q.Class)
	cfg.ClassIcon = b.classIcon(ctx, q.Class)

	if attribute != "" && b.canCreate(ctx, q.Class) {
		cfg.Create = &domain.CreateAffordance{
			URLTemplate: b.createURLTemplate(q.Class, attribute),
			Label:       b.loc.Translate(MsgClickToCreate, cfg.ClassLabel),
		}
	}

	metrics.PayloadsBuilt.WithLabelValues(b.provider.Kind.String(), "widget").Inc()
	return cfg, nil
}

// BuildField builds the payload of the map next to an editable field.
func (b *MapConfigBuilder) BuildField(ctx context.Context, id string, attr domain.AttributeSchema, value *domain.Coordinate, userLanguage string) domain.FieldEditPayload {
	_, span := telemetry.Start(ctx, telemetry.SpanBuildField, attributeKV("attribute", attr.Code))
	defer span.End()

	p := domain.FieldEditPayload{
		ID: id,
		Attribute: domain.FieldAttribute{
			Code:    attr.Code,
			Width:   attr.WidthPx(),
			Height:  attr.HeightPx(),
			Display: attr.DisplayRawText,
		},
		Provider: b.provider,
		Center:   b.settings.DefaultCenter,
		Zoom:     b.settings.DefaultZoom,
		Value:    attr.EditValue(value),
	}
	if value != nil {
		if u, ok := b.StaticMapURL(attr, *value); ok {
			p.Fallback = u
		}
	}
	p.Scripts, p.Stylesheets = b.Assets(userLanguage)

	metrics.PayloadsBuilt.WithLabelValues(b.provider.Kind.String(), "field").Inc()
	return p
}

// StaticMapURL returns the static map image of c sized for attr.
func (b *MapConfigBuilder) StaticMapURL(attr domain.AttributeSchema, c domain.Coordinate) (string, bool) {
	return attr.StaticMapURL(c, b.settings.StaticMap())
}

// RenderHTML renders the read-only HTML of a value.
func (b *MapConfigBuilder) RenderHTML(attr domain.AttributeSchema, c *domain.Coordinate) string {
	return attr.AsHTML(c, b.htmlOptions(attr, c))
}

// RenderTemplate renders a value for a template verb; "csv" renders the
// export form with a comma separator.
func (b *MapConfigBuilder) RenderTemplate(attr domain.AttributeSchema, c *domain.Coordinate, verb string) (string, error) {
	if verb == "csv" {
		return attr.AsCSV(c, ",", `"`), nil
	}
	return attr.ForTemplate(c, verb, b.htmlOptions(attr, c))
}

func (b *MapConfigBuilder) htmlOptions(attr domain.AttributeSchema, c *domain.Coordinate) domain.HTMLOptions {
	opts := domain.HTMLOptions{
		DisplayCoordinates: attr.DisplayRawText,
		UndefinedLabel:     b.loc.Translate(MsgUndefined),
	}
	if c != nil {
		opts.StaticMapURL, _ = b.StaticMapURL(attr, *c)
	}
	return opts
}

func (b *MapConfigBuilder) createURLTemplate(class, attribute string) string {
	return fmt.Sprintf("%spages/UI.php?operation=new&class=%s&default[%s]=",
		b.appRoot, url.QueryEscape(class), url.QueryEscape(attribute))
}

func (b *MapConfigBuilder) canCreate(ctx context.Context, class string) bool {
	if b.auth == nil {
		return false
	}
	ok, err := b.auth.CanCreate(ctx, class)
	if err != nil {
		b.log.Warn("create permission check failed", "class", class, "error", err)
		return false
	}
	return ok
}

func (b *MapConfigBuilder) classLabel(ctx context.Context, class string) string {
	label, err := b.formatter.ClassLabel(ctx, class)
	if err != nil {
		b.log.Warn("class label lookup failed", "class", class, "error", err)
		return class
	}
	return label
}

func (b *MapConfigBuilder) classIcon(ctx context.Context, class string) string {
	icon, err := b.formatter.ClassIcon(ctx, class)
	if err != nil {
		b.log.Warn("class icon lookup failed", "class", class, "error", err)
		return ""
	}
	return icon
}
