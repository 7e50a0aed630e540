package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/mapctl"
	"github.com/samirrijal/geomap/internal/pkg/geospatial"
)

// DefaultLanguage is the host user language assumed when a request names
// none.
const DefaultLanguage = "EN US"

func userLanguage(c *fiber.Ctx) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	return DefaultLanguage
}

func entityRef(c *fiber.Ctx) domain.EntityRef {
	return domain.EntityRef{Class: c.Params("class"), Key: c.Params("key")}
}

// coordParam parses a "lat,lng" query parameter.
func coordParam(c *fiber.Ctx, name string) (domain.Coordinate, bool) {
	return domain.Parse(c.Query(name))
}

// GetWidgetHandler returns a dashboard map definition with defaults applied.
func GetWidgetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		w, err := deps.Widgets.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(w)
	}
}

// SaveWidgetHandler stores a dashboard map definition. The response tells
// the editor whether the form must be redrawn because the query class
// changed.
func SaveWidgetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var w domain.Widget
		if err := c.BodyParser(&w); err != nil {
			return errBadRequest(c, "invalid widget definition")
		}
		w.ID = c.Params("id")
		if w.Height < 0 {
			return errBadRequest(c, "height must not be negative")
		}

		saved, redraw, err := deps.Widgets.Save(c.UserContext(), w)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"widget": saved, "redraw": redraw})
	}
}

// AttributeChoicesHandler lists the geolocation attributes selectable for
// a widget query.
func AttributeChoicesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("query", domain.DefaultWidgetQuery)
		choices, err := deps.Widgets.AttributeChoices(c.UserContext(), query)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(choices)
	}
}

// WidgetMapHandler builds the render payload of a dashboard map.
func WidgetMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		w, err := deps.Widgets.Get(ctx, c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		cfg, err := deps.Builder.BuildWidget(ctx, w, userLanguage(c), c.QueryBool("edit", false))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "private, max-age=0")
		return c.JSON(cfg)
	}
}

// WidgetGeoJSONHandler returns the locations of a dashboard map as the
// GeoJSON feature collection used as cluster source.
func WidgetGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		w, err := deps.Widgets.Get(ctx, c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		cfg, err := deps.Builder.BuildWidget(ctx, w, userLanguage(c), false)
		if err != nil {
			return errFromDomain(c, err)
		}
		data, err := mapctl.Features(cfg.Locations).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Content-Type", "application/geo+json")
		c.Set("Cache-Control", "private, max-age=0")
		return c.Send(data)
	}
}

// FieldEditHandler returns the payload of the map next to an editable
// coordinate field.
func FieldEditHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		ref, code := entityRef(c), c.Params("code")
		attr, value, err := deps.Locations.Get(ctx, ref, code)
		if err != nil {
			return errFromDomain(c, err)
		}
		payload := deps.Builder.BuildField(ctx, "field_"+code, attr, value, userLanguage(c))
		c.Set("Cache-Control", "no-store")
		return c.JSON(payload)
	}
}

type setFieldRequest struct {
	Value *string `json:"value"`
}

// SetFieldHandler stores the submitted "lat,lng" text. Empty text clears
// the value.
func SetFieldHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req setFieldRequest
		if err := c.BodyParser(&req); err != nil || req.Value == nil {
			return errBadRequest(c, `body must be {"value": "lat,lng"}`)
		}

		ref, code := entityRef(c), c.Params("code")
		if c.QueryBool("async") {
			return submitField(c, deps, ref, code, *req.Value)
		}

		ev, err := deps.Locations.SetText(c.UserContext(), ref, code, *req.Value)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"entity":     ev.Entity,
			"attribute":  ev.Attribute,
			"value":      ev.Text(),
			"rd":         ev.RD,
			"changed_at": ev.ChangedAt,
		})
	}
}

// submitField validates the value and queues it for the propagation
// worker.
func submitField(c *fiber.Ctx, deps *Dependencies, ref domain.EntityRef, code, text string) error {
	if deps.Submissions == nil {
		return errUnavailable(c, "asynchronous writes are not configured")
	}
	ev, err := deps.Locations.Prepare(c.UserContext(), ref, code, text)
	if err != nil {
		return errFromDomain(c, err)
	}
	sub := &domain.LocationSubmission{
		Entity:      ref,
		Attribute:   code,
		Text:        ev.Text(),
		SubmittedAt: ev.ChangedAt,
	}
	if err := deps.Submissions.SubmitLocation(c.UserContext(), sub); err != nil {
		LoggerFromCtx(c.UserContext()).Error("submit location failed", "entity", ref.String(), "error", err)
		return errUnavailable(c, "could not queue the change")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"entity":       sub.Entity,
		"attribute":    sub.Attribute,
		"value":        sub.Text,
		"submitted_at": sub.SubmittedAt,
	})
}

// RenderFieldHandler formats the stored value for a template verb:
// wgs_84, rd, rijksdriehoek, html or csv.
func RenderFieldHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		verb := strings.ToLower(c.Query("verb"))
		out, err := deps.Locations.Render(c.UserContext(), deps.Builder, entityRef(c), c.Params("code"), verb)
		if err != nil {
			return errFromDomain(c, err)
		}
		if verb == domain.VerbHTML {
			c.Set("Content-Type", "text/html; charset=utf-8")
			return c.SendString(out)
		}
		return c.JSON(fiber.Map{"verb": verb, "value": out})
	}
}

// GeocodeHandler resolves an address. near=lat,lng biases the search to
// the surrounding degree, or to radius meters when given.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(q) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		var (
			bias domain.Bounds
			near domain.Coordinate
		)
		hasNear := c.Query("near") != ""
		if hasNear {
			var ok bool
			if near, ok = coordParam(c, "near"); !ok {
				return errBadRequest(c, "near must be lat,lng")
			}
			radius := c.QueryFloat("radius", 0)
			switch {
			case radius < 0:
				return errBadRequest(c, "radius must be positive")
			case radius > 0:
				bias = geospatial.BoundingBox(near, radius)
			default:
				bias = domain.BoundsAround(near, 1)
			}
		}

		res, err := deps.Geocoding.Geocode(c.UserContext(), q, c.Query("provider"), bias)
		if err != nil {
			return errFromDomain(c, err)
		}
		if hasNear {
			d := geospatial.Distance(near, res.Position)
			res.DistanceMeters = &d
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(res)
	}
}

// StaticMapHandler redirects to the static map image of a coordinate, or
// answers 404 when no static map template is configured.
func StaticMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pos, ok := coordParam(c, "coord")
		if !ok {
			return errBadRequest(c, "coord must be lat,lng")
		}
		width := c.QueryInt("width", domain.DefaultWidth)
		height := c.QueryInt("height", domain.DefaultHeight)
		if width <= 0 || width > 2048 || height <= 0 || height > 2048 {
			return errBadRequest(c, "width and height must be between 1 and 2048")
		}

		url, ok := deps.Builder.StaticMapURL(domain.AttributeSchema{Width: width, Height: height}, pos)
		if !ok {
			return errNotFound(c, "no static map available for provider "+deps.Builder.Settings().Provider)
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}

// ProjectHandler converts a WGS84 coordinate to Rijksdriehoek X/Y.
func ProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pos, ok := coordParam(c, "coord")
		if !ok {
			return errBadRequest(c, "coord must be lat,lng")
		}
		rd := pos.ToRD()
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(fiber.Map{"wgs84": pos, "rd": rd, "text": rd.String()})
	}
}

// GeolocationAttributesHandler lists the geolocation attributes of a class.
func GeolocationAttributesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		attrs, err := deps.Registry.GeolocationAttributes(c.UserContext(), c.Params("class"))
		if err != nil {
			return errFromDomain(c, err)
		}
		if attrs == nil {
			attrs = []domain.AttributeSchema{}
		}
		return c.JSON(attrs)
	}
}

// ProviderHandler describes the configured map provider and the assets a
// page must load for it.
func ProviderHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scripts, styles := deps.Builder.Assets(userLanguage(c))
		return c.JSON(fiber.Map{
			"provider":    deps.Builder.Provider(),
			"scripts":     scripts,
			"stylesheets": styles,
			"geocoders":   deps.Geocoding.Providers(),
		})
	}
}
