package mapctl

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/pkg/cluster"
)

// Marker ids used by collection maps.
const (
	CreateMarker = "create"
	SearchMarker = "search"
)

// CollectionController shows the locations of a dashboard map with
// clustering, tooltips or summary panels, address search and the create
// affordance.
type CollectionController struct {
	core
	cfg     domain.MapConfig
	records map[string]domain.LocationRecord

	hover      Handle
	createAt   *domain.Coordinate
	generation uint64
}

// NewCollectionController creates a controller for the render payload cfg.
func NewCollectionController(cfg domain.MapConfig, opts Options) *CollectionController {
	records := make(map[string]domain.LocationRecord, len(cfg.Locations))
	for _, r := range cfg.Locations {
		records[r.Key] = r
	}
	return &CollectionController{
		core:    newCore(cfg.ID, Viewport{Center: cfg.Center, Zoom: float64(cfg.Zoom)}, opts),
		cfg:     cfg,
		records: records,
	}
}

func (c *CollectionController) Initialize(ctx context.Context, vp *Viewport) {
	c.boot(ctx, vp, c.ready)
}

// Features returns the cluster source of the locations.
func Features(locations []domain.LocationRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range locations {
		f := geojson.NewFeature(r.Position.Point())
		f.ID = r.Key
		f.Properties["key"] = r.Key
		f.Properties["title"] = r.Title
		f.Properties["icon"] = r.Icon
		if r.Summary != "" {
			f.Properties["summary"] = r.Summary
		} else {
			f.Properties["tooltip"] = r.Tooltip
		}
		fc.Append(f)
	}
	return fc
}

// ClusterOptions returns the clustering parameters for a map opened at
// zoom.
func ClusterOptions(zoom int) cluster.Options {
	return cluster.Options{Radius: domain.ClusterRadius, MaxZoom: zoom + domain.ClusterZoomOffset}
}

func (c *CollectionController) ready(bool) {
	if err := c.view.SetPoints(Features(c.cfg.Locations), ClusterOptions(c.cfg.Zoom)); err != nil {
		c.log.Warn("cluster source rejected", "error", err)
	}

	c.listen(EventClusterClick, func(ev Event) { c.OnClusterActivate(ev.ClusterID, ev.Position) })
	c.listen(EventPointClick, func(ev Event) { c.OnPointActivate(ev.Key) })
	c.listen(EventPointHoverStart, func(ev Event) { c.OnPointHover(ev.Key) })
	c.listen(EventPointHoverEnd, func(ev Event) { c.OnPointHoverEnd(ev.Key) })
	if c.cfg.Create != nil {
		c.listen(EventCreateGesture, func(ev Event) { c.OnCreateGesture(ev.Position) })
		c.listen(EventMarkerClick, func(ev Event) {
			if ev.MarkerID == CreateMarker {
				c.OnCreateMarkerActivate()
			}
		})
		c.listen(EventMarkerDragEnd, func(ev Event) {
			if ev.MarkerID == CreateMarker {
				c.OnCreateGesture(ev.Position)
			}
		})
	}
	c.state = StateMarkerAbsent
}

// OnClusterActivate eases the view to the zoom where the cluster splits.
func (c *CollectionController) OnClusterActivate(clusterID int, at domain.Coordinate) {
	if !c.state.Ready() {
		return
	}
	zoom, err := c.view.ExpansionZoom(clusterID)
	if err != nil {
		c.log.Warn("cluster expansion failed", "cluster", clusterID, "error", err)
		return
	}
	c.view.EaseTo(at, float64(zoom))
}

// OnPointActivate opens the tooltip or summary of a location at once.
func (c *CollectionController) OnPointActivate(key string) {
	rec, ok := c.records[key]
	if !ok || !c.state.Ready() {
		return
	}
	c.cancelHover()
	if rec.Summary != "" {
		c.fetchSummary(rec)
		return
	}
	c.view.ShowPopup(rec.Position, rec.Tooltip)
}

// OnPointHover shows the tooltip, or fetches the summary once the pointer
// has rested on the location for the hover delay.
func (c *CollectionController) OnPointHover(key string) {
	rec, ok := c.records[key]
	if !ok || !c.state.Ready() {
		return
	}
	c.cancelHover()
	if rec.Summary == "" {
		c.view.ShowPopup(rec.Position, rec.Tooltip)
		return
	}
	var timer Handle
	timer = c.opts.Scheduler.AfterFunc(c.opts.HoverDelay, func() {
		c.ops.remove(timer)
		c.hover = nil
		if c.state.Ready() {
			c.fetchSummary(rec)
		}
	})
	c.hover = c.ops.add(timer)
}

// OnPointHoverEnd cancels a pending summary fetch and closes the popup.
func (c *CollectionController) OnPointHoverEnd(string) {
	if !c.state.Ready() {
		return
	}
	c.cancelHover()
	c.view.ClosePopup()
}

func (c *CollectionController) cancelHover() {
	if c.hover == nil {
		return
	}
	c.hover.Cancel()
	c.ops.remove(c.hover)
	c.hover = nil
}

func (c *CollectionController) fetchSummary(rec domain.LocationRecord) {
	if c.opts.Fetcher == nil {
		c.view.ShowPopup(rec.Position, rec.Tooltip)
		return
	}
	var op Handle
	op = c.ops.add(start(c.opts.Scheduler, c.ctx,
		func(ctx context.Context) ([]byte, error) {
			return c.opts.Fetcher.Fetch(ctx, rec.Summary)
		},
		func(body []byte, err error) {
			c.ops.remove(op)
			if err != nil {
				c.log.Warn("summary fetch failed", "key", rec.Key, "error", err)
				return
			}
			c.view.ShowPopup(rec.Position, string(body))
		}))
}

// OnCreateGesture places the creation marker at pos. A search still in
// flight no longer moves it.
func (c *CollectionController) OnCreateGesture(pos domain.Coordinate) {
	if c.cfg.Create == nil || !c.state.Ready() {
		return
	}
	c.generation++
	c.placeCreateMarker(pos)
}

func (c *CollectionController) placeCreateMarker(pos domain.Coordinate) {
	c.createAt = &pos
	c.view.SetMarker(CreateMarker, Marker{Position: pos, Draggable: true, Title: c.cfg.Create.Label})
	c.state = StateMarkerPlaced
}

// OnCreateMarkerActivate opens the create page for the marker position.
func (c *CollectionController) OnCreateMarkerActivate() {
	if c.cfg.Create == nil || c.createAt == nil || !c.state.Ready() {
		return
	}
	if m, ok := c.view.Marker(CreateMarker); ok {
		c.createAt = &m.Position
	}
	c.opts.Navigate(c.cfg.Create.URL(*c.createAt))
}

// OnSearchSubmit geocodes address and recenters on the result. Failures are
// logged and leave the map unchanged.
func (c *CollectionController) OnSearchSubmit(address string) {
	if !c.cfg.SearchEnabled || !c.state.Ready() {
		return
	}
	c.generation++
	gen := c.generation
	bias := domain.BoundsAround(c.view.Viewport().Center, 1)
	var op Handle
	op = c.ops.add(start(c.opts.Scheduler, c.ctx,
		func(ctx context.Context) (domain.Coordinate, error) {
			return c.opts.Provider.Geocode(ctx, address, bias)
		},
		func(pos domain.Coordinate, err error) {
			c.ops.remove(op)
			if err != nil {
				c.log.Warn("geocode failed", "address", address, "error", err)
				return
			}
			if gen != c.generation || !c.state.Ready() {
				return
			}
			c.view.PanTo(pos)
			if c.cfg.Create != nil {
				c.placeCreateMarker(pos)
				return
			}
			c.view.SetMarker(SearchMarker, Marker{Position: pos, Title: address})
			c.state = StateMarkerPlaced
		}))
}
