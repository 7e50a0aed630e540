package mapctl

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/pkg/cluster"
)

// Layer and source ids of the clustered location source.
const (
	SourceLocations      = "locations"
	LayerClusters        = "clusters"
	LayerClusterCount    = "cluster-count"
	LayerUnclusteredPins = "unclustered-point"
)

// VectorTileProvider renders with MapLibre GL and a vector or raster style.
type VectorTileProvider struct {
	spec     domain.ProviderSpec
	assets   *Assets
	geocoder ports.Geocoder
	style    map[string]any
}

func (p *VectorTileProvider) Kind() domain.ProviderKind { return domain.KindVectorTile }

func (p *VectorTileProvider) Capabilities() Capabilities {
	return Capabilities{Clustering: true, DraggableMarkers: true, Geocoding: p.geocoder != nil}
}

// Load loads the MapLibre script and resolves the style document.
func (p *VectorTileProvider) Load(ctx context.Context) error {
	if p.spec.Style == nil {
		return fmt.Errorf("%w: %s has no style", domain.ErrConfiguration, p.spec.Name)
	}
	if err := p.assets.Script(ctx, domain.MapLibreScriptURL); err != nil {
		return err
	}
	style, err := p.assets.Style(ctx, *p.spec.Style)
	if err != nil {
		return err
	}
	p.style = style
	return nil
}

func (p *VectorTileProvider) NewView(r Renderer, opts ViewOptions) (View, error) {
	if p.style == nil {
		return nil, fmt.Errorf("%w: maplibre style not loaded", domain.ErrConfiguration)
	}
	v := &vectorView{baseView: newBaseView(r, opts)}
	v.emit("maplibregl.Map", map[string]any{
		"style":  p.style,
		"center": lngLat(opts.Viewport.Center),
		"zoom":   opts.Viewport.Zoom,
	})
	v.emit("map.addControl", map[string]any{"control": "NavigationControl"})
	return v, nil
}

func (p *VectorTileProvider) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.Coordinate, error) {
	return geocode(ctx, p.geocoder, address, bias)
}

// vectorView clusters inside the client: the source is declared with
// cluster: true and the view keeps an identical index to answer
// expansion zoom queries.
type vectorView struct {
	baseView
	sourceAdded bool
}

func (v *vectorView) PanTo(c domain.Coordinate) {
	v.viewport.Center = c
	v.emit("map.panTo", map[string]any{"center": lngLat(c)})
}

func (v *vectorView) EaseTo(c domain.Coordinate, zoom float64) {
	v.viewport = Viewport{Center: c, Zoom: zoom}
	v.emit("map.easeTo", map[string]any{"center": lngLat(c), "zoom": zoom})
}

func (v *vectorView) SetMarker(id string, m Marker) {
	if _, ok := v.markers[id]; ok {
		v.markers[id] = m
		v.emit("marker.setLngLat", map[string]any{"id": id, "lngLat": lngLat(m.Position)})
		return
	}
	v.markers[id] = m
	v.emit("marker.addTo", map[string]any{
		"id":        id,
		"lngLat":    lngLat(m.Position),
		"draggable": m.Draggable,
		"title":     m.Title,
		"icon":      m.Icon,
	})
}

func (v *vectorView) RemoveMarker(id string) {
	if _, ok := v.markers[id]; !ok {
		return
	}
	delete(v.markers, id)
	v.emit("marker.remove", map[string]any{"id": id})
}

func (v *vectorView) SetPoints(fc *geojson.FeatureCollection, opts cluster.Options) error {
	if err := v.setPoints(fc, opts); err != nil {
		return err
	}
	if v.sourceAdded {
		v.emit("source.setData", map[string]any{"id": SourceLocations, "data": fc})
		return nil
	}
	v.sourceAdded = true
	v.emit("map.addSource", map[string]any{
		"id":             SourceLocations,
		"type":           "geojson",
		"data":           fc,
		"cluster":        true,
		"clusterRadius":  opts.Radius,
		"clusterMaxZoom": opts.MaxZoom,
	})
	v.emit("map.addLayer", clusterLayer())
	v.emit("map.addLayer", map[string]any{
		"id":     LayerClusterCount,
		"type":   "symbol",
		"source": SourceLocations,
		"filter": []any{"has", cluster.PropPointCount},
		"layout": map[string]any{
			"text-field": "{" + cluster.PropPointCountAbbrev + "}",
			"text-size":  12,
		},
	})
	v.emit("map.addLayer", map[string]any{
		"id":     LayerUnclusteredPins,
		"type":   "symbol",
		"source": SourceLocations,
		"filter": []any{"!", []any{"has", cluster.PropPointCount}},
		"layout": map[string]any{
			"icon-image":  []any{"get", "icon"},
			"text-field":  []any{"get", "title"},
			"text-offset": []float64{0, 1.25},
			"text-anchor": "top",
		},
	})
	return nil
}

// clusterLayer paints clusters in three colour and radius steps.
func clusterLayer() map[string]any {
	small, r1 := domain.ClusterStyle(0)
	medium, r2 := domain.ClusterStyle(domain.ClusterStepMedium)
	large, r3 := domain.ClusterStyle(domain.ClusterStepLarge)
	return map[string]any{
		"id":     LayerClusters,
		"type":   "circle",
		"source": SourceLocations,
		"filter": []any{"has", cluster.PropPointCount},
		"paint": map[string]any{
			"circle-color": []any{"step", []any{"get", cluster.PropPointCount},
				small, domain.ClusterStepMedium, medium, domain.ClusterStepLarge, large},
			"circle-radius": []any{"step", []any{"get", cluster.PropPointCount},
				r1, domain.ClusterStepMedium, r2, domain.ClusterStepLarge, r3},
		},
	}
}

func (v *vectorView) ShowPopup(at domain.Coordinate, html string) {
	v.emit("popup.setHTML", map[string]any{"lngLat": lngLat(at), "html": html})
}

func (v *vectorView) ClosePopup() {
	v.emit("popup.remove", nil)
}

// Dispatch maps MapLibre event names. The context menu is the create
// gesture; layer events come from the cluster and point layers.
func (v *vectorView) Dispatch(n NativeEvent) bool {
	ev := Event{Position: n.position(), MarkerID: n.Marker, ClusterID: n.ClusterID, Key: n.Key}
	switch n.Name {
	case "click":
		switch {
		case n.Marker != "":
			ev.Type = EventMarkerClick
		case n.Layer == LayerClusters:
			ev.Type = EventClusterClick
		case n.Layer == LayerUnclusteredPins:
			ev.Type = EventPointClick
		default:
			ev.Type = EventClick
		}
	case "contextmenu":
		ev.Type = EventCreateGesture
	case "dragend":
		m, ok := v.markers[n.Marker]
		if !ok {
			return false
		}
		m.Position = ev.Position
		v.markers[n.Marker] = m
		ev.Type = EventMarkerDragEnd
	case "mouseenter":
		if n.Layer != LayerUnclusteredPins {
			return false
		}
		ev.Type = EventPointHoverStart
	case "mouseleave":
		if n.Layer != LayerUnclusteredPins {
			return false
		}
		ev.Type = EventPointHoverEnd
	case "moveend":
		v.viewport = Viewport{Center: ev.Position, Zoom: n.Zoom}
		ev.Type = EventMoveEnd
	default:
		return false
	}
	v.notify(ev)
	return true
}

func (v *vectorView) Destroy() {
	if v.destroyed {
		return
	}
	v.emit("map.remove", nil)
	v.destroy()
}
