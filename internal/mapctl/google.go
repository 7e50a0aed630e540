package mapctl

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/pkg/cluster"
)

// GoogleProvider renders with the hosted Google Maps SDK.
type GoogleProvider struct {
	spec     domain.ProviderSpec
	assets   *Assets
	geocoder ports.Geocoder
	language string
	loaded   bool
}

func (p *GoogleProvider) Kind() domain.ProviderKind { return domain.KindGoogle }

func (p *GoogleProvider) Capabilities() Capabilities {
	return Capabilities{Clustering: true, DraggableMarkers: true, Geocoding: p.geocoder != nil}
}

// Load loads the SDK script with the key and the user's language.
func (p *GoogleProvider) Load(ctx context.Context) error {
	if err := p.assets.Script(ctx, domain.GoogleScriptURL(p.spec.APIKey, p.language)); err != nil {
		return err
	}
	p.loaded = true
	return nil
}

func (p *GoogleProvider) NewView(r Renderer, opts ViewOptions) (View, error) {
	if !p.loaded {
		return nil, fmt.Errorf("%w: google maps sdk not loaded", domain.ErrConfiguration)
	}
	v := &googleView{baseView: newBaseView(r, opts)}
	v.emit("google.maps.Map", map[string]any{
		"center":                 latLng(opts.Viewport.Center),
		"zoom":                   opts.Viewport.Zoom,
		"disableDoubleClickZoom": true,
	})
	return v, nil
}

func (p *GoogleProvider) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.Coordinate, error) {
	return geocode(ctx, p.geocoder, address, bias)
}

// googleView draws markers with AdvancedMarkerElement and clusters with a
// data layer recomputed on every idle event.
type googleView struct {
	baseView
}

func (v *googleView) PanTo(c domain.Coordinate) {
	v.viewport.Center = c
	v.emit("map.panTo", latLng(c))
}

func (v *googleView) EaseTo(c domain.Coordinate, zoom float64) {
	v.viewport = Viewport{Center: c, Zoom: zoom}
	v.emit("map.setZoom", map[string]any{"zoom": zoom})
	v.emit("map.panTo", latLng(c))
	v.redrawPoints()
}

func (v *googleView) SetMarker(id string, m Marker) {
	op := "marker.create"
	if _, ok := v.markers[id]; ok {
		op = "marker.update"
	}
	v.markers[id] = m
	v.emit(op, map[string]any{
		"id":           id,
		"position":     latLng(m.Position),
		"gmpDraggable": m.Draggable,
		"title":        m.Title,
		"icon":         m.Icon,
	})
}

func (v *googleView) RemoveMarker(id string) {
	if _, ok := v.markers[id]; !ok {
		return
	}
	delete(v.markers, id)
	v.emit("marker.setMap", map[string]any{"id": id, "map": nil})
}

func (v *googleView) SetPoints(fc *geojson.FeatureCollection, opts cluster.Options) error {
	if err := v.setPoints(fc, opts); err != nil {
		return err
	}
	v.redrawPoints()
	return nil
}

func (v *googleView) redrawPoints() {
	if v.points == nil {
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range v.VisiblePoints() {
		if n := cluster.PointCount(f); n > 0 {
			color, radius := domain.ClusterStyle(n)
			f.Properties["fillColor"] = color
			f.Properties["scale"] = radius
		}
		fc.Append(f)
	}
	v.emit("data.setGeoJson", map[string]any{"features": fc})
}

func (v *googleView) ShowPopup(at domain.Coordinate, html string) {
	v.emit("infoWindow.open", map[string]any{"position": latLng(at), "content": html})
}

func (v *googleView) ClosePopup() {
	v.emit("infoWindow.close", nil)
}

// Dispatch maps Google Maps event names. Right click is the create
// gesture; data layer features carry the cluster or location key.
func (v *googleView) Dispatch(n NativeEvent) bool {
	ev := Event{Position: n.position(), MarkerID: n.Marker, ClusterID: n.ClusterID, Key: n.Key}
	switch n.Name {
	case "click":
		switch {
		case n.Marker != "":
			ev.Type = EventMarkerClick
		case n.Layer == "data" && n.ClusterID != 0:
			ev.Type = EventClusterClick
		case n.Layer == "data":
			ev.Type = EventPointClick
		default:
			ev.Type = EventClick
		}
	case "rightclick":
		ev.Type = EventCreateGesture
	case "dragend":
		m, ok := v.markers[n.Marker]
		if !ok {
			return false
		}
		m.Position = ev.Position
		v.markers[n.Marker] = m
		ev.Type = EventMarkerDragEnd
	case "mouseover":
		if n.Layer != "data" || n.ClusterID != 0 {
			return false
		}
		ev.Type = EventPointHoverStart
	case "mouseout":
		if n.Layer != "data" || n.ClusterID != 0 {
			return false
		}
		ev.Type = EventPointHoverEnd
	case "idle":
		zoomChanged := n.Zoom != v.viewport.Zoom
		v.viewport = Viewport{Center: ev.Position, Zoom: n.Zoom}
		if zoomChanged {
			v.redrawPoints()
		}
		ev.Type = EventMoveEnd
	default:
		return false
	}
	v.notify(ev)
	return true
}

func (v *googleView) Destroy() {
	if v.destroyed {
		return
	}
	v.emit("google.maps.event.clearInstanceListeners", nil)
	v.destroy()
}
