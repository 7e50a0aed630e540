package mapctl

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/pkg/cluster"
)

// EventType is a provider-independent map event.
type EventType int

const (
	// EventClick is a primary click on the map background.
	EventClick EventType = iota + 1
	// EventCreateGesture is the secondary gesture that proposes a new entity.
	EventCreateGesture
	EventMarkerClick
	EventMarkerDragEnd
	EventClusterClick
	EventPointClick
	EventPointHoverStart
	EventPointHoverEnd
	// EventMoveEnd fires once the view settles after a pan or zoom.
	EventMoveEnd
)

// Event is a normalized map event.
type Event struct {
	Type      EventType
	Position  domain.Coordinate
	MarkerID  string
	ClusterID int
	// Key identifies the location of a point event.
	Key string
}

// NativeEvent is an event as reported by the rendering client, in the
// vocabulary of its map library.
type NativeEvent struct {
	Name      string  `json:"name"`
	Layer     string  `json:"layer,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Zoom      float64 `json:"zoom,omitempty"`
	Marker    string  `json:"marker,omitempty"`
	ClusterID int     `json:"clusterId,omitempty"`
	Key       string  `json:"key,omitempty"`
}

func (n NativeEvent) position() domain.Coordinate {
	return domain.Coordinate{Lat: n.Lat, Lng: n.Lng}
}

// Command is one instruction for the rendering client.
type Command struct {
	Op     string         `json:"op"`
	Target string         `json:"target,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// Renderer receives the commands a view emits.
type Renderer interface {
	Render(cmd Command)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Command)

func (f RendererFunc) Render(cmd Command) { f(cmd) }

// Marker is a point marker drawn over the map.
type Marker struct {
	Position  domain.Coordinate
	Draggable bool
	Title     string
	Icon      string
}

// Viewport is the visible center and zoom of a view.
type Viewport struct {
	Center domain.Coordinate `json:"center"`
	Zoom   float64           `json:"zoom"`
}

// ViewOptions configures a new view.
type ViewOptions struct {
	ContainerID string
	Viewport    Viewport
}

// View is one rendered map. Views are driven from the loop only.
type View interface {
	Viewport() Viewport
	PanTo(c domain.Coordinate)
	EaseTo(c domain.Coordinate, zoom float64)
	SetMarker(id string, m Marker)
	RemoveMarker(id string)
	Marker(id string) (Marker, bool)
	// SetPoints replaces the clustered point source.
	SetPoints(fc *geojson.FeatureCollection, opts cluster.Options) error
	// VisiblePoints returns the clusters and points at the current zoom.
	VisiblePoints() []*geojson.Feature
	ExpansionZoom(clusterID int) (int, error)
	ShowPopup(at domain.Coordinate, html string)
	ClosePopup()
	// On registers fn for t and returns a function removing it.
	On(t EventType, fn func(Event)) (unsubscribe func())
	// Dispatch translates a client event and notifies the listeners. It
	// reports whether the event was understood.
	Dispatch(ev NativeEvent) bool
	Destroy()
}

// baseView holds the state shared by both view families.
type baseView struct {
	container string
	render    Renderer
	viewport  Viewport
	markers   map[string]Marker
	points    *cluster.Index
	nextSub   int
	handlers  map[EventType]map[int]func(Event)
	destroyed bool
}

func newBaseView(r Renderer, opts ViewOptions) baseView {
	return baseView{
		container: opts.ContainerID,
		render:    r,
		viewport:  opts.Viewport,
		markers:   make(map[string]Marker),
		handlers:  make(map[EventType]map[int]func(Event)),
	}
}

func (v *baseView) emit(op string, args map[string]any) {
	if v.destroyed {
		return
	}
	v.render.Render(Command{Op: op, Target: v.container, Args: args})
}

func (v *baseView) Viewport() Viewport { return v.viewport }

func (v *baseView) Marker(id string) (Marker, bool) {
	m, ok := v.markers[id]
	return m, ok
}

func (v *baseView) On(t EventType, fn func(Event)) func() {
	v.nextSub++
	id := v.nextSub
	if v.handlers[t] == nil {
		v.handlers[t] = make(map[int]func(Event))
	}
	v.handlers[t][id] = fn
	return func() { delete(v.handlers[t], id) }
}

// Listeners counts the registered handlers.
func (v *baseView) Listeners() int {
	n := 0
	for _, hs := range v.handlers {
		n += len(hs)
	}
	return n
}

func (v *baseView) notify(ev Event) {
	if v.destroyed {
		return
	}
	for _, fn := range v.handlers[ev.Type] {
		fn(ev)
	}
}

func (v *baseView) setPoints(fc *geojson.FeatureCollection, opts cluster.Options) error {
	if len(fc.Features) == 0 {
		v.points = nil
		return nil
	}
	idx, err := cluster.New(fc, opts)
	if err != nil {
		return fmt.Errorf("cluster source: %w", err)
	}
	v.points = idx
	return nil
}

func (v *baseView) VisiblePoints() []*geojson.Feature {
	if v.points == nil {
		return nil
	}
	return v.points.World(v.viewport.Zoom)
}

func (v *baseView) ExpansionZoom(clusterID int) (int, error) {
	if v.points == nil {
		return 0, cluster.ErrUnknownCluster
	}
	return v.points.ExpansionZoom(clusterID)
}

func (v *baseView) destroy() {
	v.handlers = make(map[EventType]map[int]func(Event))
	v.markers = make(map[string]Marker)
	v.points = nil
	v.destroyed = true
}

func lngLat(c domain.Coordinate) []float64 { return []float64{c.Lng, c.Lat} }

func latLng(c domain.Coordinate) map[string]any {
	return map[string]any{"lat": c.Lat, "lng": c.Lng}
}
