package mapctl

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// State is the lifecycle state of a controller.
type State int

const (
	StateUninitialized State = iota
	StateMarkerAbsent
	StateMarkerPlaced
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateMarkerAbsent:
		return "marker_absent"
	case StateMarkerPlaced:
		return "marker_placed"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Ready reports whether the map view exists.
func (s State) Ready() bool {
	return s == StateMarkerAbsent || s == StateMarkerPlaced
}

// Controller is one interactive map bound to a host element.
type Controller interface {
	// Initialize loads the provider and builds the view at vp, or at the
	// configured view when vp is nil.
	Initialize(ctx context.Context, vp *Viewport)
	State() State
	Viewport() Viewport
	Close()
}

// Field is the host form input holding the "lat,lng" text. SetValue does
// not notify OnChange listeners. Listeners run on the loop.
type Field interface {
	Value() string
	SetValue(text string)
	SetHidden(hidden bool)
	OnChange(fn func(text string)) (unsubscribe func())
}

// Options carries the collaborators of a controller.
type Options struct {
	Provider  Provider
	Scheduler Scheduler
	Renderer  Renderer
	// Fetcher loads summary panels.
	Fetcher Fetcher
	// Navigate opens a host page.
	Navigate func(url string)
	// HoverDelay debounces hover-triggered summary fetches.
	HoverDelay time.Duration
	Log        *slog.Logger
}

// DefaultHoverDelay is the hover debounce of summary panels.
const DefaultHoverDelay = 800 * time.Millisecond

func (o Options) withDefaults() Options {
	if o.HoverDelay <= 0 {
		o.HoverDelay = DefaultHoverDelay
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Renderer == nil {
		o.Renderer = RendererFunc(func(Command) {})
	}
	if o.Navigate == nil {
		o.Navigate = func(string) {}
	}
	return o
}

// core is the lifecycle shared by field and collection controllers.
type core struct {
	id        string
	opts      Options
	container string
	initial   Viewport
	log       *slog.Logger

	state  State
	view   View
	unsubs []func()
	ops    pending
	ctx    context.Context
	cancel context.CancelFunc
}

func newCore(container string, initial Viewport, opts Options) core {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return core{
		id:        id,
		opts:      opts,
		container: container,
		initial:   initial,
		log:       opts.Log.With("map", container, "controller", id),
		ops:       make(pending),
	}
}

// boot loads the provider off the loop and builds the view. A load failure
// leaves the controller uninitialized; the static fallback stays visible.
func (c *core) boot(ctx context.Context, vp *Viewport, ready func(carried bool)) {
	if c.state != StateUninitialized || c.ctx != nil {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	if vp != nil {
		c.initial = *vp
	}
	var op Handle
	op = c.ops.add(start(c.opts.Scheduler, c.ctx,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.opts.Provider.Load(ctx)
		},
		func(_ struct{}, err error) {
			c.ops.remove(op)
			if err != nil {
				c.log.Warn("map provider unavailable, keeping static map", "error", err)
				return
			}
			view, err := c.opts.Provider.NewView(c.opts.Renderer, ViewOptions{ContainerID: c.container, Viewport: c.initial})
			if err != nil {
				c.log.Warn("map view creation failed", "error", err)
				return
			}
			c.view = view
			ready(vp != nil)
		}))
}

func (c *core) listen(t EventType, fn func(Event)) {
	c.unsubs = append(c.unsubs, c.view.On(t, fn))
}

func (c *core) State() State { return c.state }

// Viewport returns the current view, or the configured one before the view
// exists.
func (c *core) Viewport() Viewport {
	if c.view != nil {
		return c.view.Viewport()
	}
	return c.initial
}

// View returns the map view, nil until the provider has loaded.
func (c *core) View() View { return c.view }

// Close unsubscribes every listener, cancels pending operations and
// destroys the view.
func (c *core) Close() {
	if c.state == StateClosed {
		return
	}
	if c.view != nil {
		c.initial = c.view.Viewport()
	}
	c.state = StateClosed
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.ops.cancelAll()
	if c.view != nil {
		c.view.Destroy()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

// FieldMarker is the marker id of an edited coordinate.
const FieldMarker = "position"

// FieldController edits one geolocation attribute: the marker mirrors the
// bound field.
type FieldController struct {
	core
	payload    domain.FieldEditPayload
	field      Field
	generation uint64
}

// NewFieldController creates a controller for the field-edit payload p.
func NewFieldController(p domain.FieldEditPayload, field Field, opts Options) *FieldController {
	return &FieldController{
		core:    newCore(p.ID, Viewport{Center: p.Center, Zoom: float64(p.Zoom)}, opts),
		payload: p,
		field:   field,
	}
}

func (c *FieldController) Initialize(ctx context.Context, vp *Viewport) {
	c.field.SetHidden(!c.payload.Attribute.Display)
	c.boot(ctx, vp, c.ready)
}

func (c *FieldController) ready(carried bool) {
	c.listen(EventClick, func(ev Event) { c.OnMapPrimaryClick(ev.Position) })
	c.listen(EventMarkerClick, func(ev Event) {
		if ev.MarkerID == FieldMarker {
			c.OnMarkerActivate()
		}
	})
	c.listen(EventMarkerDragEnd, func(ev Event) {
		if ev.MarkerID == FieldMarker {
			c.OnMarkerDragEnd(ev.Position)
		}
	})
	c.unsubs = append(c.unsubs, c.field.OnChange(c.OnBoundFieldExternalChange))

	pos, ok := domain.Parse(c.field.Value())
	if !ok {
		c.state = StateMarkerAbsent
		return
	}
	c.placeMarker(pos)
	if !carried {
		c.view.PanTo(pos)
	}
}

func (c *FieldController) placeMarker(pos domain.Coordinate) {
	c.view.SetMarker(FieldMarker, Marker{Position: pos, Draggable: true, Title: pos.String()})
	c.state = StateMarkerPlaced
}

func (c *FieldController) clearMarker() {
	c.view.RemoveMarker(FieldMarker)
	c.state = StateMarkerAbsent
}

// OnMapPrimaryClick moves the marker to pos and writes it to the field.
func (c *FieldController) OnMapPrimaryClick(pos domain.Coordinate) {
	if !c.state.Ready() {
		return
	}
	c.generation++
	c.placeMarker(pos)
	c.view.PanTo(pos)
	c.field.SetValue(pos.String())
}

// OnMarkerActivate removes the marker and clears the field.
func (c *FieldController) OnMarkerActivate() {
	if !c.state.Ready() {
		return
	}
	c.generation++
	c.clearMarker()
	c.field.SetValue("")
}

// OnMarkerDragEnd stores the position the marker was dropped at.
func (c *FieldController) OnMarkerDragEnd(pos domain.Coordinate) {
	if !c.state.Ready() {
		return
	}
	c.generation++
	c.placeMarker(pos)
	c.view.PanTo(pos)
	c.field.SetValue(pos.String())
}

// OnBoundFieldExternalChange follows a value written by the host. Text
// that does not parse removes the marker.
func (c *FieldController) OnBoundFieldExternalChange(text string) {
	if !c.state.Ready() {
		return
	}
	c.generation++
	pos, ok := domain.Parse(text)
	if !ok {
		c.clearMarker()
		return
	}
	c.placeMarker(pos)
	c.view.PanTo(pos)
}

// LocateAddress geocodes address and moves the marker there. Any later
// edit supersedes a lookup still in flight.
func (c *FieldController) LocateAddress(address string) {
	if !c.state.Ready() {
		return
	}
	c.generation++
	gen := c.generation
	bias := domain.BoundsAround(c.view.Viewport().Center, 0.5)
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
				c.log.Debug("discarding superseded geocode", "address", address)
				return
			}
			c.placeMarker(pos)
			c.view.PanTo(pos)
			c.field.SetValue(pos.String())
		}))
}
