package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geomap/internal/adapters/nats"
	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/mapctl"
	"github.com/samirrijal/geomap/internal/pkg/metrics"
)

// sessionMessage is sent by the browser half of a map session.
//
//	{"type":"event","event":{"name":"click","lat":52.1,"lng":4.3}}
//	{"type":"search","address":"Dam 1, Amsterdam"}
//	{"type":"field","value":"52.1,4.3"}
//	{"type":"replaced"}
//	{"type":"save"}
type sessionMessage struct {
	Type    string              `json:"type"`
	Event   *mapctl.NativeEvent `json:"event,omitempty"`
	Address string              `json:"address,omitempty"`
	Value   string              `json:"value,omitempty"`
}

// session runs one map controller on its own loop and streams its render
// commands to the socket. It is also the controller's mapctl.Container:
// a "replaced" message re-creates the controller at the current view.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	loop *mapctl.Loop
	log  *slog.Logger

	onReplaced map[int]func()
	next       int
}

func newSession(conn *websocket.Conn, log *slog.Logger) *session {
	return &session{conn: conn, loop: mapctl.NewLoop(log), log: log, onReplaced: map[int]func(){}}
}

func (s *session) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) fail(msg string) {
	_ = s.send(fiber.Map{"type": "error", "message": msg})
}

func (s *session) Render(cmd mapctl.Command) {
	if err := s.send(fiber.Map{"type": "command", "command": cmd}); err != nil {
		s.log.Debug("render command dropped", "op", cmd.Op, "error", err)
	}
}

// OnReplaced runs on the loop.
func (s *session) OnReplaced(fn func()) func() {
	s.next++
	id := s.next
	s.onReplaced[id] = fn
	return func() { delete(s.onReplaced, id) }
}

func (s *session) replaced() {
	for _, fn := range s.onReplaced {
		fn()
	}
}

func (s *session) options(deps *Dependencies, spec domain.ProviderSpec, lang string) (mapctl.Options, error) {
	var geo ports.Geocoder
	if deps.Geocoding != nil {
		geo = deps.Geocoding.For("")
	}
	p, err := mapctl.NewProvider(spec, deps.Assets, geo, lang)
	if err != nil {
		return mapctl.Options{}, err
	}
	return mapctl.Options{
		Provider:  p,
		Scheduler: s.loop,
		Renderer:  s,
		Fetcher:   deps.Fetcher,
		Navigate: func(url string) {
			_ = s.send(fiber.Map{"type": "navigate", "url": url})
		},
		Log: s.log,
	}, nil
}

// run starts the loop and the binding, feeds client messages to handle
// and tears everything down when the client goes away.
func (s *session) run(ctx context.Context, binding *mapctl.Binding, handle func(m sessionMessage)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.ActiveWebSockets.Inc()
	defer metrics.ActiveWebSockets.Dec()

	go s.loop.Run(ctx)
	s.loop.Post(func() { binding.Start(ctx) })

	done := make(chan struct{})
	go keepAlive(s.conn, &s.mu, done)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		var m sessionMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			s.fail("invalid JSON")
			continue
		}
		if m.Type == "replaced" {
			s.loop.Post(s.replaced)
			continue
		}
		handle(m)
	}
	close(done)

	closed := make(chan struct{})
	s.loop.Post(func() {
		binding.Close()
		close(closed)
	})
	<-closed
}

// MapSessionHandler drives the dashboard map of a widget over a WebSocket.
// The client forwards native map events and search requests and receives
// render commands.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		ctx := context.Background()
		id := conn.Params("id")
		lang := conn.Query("lang", DefaultLanguage)
		s := newSession(conn, slog.Default().With("widget", id))

		w, err := deps.Widgets.Get(ctx, id)
		if err != nil {
			s.fail(err.Error())
			return
		}
		cfg, err := deps.Builder.BuildWidget(ctx, w, lang, false)
		if err != nil {
			s.fail(err.Error())
			return
		}
		opts, err := s.options(deps, cfg.Provider, lang)
		if err != nil {
			// Static-only provider: the page keeps its non-interactive map.
			_ = s.send(fiber.Map{"type": "static", "config": cfg})
			return
		}
		_ = s.send(fiber.Map{"type": "config", "config": cfg})

		var ctrl *mapctl.CollectionController
		binding := mapctl.NewBinding(s, func() mapctl.Controller {
			ctrl = mapctl.NewCollectionController(cfg, opts)
			return ctrl
		})

		s.run(ctx, binding, func(m sessionMessage) {
			switch m.Type {
			case "event":
				if m.Event == nil {
					s.fail("event message without event")
					return
				}
				ev := *m.Event
				s.loop.Post(func() {
					if v := ctrl.View(); v != nil {
						v.Dispatch(ev)
					}
				})
			case "search":
				s.loop.Post(func() { ctrl.OnSearchSubmit(m.Address) })
			default:
				s.fail("unknown message type: " + m.Type)
			}
		})
	}
}

// sessionField is the remote form input of a field session. It is only
// touched on the session loop.
type sessionField struct {
	s         *session
	value     string
	next      int
	listeners map[int]func(string)
}

func (f *sessionField) Value() string { return f.value }

func (f *sessionField) SetValue(text string) {
	f.value = text
	_ = f.s.send(fiber.Map{"type": "field", "value": text})
}

func (f *sessionField) SetHidden(hidden bool) {
	_ = f.s.send(fiber.Map{"type": "hidden", "hidden": hidden})
}

func (f *sessionField) OnChange(fn func(string)) func() {
	f.next++
	id := f.next
	f.listeners[id] = fn
	return func() { delete(f.listeners, id) }
}

// change applies a value typed by the user or stored by another client.
func (f *sessionField) change(text string) {
	if text == f.value {
		return
	}
	f.value = text
	for _, fn := range f.listeners {
		fn(text)
	}
}

// FieldSessionHandler drives the map next to an editable coordinate field.
// Values stored by other clients arrive through the location event stream
// and move the marker like a host edit would.
func FieldSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		ctx := context.Background()
		ref := domain.EntityRef{Class: conn.Params("class"), Key: conn.Params("key")}
		code := conn.Params("code")
		lang := conn.Query("lang", DefaultLanguage)
		s := newSession(conn, slog.Default().With("entity", ref.String(), "attribute", code))

		attr, value, err := deps.Locations.Get(ctx, ref, code)
		if err != nil {
			s.fail(err.Error())
			return
		}
		payload := deps.Builder.BuildField(ctx, "field_"+code, attr, value, lang)
		opts, err := s.options(deps, payload.Provider, lang)
		if err != nil {
			_ = s.send(fiber.Map{"type": "static", "payload": payload})
			return
		}
		_ = s.send(fiber.Map{"type": "payload", "payload": payload})

		field := &sessionField{s: s, value: payload.Value, listeners: map[int]func(string){}}
		var ctrl *mapctl.FieldController
		binding := mapctl.NewBinding(s, func() mapctl.Controller {
			ctrl = mapctl.NewFieldController(payload, field, opts)
			return ctrl
		})

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.LocationSubject(ref.Class), func(msg *nats.Msg) {
				var ev domain.LocationChanged
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					return
				}
				if ev.Entity == ref && ev.Attribute == code {
					s.loop.Post(func() { field.change(ev.Text()) })
				}
			})
			if err != nil {
				s.log.Warn("location event subscribe failed", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		s.run(ctx, binding, func(m sessionMessage) {
			switch m.Type {
			case "event":
				if m.Event == nil {
					s.fail("event message without event")
					return
				}
				ev := *m.Event
				s.loop.Post(func() {
					if v := ctrl.View(); v != nil {
						v.Dispatch(ev)
					}
				})
			case "field":
				s.loop.Post(func() { field.change(m.Value) })
			case "search":
				s.loop.Post(func() { ctrl.LocateAddress(m.Address) })
			case "save":
				s.loop.Post(func() {
					text := field.Value()
					go func() {
						ev, err := deps.Locations.SetText(ctx, ref, code, text)
						if err != nil {
							s.fail(err.Error())
							return
						}
						_ = s.send(fiber.Map{"type": "saved", "value": ev.Text(), "rd": ev.RD})
					}()
				})
			default:
				s.fail("unknown message type: " + m.Type)
			}
		})
	}
}
