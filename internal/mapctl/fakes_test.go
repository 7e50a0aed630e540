package mapctl_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/mapctl"
)

// manualScheduler runs posted tasks and background work only when the test
// drains it, and fires timers only when the test advances its clock.
type manualScheduler struct {
	now    time.Duration
	queue  []func()
	timers []*manualTimer
}

type manualTimer struct {
	due       time.Duration
	fn        func()
	fired     bool
	cancelled bool
}

func (t *manualTimer) Cancel() bool {
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

func (s *manualScheduler) Post(fn func()) { s.queue = append(s.queue, fn) }

func (s *manualScheduler) Go(fn func()) { s.queue = append(s.queue, fn) }

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) mapctl.Handle {
	t := &manualTimer{due: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Drain() {
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue = s.queue[1:]
		fn()
	}
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.now += d
	for _, t := range s.timers {
		if !t.fired && !t.cancelled && t.due <= s.now {
			t.fired = true
			s.Post(t.fn)
		}
	}
	s.Drain()
}

type fakeFetcher struct {
	mu    sync.Mutex
	body  map[string]string
	fail  map[string]bool
	count map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{body: map[string]string{}, fail: map[string]bool{}, count: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count[url]++
	if f.fail[url] {
		return nil, errors.New("connection reset")
	}
	return []byte(f.body[url]), nil
}

func (f *fakeFetcher) calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count[url]
}

type fakeField struct {
	value     string
	hidden    bool
	next      int
	listeners map[int]func(string)
}

func newFakeField(value string) *fakeField {
	return &fakeField{value: value, listeners: map[int]func(string){}}
}

func (f *fakeField) Value() string        { return f.value }
func (f *fakeField) SetValue(text string) { f.value = text }
func (f *fakeField) SetHidden(h bool)     { f.hidden = h }

func (f *fakeField) OnChange(fn func(string)) func() {
	f.next++
	id := f.next
	f.listeners[id] = fn
	return func() { delete(f.listeners, id) }
}

// Type simulates the host writing the field.
func (f *fakeField) Type(text string) {
	f.value = text
	for _, fn := range f.listeners {
		fn(text)
	}
}

type fakeContainer struct {
	fns map[int]func()
	n   int
}

func (c *fakeContainer) OnReplaced(fn func()) func() {
	if c.fns == nil {
		c.fns = map[int]func(){}
	}
	c.n++
	id := c.n
	c.fns[id] = fn
	return func() { delete(c.fns, id) }
}

func (c *fakeContainer) Replace() {
	for _, fn := range c.fns {
		fn()
	}
}

type recorder struct {
	cmds []mapctl.Command
}

func (r *recorder) Render(cmd mapctl.Command) { r.cmds = append(r.cmds, cmd) }

func (r *recorder) count(op string) int {
	n := 0
	for _, c := range r.cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

type fakeGeocoder struct {
	calls []string
	fn    func(address string) (domain.Coordinate, error)
}

func (g *fakeGeocoder) Name() string { return "fake" }

func (g *fakeGeocoder) Geocode(ctx context.Context, address string, bias domain.Bounds) (domain.GeocodeResult, error) {
	g.calls = append(g.calls, address)
	pos, err := g.fn(address)
	if err != nil {
		return domain.GeocodeResult{}, err
	}
	return domain.GeocodeResult{Query: address, Position: pos, Provider: g.Name()}, nil
}
