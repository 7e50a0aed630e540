package mapctl

import "context"

// Container is the host element a map is mounted in.
type Container interface {
	// OnReplaced registers fn to run, on the loop, after the host has
	// re-rendered the element.
	OnReplaced(fn func()) (unsubscribe func())
}

// Factory builds a fresh controller for the current element.
type Factory func() Controller

// Binding keeps exactly one controller alive for a container. When the
// host replaces the element, the old controller is closed before a new one
// is initialized at the old controller's center and zoom.
type Binding struct {
	container Container
	factory   Factory
	current   Controller
	unsub     func()
	replaced  int
}

// NewBinding creates a Binding. Call Start from the loop.
func NewBinding(container Container, factory Factory) *Binding {
	return &Binding{container: container, factory: factory}
}

// Start initializes the first controller with the configured view.
func (b *Binding) Start(ctx context.Context) {
	if b.current != nil {
		return
	}
	b.current = b.factory()
	b.current.Initialize(ctx, nil)
	b.unsub = b.container.OnReplaced(func() { b.replace(ctx) })
}

func (b *Binding) replace(ctx context.Context) {
	if b.current == nil {
		return
	}
	vp := b.current.Viewport()
	b.current.Close()
	b.current = b.factory()
	b.current.Initialize(ctx, &vp)
	b.replaced++
}

// Current returns the live controller.
func (b *Binding) Current() Controller { return b.current }

// Replacements counts the re-initializations so far.
func (b *Binding) Replacements() int { return b.replaced }

// Close closes the live controller and stops following the container.
func (b *Binding) Close() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	if b.current != nil {
		b.current.Close()
	}
}
