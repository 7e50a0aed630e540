// Package mapctl drives interactive maps: a single-threaded controller per
// map element that owns marker state, search, clustering and recovery from
// host re-renders, on top of a pluggable provider backend.
package mapctl

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handle cancels a pending timer or asynchronous operation. Cancel reports
// whether the call stopped the operation before it completed.
type Handle interface {
	Cancel() bool
}

// Scheduler is the event loop controllers run on. Every state change
// happens inside a function passed to Post; Go runs blocking work off the
// loop, which hands its result back with Post.
type Scheduler interface {
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) Handle
	Go(fn func())
}

// Loop is a Scheduler backed by a goroutine that runs posted tasks one at a
// time.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
	log   *slog.Logger
}

// NewLoop creates a Loop. Tasks posted before Run are queued.
func NewLoop(log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{tasks: make(chan func(), 256), done: make(chan struct{}), log: log}
}

// Run executes tasks until ctx is cancelled. Tasks posted afterwards are
// discarded.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("map task panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn on the loop.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// AfterFunc posts fn after d unless the returned handle is cancelled first.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	h := &timerHandle{}
	h.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if h.fired.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return h
}

// Go runs fn on its own goroutine.
func (l *Loop) Go(fn func()) {
	go fn()
}

type timerHandle struct {
	timer *time.Timer
	fired atomic.Bool
}

func (h *timerHandle) Cancel() bool {
	h.timer.Stop()
	return h.fired.CompareAndSwap(false, true)
}

// asyncOp is one in-flight operation started with start.
type asyncOp struct {
	cancel context.CancelFunc
	done   atomic.Bool
}

func (o *asyncOp) Cancel() bool {
	if !o.done.CompareAndSwap(false, true) {
		return false
	}
	o.cancel()
	return true
}

// start runs work off the loop and delivers its result on the loop, unless
// the operation was cancelled in the meantime.
func start[T any](s Scheduler, parent context.Context, work func(context.Context) (T, error), deliver func(T, error)) *asyncOp {
	ctx, cancel := context.WithCancel(parent)
	op := &asyncOp{cancel: cancel}
	s.Go(func() {
		v, err := work(ctx)
		s.Post(func() {
			if !op.done.CompareAndSwap(false, true) {
				return
			}
			cancel()
			deliver(v, err)
		})
	})
	return op
}

// pending tracks the cancellable operations of one controller. It is only
// touched from the loop.
type pending map[Handle]struct{}

func (p pending) add(h Handle) Handle {
	p[h] = struct{}{}
	return h
}

func (p pending) remove(h Handle) {
	delete(p, h)
}

func (p pending) cancelAll() {
	for h := range p {
		h.Cancel()
		delete(p, h)
	}
}
