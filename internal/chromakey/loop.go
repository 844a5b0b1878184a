package chromakey

import (
	"sync"
	"time"
)

// PassObserver is told about every pass a loop runs: whether the frame was
// composited or skipped, and how long the pass took.
type PassObserver func(composited bool, took time.Duration)

// LoopOption configures a render loop.
type LoopOption func(*loop)

// WithPassObserver registers fn to be called after each pass. fn runs after
// the loop lock is released, so it may call the loop's stop function.
func WithPassObserver(fn PassObserver) LoopOption {
	return func(l *loop) { l.observe = fn }
}

type loop struct {
	comp  *Compositor
	src   Source
	dst   *Surface
	sched Scheduler

	observe PassObserver

	mu      sync.Mutex
	stopped bool
	pending FrameID
}

// Start runs the compositor against src and dst once per scheduler refresh
// until the returned stop function is called. The first pass runs before
// Start returns; each later pass is requested only after the previous one
// completes.
//
// stop is idempotent. Once it returns no further pass writes to dst; a pass
// already in progress finishes first.
//
// Only one loop may drive a surface at a time. Use a Binder when a surface
// can be re-attached to a new source.
func Start(comp *Compositor, src Source, dst *Surface, sched Scheduler, opts ...LoopOption) (stop func()) {
	l := newLoop(comp, src, dst, sched, opts)
	l.pass()
	return l.stop
}

func newLoop(comp *Compositor, src Source, dst *Surface, sched Scheduler, opts []LoopOption) *loop {
	l := &loop{comp: comp, src: src, dst: dst, sched: sched}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *loop) pass() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	start := time.Now()
	ok := l.comp.Apply(l.src, l.dst)
	took := time.Since(start)
	l.pending = l.sched.RequestFrame(l.pass)
	l.mu.Unlock()

	if l.observe != nil {
		l.observe(ok, took)
	}
}

func (l *loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.sched.CancelFrame(l.pending)
}

// Binder tracks which loop drives each surface and guarantees at most one.
type Binder struct {
	mu    sync.Mutex
	loops map[*Surface]*binding
}

type binding struct {
	stop func()
}

// NewBinder returns an empty Binder.
func NewBinder() *Binder {
	return &Binder{loops: make(map[*Surface]*binding)}
}

// Attach stops any loop currently bound to dst, then starts a new one.
// The returned stop function stops the new loop and releases dst; it is
// idempotent and does not affect a loop attached to dst later.
func (b *Binder) Attach(comp *Compositor, src Source, dst *Surface, sched Scheduler, opts ...LoopOption) (stop func()) {
	b.mu.Lock()
	if prev, ok := b.loops[dst]; ok {
		prev.stop()
	}
	l := newLoop(comp, src, dst, sched, opts)
	bd := &binding{stop: l.stop}
	b.loops[dst] = bd
	b.mu.Unlock()

	// First pass runs outside b.mu so a slow frame never blocks other surfaces.
	l.pass()

	return func() {
		b.mu.Lock()
		if cur, ok := b.loops[dst]; ok && cur == bd {
			delete(b.loops, dst)
		}
		b.mu.Unlock()
		bd.stop()
	}
}

// Detach stops the loop bound to dst, if any.
func (b *Binder) Detach(dst *Surface) {
	b.mu.Lock()
	bd, ok := b.loops[dst]
	if ok {
		delete(b.loops, dst)
	}
	b.mu.Unlock()
	if ok {
		bd.stop()
	}
}

// Len returns the number of surfaces with an active loop.
func (b *Binder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loops)
}
