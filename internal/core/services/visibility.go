package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

// VisibilityGuard tells renderers when to skip viewport culling.
//
// Culling is suppressed while at least one hold is outstanding. When the
// last hold is released, culling comes back after the release delay unless
// a new hold arrives first.
type VisibilityGuard struct {
	mu         sync.Mutex
	scheduler  driven.Scheduler
	releaseKey string
	bumpKey    string
	onSettle   func()

	count      int
	suppressed bool
	bumpHold   *VisibilityHold
}

// VisibilityHold is one outstanding suppression. Release is idempotent.
type VisibilityHold struct {
	guard *VisibilityGuard
	once  sync.Once
}

// NewVisibilityGuard creates a guard that schedules its timers under keyPrefix.
// onSettle, if non-nil, runs on the scheduler goroutine when culling is
// re-enabled.
func NewVisibilityGuard(scheduler driven.Scheduler, keyPrefix string, onSettle func()) *VisibilityGuard {
	return &VisibilityGuard{
		scheduler:  scheduler,
		releaseKey: keyPrefix + "visibility",
		bumpKey:    keyPrefix + "visibility-bump",
		onSettle:   onSettle,
	}
}

// Acquire suppresses culling until the returned hold is released.
func (g *VisibilityGuard) Acquire() *VisibilityHold {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.acquireLocked()
}

func (g *VisibilityGuard) acquireLocked() *VisibilityHold {
	g.count++
	g.suppressed = true
	g.scheduler.Cancel(g.releaseKey)
	return &VisibilityHold{guard: g}
}

// Release returns the hold. Culling resumes delay after the last release.
func (h *VisibilityHold) Release(delay time.Duration) {
	h.once.Do(func() {
		h.guard.release(delay)
	})
}

func (g *VisibilityGuard) release(delay time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count > 0 {
		g.count--
	}
	if g.count == 0 {
		g.scheduler.Debounce(g.releaseKey, delay, g.settle)
	}
}

func (g *VisibilityGuard) settle() {
	g.mu.Lock()
	if g.count > 0 || !g.suppressed {
		g.mu.Unlock()
		return
	}
	g.suppressed = false
	g.mu.Unlock()

	if g.onSettle != nil {
		g.onSettle()
	}
}

// Bump suppresses culling for window, then releases with delay.
// Bumps inside the window extend it rather than stacking holds.
func (g *VisibilityGuard) Bump(window, delay time.Duration) {
	g.mu.Lock()
	if g.bumpHold == nil {
		g.bumpHold = g.acquireLocked()
	}
	g.mu.Unlock()

	g.scheduler.Debounce(g.bumpKey, window, func() {
		g.mu.Lock()
		h := g.bumpHold
		g.bumpHold = nil
		g.mu.Unlock()
		if h != nil {
			h.Release(delay)
		}
	})
}

// Suppressed reports whether culling is currently off.
func (g *VisibilityGuard) Suppressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suppressed
}

// Holds returns the number of outstanding holds.
func (g *VisibilityGuard) Holds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
