package services

import "github.com/custodia-labs/nexus-canvas/internal/core/domain"

type subscription struct {
	id int
	fn func(domain.Event)
}

// Subscribe registers fn for canvas events. Events are delivered after the
// canvas lock is released, so fn may call back into the canvas.
func (c *Canvas) Subscribe(fn func(domain.Event)) func() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// raise queues a change notification. Repeated kinds collapse into one.
// Caller holds c.mu.
func (c *Canvas) raise(kind domain.EventKind) {
	for _, ev := range c.pending {
		if ev.Kind == kind && ev.Err == nil {
			return
		}
	}
	c.pending = append(c.pending, domain.Event{Kind: kind, ProjectID: c.projectID})
}

// unlockAndEmit releases c.mu and delivers queued events. Inside a batch
// the queue is kept until the outermost EndBatch.
func (c *Canvas) unlockAndEmit() {
	var events []domain.Event
	if c.batch.depth == 0 {
		events, c.pending = c.pending, nil
	}
	c.mu.Unlock()
	c.dispatch(events)
}

func (c *Canvas) dispatch(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	c.subsMu.Lock()
	subs := append([]subscription(nil), c.subs...)
	c.subsMu.Unlock()

	for _, ev := range events {
		if c.observer != nil {
			c.observer.OnCanvasEvent(ev)
		}
		for _, s := range subs {
			s.fn(ev)
		}
	}
}

func (c *Canvas) onVisibilitySettled() {
	c.mu.Lock()
	pid := c.projectID
	c.mu.Unlock()
	c.dispatch([]domain.Event{{Kind: domain.EventVisibilityChanged, ProjectID: pid}})
}
