package services

import "github.com/custodia-labs/nexus-canvas/internal/core/domain"

// batchState buffers a group of mutations so observers, history and
// persistence see them once, at the outermost EndBatch.
type batchState struct {
	depth int

	// Items added during the batch. They are already indexed.
	nodes []*domain.Node
	edges []*domain.Edge

	historyPending bool
	savePending    bool

	hold *VisibilityHold
}

// BeginBatch opens a batch. Batches nest; only the outermost one flushes.
// Culling is suppressed from the outermost BeginBatch until shortly after
// the matching EndBatch.
func (c *Canvas) BeginBatch() {
	c.mu.Lock()
	var events []domain.Event
	if c.batch.depth == 0 {
		was := c.visibility.Suppressed()
		c.batch.hold = c.visibility.Acquire()
		if !was {
			c.raise(domain.EventVisibilityChanged)
		}
		events, c.pending = c.pending, nil
	}
	c.batch.depth++
	c.mu.Unlock()
	c.dispatch(events)
}

// EndBatch closes a batch. An unmatched call is ignored.
func (c *Canvas) EndBatch() {
	c.mu.Lock()
	defer c.unlockAndEmit()

	if c.batch.depth == 0 {
		return
	}
	c.batch.depth--
	if c.batch.depth > 0 {
		return
	}
	c.flushBatchLocked()
}

// WithBatchUpdates runs fn inside a batch. The batch is closed even if fn
// panics. fn runs without the canvas lock and may call any method.
func (c *Canvas) WithBatchUpdates(fn func()) {
	c.BeginBatch()
	defer c.EndBatch()
	fn()
}

func (c *Canvas) flushBatchLocked() {
	b := c.batch
	c.batch = batchState{}

	if len(b.nodes) > 0 {
		c.nodes = append(c.nodes, b.nodes...)
	}
	if len(b.edges) > 0 {
		c.edges = append(c.edges, b.edges...)
	}
	if b.historyPending {
		c.scheduleHistoryLocked()
	}
	if b.savePending {
		c.scheduleSaveLocked()
	}
	if b.hold != nil {
		b.hold.Release(c.settings.VisibilityRelease)
	}
}
