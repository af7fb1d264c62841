package services

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

// historyState is the bounded undo/redo stack.
// entries[index] is the state currently shown, unless a capture is pending.
type historyState struct {
	entries    []*domain.HistoryEntry
	index      int
	pending    bool
	restoring  bool
	compacting bool
}

// historyPayload is what a compacted entry encodes.
type historyPayload struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// CanUndo returns true if Undo would move the history pointer.
func (c *Canvas) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.index > 0 || c.pendingCaptureRecordsLocked()
}

// CanRedo returns true if Redo would move the history pointer.
func (c *Canvas) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := &c.history
	return h.index < len(h.entries)-1 && !c.pendingCaptureRecordsLocked()
}

// pendingCaptureRecordsLocked reports whether flushing the pending capture
// would append an entry. Edits reverted within the throttle window do not.
func (c *Canvas) pendingCaptureRecordsLocked() bool {
	h := &c.history
	if !h.pending || len(h.entries) == 0 {
		return false
	}
	cur := h.entries[h.index]
	return cur.IsCompressed() || !sameGraph(cur, c.captureEntryLocked())
}

// Undo restores the previous history entry. A pending capture is recorded
// first, so the most recent edit is always undoable.
func (c *Canvas) Undo() error {
	return c.step(-1)
}

// Redo restores the next history entry.
func (c *Canvas) Redo() error {
	return c.step(1)
}

func (c *Canvas) step(delta int) error {
	c.mu.Lock()
	if c.history.restoring {
		c.mu.Unlock()
		return domain.ErrRestoreInProgress
	}
	if c.batch.depth > 0 {
		c.mu.Unlock()
		return domain.ErrBatchInProgress
	}
	c.flushHistoryLocked()

	target := c.history.index + delta
	switch {
	case target < 0:
		c.unlockAndEmit()
		return domain.ErrNothingToUndo
	case target >= len(c.history.entries):
		c.unlockAndEmit()
		return domain.ErrNothingToRedo
	}

	entry := c.history.entries[target]
	nodes, edges := entry.Nodes, entry.Edges
	compressed, codecName := entry.Compressed, entry.Codec
	c.history.restoring = true
	c.suspendAutosaveLocked()
	c.mu.Unlock()

	var err error
	if compressed != nil {
		nodes, edges, err = decodeEntry(c.codec, codecName, compressed)
	}

	c.mu.Lock()
	defer c.unlockAndEmit()
	c.history.restoring = false

	if err != nil {
		c.resumeAutosaveLocked()
		logger.Warn("history: restore entry %d failed: %v", target, err)
		return fmt.Errorf("restore history entry: %w", err)
	}

	c.history.index = target
	c.nodes = nodePointers(nodes)
	c.edges = edgePointers(edges)
	c.index.rebuild(c.nodes, c.edges)
	c.seedAllocatorsLocked()

	c.raise(domain.EventNodesChanged)
	c.raise(domain.EventEdgesChanged)
	c.raise(domain.EventHistoryChanged)
	c.persist.dirty = true
	c.persist.failures = 0
	c.resumeAutosaveLocked()
	return nil
}

func (c *Canvas) seedAllocatorsLocked() {
	for _, n := range c.nodes {
		c.nodeIDs.Seed([]string{n.ID})
	}
	for _, e := range c.edges {
		c.edgeIDs.Seed([]string{e.ID})
	}
}

// resetHistoryLocked makes the current document the only entry.
func (c *Canvas) resetHistoryLocked() {
	c.scheduler.Cancel(c.key(keyHistory))
	c.history.entries = []*domain.HistoryEntry{c.captureEntryLocked()}
	c.history.index = 0
	c.history.pending = false
}

func (c *Canvas) captureEntryLocked() *domain.HistoryEntry {
	return &domain.HistoryEntry{
		Nodes: cloneNodes(c.allNodesLocked()),
		Edges: cloneEdges(c.allEdgesLocked()),
	}
}

// scheduleHistoryLocked arranges for the current state to be captured once
// the mutation burst settles. Restores never record history.
func (c *Canvas) scheduleHistoryLocked() {
	if c.history.restoring || c.closed {
		return
	}
	if c.batch.depth > 0 {
		c.batch.historyPending = true
		return
	}
	c.history.pending = true
	c.scheduler.Debounce(c.key(keyHistory), c.settings.HistoryThrottle, c.onHistoryTimer)
}

func (c *Canvas) onHistoryTimer() {
	c.mu.Lock()
	defer c.unlockAndEmit()

	if !c.history.pending || c.history.restoring {
		return
	}
	if c.batch.depth > 0 {
		c.history.pending = false
		c.batch.historyPending = true
		return
	}
	c.captureHistoryLocked()
}

// flushHistoryLocked records a pending capture immediately.
func (c *Canvas) flushHistoryLocked() {
	if !c.history.pending {
		return
	}
	c.scheduler.Cancel(c.key(keyHistory))
	c.captureHistoryLocked()
}

func (c *Canvas) captureHistoryLocked() {
	h := &c.history
	h.pending = false

	entry := c.captureEntryLocked()
	if cur := h.entries[h.index]; !cur.IsCompressed() && sameGraph(cur, entry) {
		return
	}

	for i := h.index + 1; i < len(h.entries); i++ {
		h.entries[i] = nil
	}
	h.entries = append(h.entries[:h.index+1], entry)
	if over := len(h.entries) - c.settings.MaxHistory; over > 0 {
		h.entries = append([]*domain.HistoryEntry(nil), h.entries[over:]...)
	}
	h.index = len(h.entries) - 1

	c.raise(domain.EventHistoryChanged)
	c.scheduleCompactionLocked()
}

func sameGraph(a, b *domain.HistoryEntry) bool {
	return reflect.DeepEqual(a.Nodes, b.Nodes) && reflect.DeepEqual(a.Edges, b.Edges)
}

// scheduleCompactionLocked queues idle-time compression of entries older
// than the retention window. At most one compaction is queued at a time.
func (c *Canvas) scheduleCompactionLocked() {
	if c.codec == nil || c.history.compacting || c.closed {
		return
	}
	if len(c.compactionCandidatesLocked()) == 0 {
		return
	}
	c.history.compacting = true
	c.scheduler.Idle(c.compactHistory)
}

func (c *Canvas) compactionCandidatesLocked() []*domain.HistoryEntry {
	h := &c.history
	cutoff := len(h.entries) - c.settings.CompactionRetention
	var out []*domain.HistoryEntry
	for i := 0; i < cutoff; i++ {
		if i == h.index || h.entries[i].IsCompressed() {
			continue
		}
		out = append(out, h.entries[i])
	}
	return out
}

func (c *Canvas) compactHistory() {
	type job struct {
		entry   *domain.HistoryEntry
		payload historyPayload
	}

	c.mu.Lock()
	candidates := c.compactionCandidatesLocked()
	jobs := make([]job, 0, len(candidates))
	for _, e := range candidates {
		jobs = append(jobs, job{entry: e, payload: historyPayload{Nodes: e.Nodes, Edges: e.Edges}})
	}
	codec := c.codec
	c.mu.Unlock()

	packed := make(map[*domain.HistoryEntry][]byte, len(jobs))
	for _, j := range jobs {
		raw, err := json.Marshal(j.payload)
		if err != nil {
			logger.Error("history: encode entry for compaction: %v", err)
			continue
		}
		out, err := codec.Compress(raw)
		if err != nil {
			logger.Error("history: compress entry with %s: %v", codec.Name(), err)
			continue
		}
		packed[j.entry] = out
	}

	c.mu.Lock()
	defer c.unlockAndEmit()
	c.history.compacting = false

	n := 0
	for i, e := range c.history.entries {
		out, ok := packed[e]
		if !ok || i == c.history.index || e.IsCompressed() {
			continue
		}
		e.Compressed = out
		e.Codec = codec.Name()
		e.Nodes = nil
		e.Edges = nil
		n++
	}
	if n > 0 {
		c.raise(domain.EventHistoryCompacted)
		logger.Debug("history: compacted %d entries with %s", n, codec.Name())
	}
}

func decodeEntry(codec driven.CompactionCodec, name string, compressed []byte) ([]domain.Node, []domain.Edge, error) {
	if codec == nil || codec.Name() != name {
		return nil, nil, fmt.Errorf("%w: entry was compacted with %q", domain.ErrCodecUnavailable, name)
	}
	raw, err := codec.Decompress(compressed)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress history entry: %w", err)
	}
	var p historyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("decode history entry: %w", err)
	}
	return p.Nodes, p.Edges, nil
}
