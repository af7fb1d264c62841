package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

// persistState tracks unsaved changes and the autosave switch.
type persistState struct {
	// autosave is off while a load or restore settles.
	autosave bool
	dirty    bool

	// failures counts consecutive failed saves since the last success or
	// mutation.
	failures int
}

// LoadProject replaces the document with the stored project, migrating
// legacy shapes. A project that was never saved loads as an empty document.
// Unsaved changes to the previous project are flushed first.
func (c *Canvas) LoadProject(ctx context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}
	if c.store == nil {
		return domain.ErrNotImplemented
	}

	c.mu.Lock()
	if c.batch.depth > 0 {
		c.mu.Unlock()
		return domain.ErrBatchInProgress
	}
	if c.history.restoring {
		c.mu.Unlock()
		return domain.ErrRestoreInProgress
	}
	flush := c.projectID != "" && c.persist.dirty
	c.scheduler.Cancel(c.key(keySave))
	c.mu.Unlock()

	if flush {
		if err := c.saveNow(ctx, false); err != nil {
			logger.Warn("canvas: flush before loading %s: %v", projectID, err)
		}
	}

	logger.Section("Load Project")
	data, err := c.store.Get(ctx, projectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	logger.Debug("Read %d bytes for %s", len(data), projectID)

	nodeIDs := newIDAllocator(nodeIDPrefix)
	edgeIDs := newIDAllocator(edgeIDPrefix)
	m, err := migrateSnapshot(data, c.settings.ZMax, nodeIDs, edgeIDs)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	if m.Report.Changed() {
		logger.Info("Migrated %s: dropped %d nodes, pruned %d edges, regenerated %d edge ids, folded %d z values",
			projectID, m.Report.DroppedNodes, m.Report.PrunedEdges, m.Report.RegeneratedEdges, m.Report.FoldedZ)
	}

	c.mu.Lock()
	defer c.unlockAndEmit()

	c.suspendAutosaveLocked()
	c.projectID = projectID
	c.nodes = m.Nodes
	c.edges = m.Edges
	c.viewport = m.Viewport
	c.nodeIDs = nodeIDs
	c.edgeIDs = edgeIDs
	c.index.rebuild(c.nodes, c.edges)
	c.resetHistoryLocked()
	c.persist.dirty = m.Report.Changed()
	c.persist.failures = 0

	c.raise(domain.EventProjectLoaded)
	c.raise(domain.EventNodesChanged)
	c.raise(domain.EventEdgesChanged)
	c.raise(domain.EventViewportChanged)
	c.raise(domain.EventHistoryChanged)
	c.resumeAutosaveLocked()

	logger.Debug("Loaded %s: %d nodes, %d edges", projectID, len(c.nodes), len(c.edges))
	return nil
}

// SaveProject writes the document immediately, cancelling a pending
// debounced save.
func (c *Canvas) SaveProject(ctx context.Context) error {
	c.mu.Lock()
	c.scheduler.Cancel(c.key(keySave))
	c.mu.Unlock()
	return c.saveNow(ctx, false)
}

// Close cancels pending work and flushes unsaved changes.
// The canvas stays readable but schedules nothing afterwards.
func (c *Canvas) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, k := range []string{keyHistory, keySave, keyAutosave} {
		c.scheduler.Cancel(c.key(k))
	}
	c.history.pending = false
	flush := c.persist.dirty && c.projectID != "" && c.store != nil
	c.mu.Unlock()

	if !flush {
		return nil
	}
	return c.saveNow(ctx, false)
}

// scheduleSaveLocked (re)starts the save debounce when autosave is on.
// While autosave is suspended the dirty flag is kept and picked up on resume.
func (c *Canvas) scheduleSaveLocked() {
	if c.closed || c.store == nil || c.projectID == "" {
		return
	}
	if c.batch.depth > 0 {
		c.batch.savePending = true
		return
	}
	if !c.persist.autosave {
		return
	}
	c.scheduler.Debounce(c.key(keySave), c.settings.SaveDebounce, c.onSaveTimer)
}

func (c *Canvas) onSaveTimer() {
	c.mu.Lock()
	if c.batch.depth > 0 {
		c.batch.savePending = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Failures are reported through events and rescheduled by save.
	_ = c.saveNow(context.Background(), true)
}

func (c *Canvas) suspendAutosaveLocked() {
	c.persist.autosave = false
	c.scheduler.Cancel(c.key(keySave))
	c.scheduler.Cancel(c.key(keyAutosave))
}

// resumeAutosaveLocked re-enables autosave once the settle period passes.
func (c *Canvas) resumeAutosaveLocked() {
	if c.closed {
		return
	}
	c.scheduler.Debounce(c.key(keyAutosave), c.settings.AutosaveSettle, func() {
		c.mu.Lock()
		defer c.unlockAndEmit()
		c.persist.autosave = true
		if c.persist.dirty {
			c.scheduleSaveLocked()
		}
	})
}

func (c *Canvas) saveNow(ctx context.Context, background bool) error {
	events, err := c.save(ctx, background)
	c.dispatch(events)
	return err
}

// save encodes the document and writes it to the store. Background saves
// skip clean documents and reschedule themselves after a failure, up to
// the retry limit.
func (c *Canvas) save(ctx context.Context, background bool) ([]domain.Event, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.store == nil {
		c.mu.Unlock()
		return nil, domain.ErrNotImplemented
	}
	if c.projectID == "" {
		c.mu.Unlock()
		return nil, domain.ErrNoProject
	}
	if background && !c.persist.dirty {
		c.mu.Unlock()
		return nil, nil
	}
	pid := c.projectID
	snap := domain.Snapshot{
		Nodes:    cloneNodes(c.allNodesLocked()),
		Edges:    cloneEdges(c.allEdgesLocked()),
		Viewport: c.viewport,
	}
	c.persist.dirty = false
	c.mu.Unlock()

	data, err := json.Marshal(snap)
	if err == nil {
		err = c.store.Put(ctx, pid, data)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.projectID == pid {
			c.persist.dirty = true
		}
		c.persist.failures++
		if background {
			logger.Error("canvas: save %s failed (attempt %d): %v", pid, c.persist.failures, err)
		} else {
			logger.Warn("canvas: save %s failed (attempt %d): %v", pid, c.persist.failures, err)
		}
		if background && c.projectID == pid && c.persist.failures <= c.settings.SaveRetryLimit {
			c.scheduleSaveLocked()
		}
		return []domain.Event{{Kind: domain.EventSaveFailed, ProjectID: pid, Err: err}},
			fmt.Errorf("save project %s: %w", pid, err)
	}

	c.persist.failures = 0
	logger.Debug("canvas: saved %s (%d bytes)", pid, len(data))
	return []domain.Event{{Kind: domain.EventProjectSaved, ProjectID: pid}}, nil
}
