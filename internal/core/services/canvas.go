package services

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

// Ensure Canvas implements the interface.
var _ driving.CanvasService = (*Canvas)(nil)

// Scheduler keys, prefixed per canvas so canvases can share a scheduler.
const (
	keyHistory  = "history"
	keySave     = "save"
	keyAutosave = "autosave"
)

var canvasSeq atomic.Uint64

// Canvas is the in-memory graph document of one project.
//
// Every public method and every scheduled callback runs under mu. Observers
// are notified after mu is released; store I/O and codec work happen
// outside it as well.
type Canvas struct {
	mu sync.Mutex

	settings  domain.CanvasSettings
	store     driven.ProjectStore
	scheduler driven.Scheduler
	codec     driven.CompactionCodec
	observer  driven.CanvasObserver
	now       func() time.Time
	keyPrefix string

	projectID string
	nodes     []*domain.Node
	edges     []*domain.Edge
	viewport  domain.Viewport

	nodeIDs *idAllocator
	edgeIDs *idAllocator
	index   *adjacencyIndex

	batch      batchState
	visibility *VisibilityGuard
	history    historyState
	persist    persistState
	closed     bool

	pending []domain.Event

	subsMu  sync.Mutex
	subs    []subscription
	nextSub int

	// saveMu orders store writes so an older snapshot never lands last.
	saveMu sync.Mutex
}

// NewCanvas creates an empty canvas with no project loaded.
// The scheduler is required. store, codec and observer are optional:
// without a store the canvas is never persisted, without a codec history
// is never compacted.
func NewCanvas(
	settings domain.CanvasSettings,
	store driven.ProjectStore,
	scheduler driven.Scheduler,
	codec driven.CompactionCodec,
	observer driven.CanvasObserver,
) *Canvas {
	defaults := domain.DefaultCanvasSettings()
	if settings.ZMax < 1 {
		settings.ZMax = defaults.ZMax
	}
	if settings.MaxHistory < 1 {
		settings.MaxHistory = defaults.MaxHistory
	}
	if settings.CompactionRetention < 1 {
		settings.CompactionRetention = defaults.CompactionRetention
	}

	c := &Canvas{
		settings:  settings,
		store:     store,
		scheduler: scheduler,
		codec:     codec,
		observer:  observer,
		now:       time.Now,
		keyPrefix: fmt.Sprintf("canvas/%d/", canvasSeq.Add(1)),
		viewport:  domain.DefaultViewport(),
		nodeIDs:   newIDAllocator(nodeIDPrefix),
		edgeIDs:   newIDAllocator(edgeIDPrefix),
		index:     newAdjacencyIndex(),
	}
	c.persist.autosave = true
	c.visibility = NewVisibilityGuard(scheduler, c.keyPrefix, c.onVisibilitySettled)
	c.resetHistoryLocked()
	return c
}

func (c *Canvas) key(name string) string {
	return c.keyPrefix + name
}

// Settings returns the effective tunables.
func (c *Canvas) Settings() domain.CanvasSettings {
	return c.settings
}

// ProjectID returns the loaded project, or "".
func (c *Canvas) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID
}

// VisibilitySuppressed reports whether renderers should skip culling.
func (c *Canvas) VisibilitySuppressed() bool {
	return c.visibility.Suppressed()
}

// AddNode creates a node with type-default data merged with overrides.
// A non-finite position is replaced with the origin.
func (c *Canvas) AddNode(nodeType domain.NodeType, pos domain.Position, overrides map[string]any) string {
	c.mu.Lock()
	defer c.unlockAndEmit()

	if !pos.IsFinite() {
		pos = domain.Position{}
	}

	data := domain.DefaultNodeData(nodeType)
	for k, v := range overrides {
		data[k] = domain.CloneValue(v)
	}
	ts := c.now().UnixMilli()
	data[domain.DataKeyCreatedAt] = ts
	data[domain.DataKeyUpdatedAt] = ts

	n := &domain.Node{
		ID:       c.nodeIDs.Next(c.index.hasID),
		Type:     nodeType,
		Position: pos,
		Data:     data,
	}
	c.appendNodeLocked(n)
	c.bumpVisibilityLocked()
	c.markChangedLocked(true, false)

	logger.Debug("canvas: added %s node %s", nodeType, n.ID)
	return n.ID
}

// UpdateNode applies a partial update. Unknown ids are ignored, as are
// non-finite coordinates and negative zIndex values.
func (c *Canvas) UpdateNode(id string, patch domain.NodePatch) {
	c.mu.Lock()
	defer c.unlockAndEmit()

	n, ok := c.index.nodes[id]
	if !ok {
		return
	}

	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	changed := false
	resized := false
	for k, v := range patch.Data {
		n.Data[k] = domain.CloneValue(v)
		changed = true
		if c.settings.IsSizeAffecting(k) {
			resized = true
		}
	}
	if p := patch.Position; p != nil {
		if finite(p.X) && p.X != n.Position.X {
			n.Position.X = p.X
			changed = true
		}
		if finite(p.Y) && p.Y != n.Position.Y {
			n.Position.Y = p.Y
			changed = true
		}
	}
	if z := patch.ZIndex; z != nil && *z >= 0 && *z != n.ZIndex {
		n.ZIndex = *z
		changed = true
		if n.ZIndex > c.settings.ZMax {
			normalizeZ(c.allNodesLocked(), c.settings.ZMax)
		}
	}
	if !changed {
		return
	}

	n.Data[domain.DataKeyUpdatedAt] = c.now().UnixMilli()
	if resized {
		c.bumpVisibilityLocked()
	}
	c.markChangedLocked(true, false)
}

// RemoveNode removes a node and every edge referencing it.
func (c *Canvas) RemoveNode(id string) {
	c.mu.Lock()
	defer c.unlockAndEmit()

	n, ok := c.index.nodes[id]
	if !ok {
		return
	}

	drop := make(map[*domain.Edge]struct{})
	for _, e := range c.index.edgesOf(id) {
		drop[e] = struct{}{}
	}
	c.dropEdgesLocked(drop)

	isNode := func(x *domain.Node) bool { return x == n }
	c.nodes = slices.DeleteFunc(c.nodes, isNode)
	c.batch.nodes = slices.DeleteFunc(c.batch.nodes, isNode)
	c.index.removeNode(id)

	c.markChangedLocked(true, len(drop) > 0)
	logger.Debug("canvas: removed node %s and %d edges", id, len(drop))
}

// DuplicateNode clones a node, offset by the configured distance and placed
// above every other node. Returns "" if the node does not exist.
func (c *Canvas) DuplicateNode(id string) string {
	c.mu.Lock()
	defer c.unlockAndEmit()

	src, ok := c.index.nodes[id]
	if !ok {
		return ""
	}

	all := c.allNodesLocked()
	top := maxZ(all) + 1
	if top > c.settings.ZMax {
		normalizeZ(all, c.settings.ZMax)
		top = clampZ(maxZ(all)+1, c.settings.ZMax)
	}

	data := domain.CloneData(src.Data)
	if data == nil {
		data = map[string]any{}
	}
	ts := c.now().UnixMilli()
	data[domain.DataKeyCreatedAt] = ts
	data[domain.DataKeyUpdatedAt] = ts

	dup := &domain.Node{
		ID:   c.nodeIDs.Next(c.index.hasID),
		Type: src.Type,
		Position: domain.Position{
			X: src.Position.X + c.settings.DuplicateOffset.X,
			Y: src.Position.Y + c.settings.DuplicateOffset.Y,
		},
		Data:   data,
		ZIndex: top,
	}
	c.appendNodeLocked(dup)
	c.bumpVisibilityLocked()
	c.markChangedLocked(true, false)
	return dup.ID
}

// AddEdge connects two existing nodes and returns the edge id.
//
// A requested id is kept unless it is already in use. When either endpoint
// cannot be resolved the index is rebuilt from the document and dangling
// edges are pruned, so nothing is added and "" is returned.
func (c *Canvas) AddEdge(p domain.EdgeParams) string {
	c.mu.Lock()
	defer c.unlockAndEmit()

	if !c.index.hasNode(p.Source) || !c.index.hasNode(p.Target) {
		logger.Debug("canvas: edge %s -> %s has an unknown endpoint, rebuilding index", p.Source, p.Target)
		c.index.rebuild(c.allNodesLocked(), c.allEdgesLocked())
		if c.pruneLocked(c.index.hasNode) {
			c.markChangedLocked(false, true)
		}
		return ""
	}

	id := p.ID
	if id == "" || c.index.hasID(id) {
		id = c.edgeIDs.Next(c.index.hasID)
	} else {
		c.edgeIDs.Seed([]string{id})
	}

	e := &domain.Edge{
		ID:           id,
		Source:       p.Source,
		Target:       p.Target,
		SourceHandle: p.SourceHandle,
		TargetHandle: p.TargetHandle,
		Data:         domain.CloneData(p.Data),
	}
	if c.batch.depth > 0 {
		c.batch.edges = append(c.batch.edges, e)
	} else {
		c.edges = append(c.edges, e)
	}
	c.index.addEdge(e)
	c.markChangedLocked(false, true)
	return id
}

// UpdateEdge shallow-merges data into an edge. Unknown ids are ignored.
func (c *Canvas) UpdateEdge(id string, data map[string]any) {
	c.mu.Lock()
	defer c.unlockAndEmit()

	e, ok := c.index.edges[id]
	if !ok || len(data) == 0 {
		return
	}
	if e.Data == nil {
		e.Data = make(map[string]any, len(data))
	}
	for k, v := range data {
		e.Data[k] = domain.CloneValue(v)
	}
	c.markChangedLocked(false, true)
}

// RemoveEdge removes an edge. Unknown ids are ignored.
func (c *Canvas) RemoveEdge(id string) {
	c.mu.Lock()
	defer c.unlockAndEmit()

	e, ok := c.index.edges[id]
	if !ok {
		return
	}
	c.dropEdgesLocked(map[*domain.Edge]struct{}{e: {}})
	c.markChangedLocked(false, true)
}

// ClearCanvas empties the document and restarts id numbering.
// The clear itself is recorded in history and can be undone.
func (c *Canvas) ClearCanvas() {
	c.mu.Lock()
	defer c.unlockAndEmit()

	c.nodes = nil
	c.edges = nil
	c.batch.nodes = nil
	c.batch.edges = nil
	c.nodeIDs.Reset()
	c.edgeIDs.Reset()
	c.index.reset()
	c.markChangedLocked(true, true)
}

// PruneDanglingEdges removes every edge whose source or target is not in
// existing. A nil slice means the current node set.
func (c *Canvas) PruneDanglingEdges(existing []string) {
	c.mu.Lock()
	defer c.unlockAndEmit()

	keep := c.index.hasNode
	if existing != nil {
		set := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			set[id] = struct{}{}
		}
		keep = func(id string) bool {
			_, ok := set[id]
			return ok
		}
	}
	if c.pruneLocked(keep) {
		c.markChangedLocked(false, true)
	}
}

// UpdateViewport replaces the viewport. It is persisted but not recorded
// in history.
func (c *Canvas) UpdateViewport(v domain.Viewport) {
	c.mu.Lock()
	defer c.unlockAndEmit()

	v = v.Sanitize()
	if v == c.viewport {
		return
	}
	c.viewport = v
	c.raise(domain.EventViewportChanged)
	c.persist.dirty = true
	c.scheduleSaveLocked()
}

// GetNodeByID returns a copy of the node, including nodes added in an
// open batch.
func (c *Canvas) GetNodeByID(id string) (domain.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.index.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return n.Clone(), true
}

// GetIncomingEdges returns edges targeting id: edges with an order hint
// first by ascending hint, then the rest in insertion order.
func (c *Canvas) GetIncomingEdges(id string) []domain.Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEdges(c.index.incomingOrdered(id))
}

// GetOutgoingEdges returns edges leaving id in insertion order.
func (c *Canvas) GetOutgoingEdges(id string) []domain.Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEdges(c.index.outgoing[id])
}

// Nodes returns copies of all nodes in document order.
func (c *Canvas) Nodes() []domain.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneNodes(c.allNodesLocked())
}

// Edges returns copies of all edges in document order.
func (c *Canvas) Edges() []domain.Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEdges(c.allEdgesLocked())
}

// Viewport returns the current viewport.
func (c *Canvas) Viewport() domain.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// CollectUpstreamInputs resolves the prompt and reference inputs that
// focusID contributes to the generator nodes it feeds.
func (c *Canvas) CollectUpstreamInputs(focusID string) domain.UpstreamInputs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return collectUpstream(c.index, focusID)
}

func (c *Canvas) appendNodeLocked(n *domain.Node) {
	if c.batch.depth > 0 {
		c.batch.nodes = append(c.batch.nodes, n)
	} else {
		c.nodes = append(c.nodes, n)
	}
	c.index.addNode(n)
}

// allNodesLocked returns live nodes followed by batch-buffered ones.
func (c *Canvas) allNodesLocked() []*domain.Node {
	if len(c.batch.nodes) == 0 {
		return c.nodes
	}
	return append(slices.Clip(c.nodes), c.batch.nodes...)
}

func (c *Canvas) allEdgesLocked() []*domain.Edge {
	if len(c.batch.edges) == 0 {
		return c.edges
	}
	return append(slices.Clip(c.edges), c.batch.edges...)
}

func (c *Canvas) dropEdgesLocked(drop map[*domain.Edge]struct{}) {
	if len(drop) == 0 {
		return
	}
	dropped := func(e *domain.Edge) bool {
		_, ok := drop[e]
		return ok
	}
	c.edges = slices.DeleteFunc(c.edges, dropped)
	c.batch.edges = slices.DeleteFunc(c.batch.edges, dropped)
	for e := range drop {
		c.index.removeEdge(e)
	}
}

// pruneLocked drops edges with an endpoint rejected by keep.
// Returns true if any edge was removed.
func (c *Canvas) pruneLocked(keep func(string) bool) bool {
	drop := make(map[*domain.Edge]struct{})
	for _, e := range c.allEdgesLocked() {
		if !keep(e.Source) || !keep(e.Target) {
			drop[e] = struct{}{}
		}
	}
	c.dropEdgesLocked(drop)
	return len(drop) > 0
}

// markChangedLocked records a graph mutation: observers, history and
// persistence are all notified.
func (c *Canvas) markChangedLocked(nodes, edges bool) {
	if nodes {
		c.raise(domain.EventNodesChanged)
	}
	if edges {
		c.raise(domain.EventEdgesChanged)
	}
	c.scheduleHistoryLocked()
	c.persist.dirty = true
	c.persist.failures = 0
	c.scheduleSaveLocked()
}

// bumpVisibilityLocked suppresses culling briefly around a single mutation.
// Batches hold the guard for their whole duration instead.
func (c *Canvas) bumpVisibilityLocked() {
	if c.batch.depth > 0 {
		return
	}
	was := c.visibility.Suppressed()
	c.visibility.Bump(c.settings.VisibilityBump, c.settings.VisibilityRelease)
	if !was {
		c.raise(domain.EventVisibilityChanged)
	}
}

func cloneNodes(nodes []*domain.Node) []domain.Node {
	out := make([]domain.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneEdges(edges []*domain.Edge) []domain.Edge {
	out := make([]domain.Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}

func nodePointers(nodes []domain.Node) []*domain.Node {
	out := make([]*domain.Node, len(nodes))
	for i := range nodes {
		n := nodes[i].Clone()
		out[i] = &n
	}
	return out
}

func edgePointers(edges []domain.Edge) []*domain.Edge {
	out := make([]*domain.Edge, len(edges))
	for i := range edges {
		e := edges[i].Clone()
		out[i] = &e
	}
	return out
}
