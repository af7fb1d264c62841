package driving

import (
	"context"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// CanvasService is the public mutation and query API of a canvas document.
//
// Mutations on unknown ids are no-ops rather than errors: generation
// callbacks routinely resolve after the user deleted their node.
type CanvasService interface {
	// AddNode creates a node with type-default data merged with overrides.
	AddNode(nodeType domain.NodeType, pos domain.Position, overrides map[string]any) string

	// UpdateNode applies a partial update. Invalid fields are ignored.
	UpdateNode(id string, patch domain.NodePatch)

	// RemoveNode removes a node and every edge referencing it.
	RemoveNode(id string)

	// DuplicateNode clones a node, offset and stacked on top.
	// Returns "" if the node does not exist.
	DuplicateNode(id string) string

	// AddEdge connects two existing nodes. Returns "" if either is missing.
	AddEdge(params domain.EdgeParams) string

	// UpdateEdge shallow-merges data into an edge.
	UpdateEdge(id string, data map[string]any)

	// RemoveEdge removes an edge.
	RemoveEdge(id string)

	// ClearCanvas empties the document and resets id allocation.
	ClearCanvas()

	// PruneDanglingEdges removes edges whose endpoints are not in existing.
	// A nil slice means the current node set.
	PruneDanglingEdges(existing []string)

	// UpdateViewport replaces the viewport.
	UpdateViewport(v domain.Viewport)

	// BeginBatch opens a (possibly nested) batch.
	BeginBatch()

	// EndBatch closes a batch; the outermost close flushes.
	EndBatch()

	// WithBatchUpdates runs fn inside a batch.
	WithBatchUpdates(fn func())

	// Undo restores the previous history entry.
	// Returns a domain notice error when nothing was done.
	Undo() error

	// Redo restores the next history entry.
	Redo() error

	// CanUndo returns true if Undo would move the history pointer.
	CanUndo() bool

	// CanRedo returns true if Redo would move the history pointer.
	CanRedo() bool

	// GetNodeByID returns a copy of the node.
	GetNodeByID(id string) (domain.Node, bool)

	// GetIncomingEdges returns edges targeting id, in input order.
	GetIncomingEdges(id string) []domain.Edge

	// GetOutgoingEdges returns edges leaving id, in insertion order.
	GetOutgoingEdges(id string) []domain.Edge

	// Nodes returns copies of all nodes in document order.
	Nodes() []domain.Node

	// Edges returns copies of all edges in document order.
	Edges() []domain.Edge

	// Viewport returns the current viewport.
	Viewport() domain.Viewport

	// CollectUpstreamInputs resolves the prompt and reference inputs of a node.
	CollectUpstreamInputs(focusID string) domain.UpstreamInputs

	// LoadProject replaces the document with the stored project.
	LoadProject(ctx context.Context, projectID string) error

	// SaveProject writes the document immediately.
	SaveProject(ctx context.Context) error

	// ProjectID returns the loaded project, or "".
	ProjectID() string

	// Subscribe registers fn for canvas events. Call the returned func to stop.
	Subscribe(fn func(domain.Event)) (unsubscribe func())

	// VisibilitySuppressed reports whether renderers should skip culling.
	VisibilitySuppressed() bool

	// Close cancels pending work and flushes unsaved changes.
	Close(ctx context.Context) error
}
