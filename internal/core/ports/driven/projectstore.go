package driven

import (
	"context"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// ProjectStore persists encoded canvas snapshots keyed by project ID.
// The core treats it as an opaque key-value store: values are the JSON
// encoding of domain.Snapshot, possibly in a legacy shape.
type ProjectStore interface {
	// Get returns the stored snapshot bytes.
	// Returns domain.ErrNotFound if the project has never been saved.
	Get(ctx context.Context, projectID string) ([]byte, error)

	// Put stores or replaces the snapshot bytes.
	Put(ctx context.Context, projectID string, snapshot []byte) error

	// Delete removes a project. Deleting a missing project is not an error.
	Delete(ctx context.Context, projectID string) error

	// List returns all stored projects.
	List(ctx context.Context) ([]domain.ProjectInfo, error)
}
