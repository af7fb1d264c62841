package driving

import (
	"context"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// ProjectService manages stored projects without opening a canvas.
type ProjectService interface {
	// List returns all stored projects.
	List(ctx context.Context) ([]domain.ProjectInfo, error)

	// Get returns the migrated snapshot of a project.
	Get(ctx context.Context, projectID string) (*domain.Snapshot, error)

	// Delete removes a project.
	Delete(ctx context.Context, projectID string) error

	// Export returns the snapshot JSON of a project after migration.
	Export(ctx context.Context, projectID string) ([]byte, error)

	// UpstreamInputs resolves the generator inputs of focusID in a stored project.
	UpstreamInputs(ctx context.Context, projectID, focusID string) (domain.UpstreamInputs, error)

	// Import migrates snapshot JSON and stores it under projectID.
	Import(ctx context.Context, projectID string, data []byte) error
}
