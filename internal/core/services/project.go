package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
)

// Ensure ProjectService implements the interface.
var _ driving.ProjectService = (*ProjectService)(nil)

// ProjectService manages stored projects without opening a canvas.
// Snapshots read through it go through the same migration as LoadProject.
type ProjectService struct {
	store driven.ProjectStore
	zmax  int
}

// NewProjectService creates a new project service.
func NewProjectService(store driven.ProjectStore, settings domain.CanvasSettings) *ProjectService {
	zmax := settings.ZMax
	if zmax < 1 {
		zmax = domain.DefaultCanvasSettings().ZMax
	}
	return &ProjectService{store: store, zmax: zmax}
}

// List returns all stored projects.
func (s *ProjectService) List(ctx context.Context) ([]domain.ProjectInfo, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.store.List(ctx)
}

// Get returns the migrated snapshot of a project.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	m, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return toSnapshot(m), nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	if s.store == nil {
		return domain.ErrNotImplemented
	}
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}
	return s.store.Delete(ctx, projectID)
}

// Export returns the indented snapshot JSON of a project after migration.
func (s *ProjectService) Export(ctx context.Context, projectID string) ([]byte, error) {
	snap, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Import migrates snapshot JSON and stores it under projectID, replacing
// any existing project.
func (s *ProjectService) Import(ctx context.Context, projectID string, data []byte) error {
	if s.store == nil {
		return domain.ErrNotImplemented
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	m, err := migrateSnapshot(data, s.zmax, newIDAllocator(nodeIDPrefix), newIDAllocator(edgeIDPrefix))
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(toSnapshot(m))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.store.Put(ctx, projectID, encoded)
}

// UpstreamInputs resolves the generator inputs of focusID in a stored project.
func (s *ProjectService) UpstreamInputs(ctx context.Context, projectID, focusID string) (domain.UpstreamInputs, error) {
	m, err := s.load(ctx, projectID)
	if err != nil {
		return domain.UpstreamInputs{}, err
	}
	ix := newAdjacencyIndex()
	ix.rebuild(m.Nodes, m.Edges)
	return collectUpstream(ix, focusID), nil
}

func (s *ProjectService) load(ctx context.Context, projectID string) (*migrated, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	data, err := s.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return migrateSnapshot(data, s.zmax, newIDAllocator(nodeIDPrefix), newIDAllocator(edgeIDPrefix))
}

func toSnapshot(m *migrated) *domain.Snapshot {
	return &domain.Snapshot{
		Nodes:    cloneNodes(m.Nodes),
		Edges:    cloneEdges(m.Edges),
		Viewport: m.Viewport,
	}
}
