package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

// Ensure ProjectStore implements the interface.
var _ driven.ProjectStore = (*ProjectStore)(nil)

type storedProject struct {
	data      []byte
	updatedAt time.Time
}

// ProjectStore is an in-memory implementation of driven.ProjectStore.
// Snapshots are copied on the way in and out.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]storedProject
	now      func() time.Time
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[string]storedProject),
		now:      time.Now,
	}
}

// Get retrieves the snapshot bytes of a project.
func (s *ProjectStore) Get(_ context.Context, projectID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), p.data...), nil
}

// Put stores or replaces the snapshot bytes of a project.
func (s *ProjectStore) Put(_ context.Context, projectID string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = storedProject{
		data:      append([]byte(nil), snapshot...),
		updatedAt: s.now(),
	}
	return nil
}

// Delete removes a project.
func (s *ProjectStore) Delete(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, projectID)
	return nil
}

// List returns all projects, most recently updated first.
func (s *ProjectStore) List(_ context.Context) ([]domain.ProjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProjectInfo, 0, len(s.projects))
	for id, p := range s.projects {
		out = append(out, domain.ProjectInfo{
			ID:        id,
			UpdatedAt: p.updatedAt,
			Size:      int64(len(p.data)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
