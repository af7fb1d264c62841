package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/scheduler"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/services"
)

// mockProjectService is a mock implementation of driving.ProjectService.
type mockProjectService struct {
	infos    []domain.ProjectInfo
	snapshot *domain.Snapshot
	export   []byte
	inputs   domain.UpstreamInputs
	imported map[string][]byte
	err      error
}

func (m *mockProjectService) List(_ context.Context) ([]domain.ProjectInfo, error) {
	return m.infos, m.err
}

func (m *mockProjectService) Get(_ context.Context, _ string) (*domain.Snapshot, error) {
	return m.snapshot, m.err
}

func (m *mockProjectService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockProjectService) Export(_ context.Context, _ string) ([]byte, error) {
	return m.export, m.err
}

func (m *mockProjectService) UpstreamInputs(_ context.Context, _, _ string) (domain.UpstreamInputs, error) {
	return m.inputs, m.err
}

func (m *mockProjectService) Import(_ context.Context, projectID string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.imported == nil {
		m.imported = make(map[string][]byte)
	}
	m.imported[projectID] = data
	return nil
}

// fixture wires a real canvas and project service over a memory store.
type fixture struct {
	server   *Server
	canvas   *services.Canvas
	projects *services.ProjectService
	store    *memory.ProjectStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	settings := domain.DefaultCanvasSettings()
	store := memory.NewProjectStore()
	sched := scheduler.New()
	canvas := services.NewCanvas(settings, store, sched, nil, nil)
	projects := services.NewProjectService(store, settings)
	t.Cleanup(func() {
		_ = canvas.Close(context.Background())
		sched.Stop()
	})

	server, err := NewServer(&Ports{Canvas: canvas, Projects: projects})
	require.NoError(t, err)
	return &fixture{server: server, canvas: canvas, projects: projects, store: store}
}

// open loads projectID into the fixture canvas.
func (f *fixture) open(t *testing.T, projectID string) {
	t.Helper()
	require.NoError(t, f.canvas.LoadProject(context.Background(), projectID))
}
