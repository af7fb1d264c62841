package services

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

func TestPersistence_SaveIsDebounced(t *testing.T) {
	f := loaded(t)
	c := f.canvas

	id := c.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Advance(500 * time.Millisecond)
	c.UpdateNode(id, domain.NodePatch{Data: map[string]any{"content": "x"}})
	f.scheduler.Advance(500 * time.Millisecond)
	assert.Equal(t, 0, f.store.Puts())

	f.scheduler.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, f.store.Puts())
	assert.Equal(t, 1, f.events.Count(domain.EventProjectSaved))

	data, err := f.store.Get(context.Background(), "p1")
	require.NoError(t, err)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "x", snap.Nodes[0].Data["content"])
}

func TestPersistence_NoProjectNoSave(t *testing.T) {
	f := newFixture(t)

	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Settle()

	assert.Equal(t, 0, f.store.Puts())
	assert.ErrorIs(t, f.canvas.SaveProject(context.Background()), domain.ErrNoProject)
}

func TestPersistence_NoStore(t *testing.T) {
	c := NewCanvas(domain.DefaultCanvasSettings(), nil, newManualScheduler(), nil, nil)

	assert.ErrorIs(t, c.LoadProject(context.Background(), "p1"), domain.ErrNotImplemented)
	assert.ErrorIs(t, c.SaveProject(context.Background()), domain.ErrNotImplemented)
	assert.NoError(t, c.Close(context.Background()))
}

func TestPersistence_RetryAfterFailure(t *testing.T) {
	f := loaded(t)
	f.store.FailNext(2)

	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Settle()

	assert.Equal(t, 3, f.store.Puts())
	assert.Equal(t, 2, f.events.Count(domain.EventSaveFailed))
	assert.Equal(t, 1, f.events.Count(domain.EventProjectSaved))
	assert.False(t, f.canvas.persist.dirty)
}

func TestPersistence_RetryLimit(t *testing.T) {
	settings := domain.DefaultCanvasSettings()
	settings.SaveRetryLimit = 1
	f := newFixtureWith(t, settings, nil)
	require.NoError(t, f.canvas.LoadProject(context.Background(), "p1"))
	f.scheduler.Settle()
	f.store.FailNext(10)

	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Settle()

	assert.Equal(t, 2, f.store.Puts())
	assert.True(t, f.canvas.persist.dirty)

	// A new edit starts a fresh round of attempts.
	f.store.FailNext(0)
	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Settle()
	assert.Equal(t, 3, f.store.Puts())
	assert.False(t, f.canvas.persist.dirty)
}

func TestPersistence_SaveProjectNow(t *testing.T) {
	f := loaded(t)
	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)

	require.NoError(t, f.canvas.SaveProject(context.Background()))
	assert.Equal(t, 1, f.store.Puts())
	assert.False(t, f.scheduler.Pending(keySave))

	f.store.FailNext(1)
	err := f.canvas.SaveProject(context.Background())
	assert.ErrorIs(t, err, errDiskFull)
}

func TestPersistence_LoadRoundTrip(t *testing.T) {
	f := loaded(t)
	c := f.canvas
	a := c.AddNode(domain.NodeTypeText, domain.Position{X: 1}, map[string]any{"content": "hello"})
	b := c.AddNode(domain.NodeTypeImageConfig, domain.Position{X: 2}, nil)
	c.AddEdge(domain.EdgeParams{Source: a, Target: b, Data: map[string]any{"order": 1}})
	c.UpdateViewport(domain.Viewport{X: 5, Y: 6, Zoom: 2})
	require.NoError(t, c.SaveProject(context.Background()))

	other := NewCanvas(domain.DefaultCanvasSettings(), f.store, newManualScheduler(), nil, nil)
	require.NoError(t, other.LoadProject(context.Background(), "p1"))

	assert.Equal(t, "p1", other.ProjectID())
	assert.Len(t, other.Nodes(), 2)
	assert.Len(t, other.GetIncomingEdges(b), 1)
	assert.Equal(t, domain.Viewport{X: 5, Y: 6, Zoom: 2}, other.Viewport())
	assert.False(t, other.CanUndo())
	assert.Equal(t, "node_3", other.AddNode(domain.NodeTypeText, domain.Position{}, nil))
	assert.Equal(t, "edge_2", other.AddEdge(domain.EdgeParams{Source: a, Target: b}))
}

func TestPersistence_LoadMissingProjectIsEmpty(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.canvas.LoadProject(context.Background(), "fresh"))

	assert.Empty(t, f.canvas.Nodes())
	assert.Equal(t, 1, f.events.Count(domain.EventProjectLoaded))
}

func TestPersistence_LoadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.canvas.LoadProject(ctx, "  "), domain.ErrInvalidInput)

	require.NoError(t, f.store.ProjectStore.Put(ctx, "broken", []byte("{not json")))
	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)

	err := f.canvas.LoadProject(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Len(t, f.canvas.Nodes(), 1, "document is untouched on a failed load")
	assert.Equal(t, "", f.canvas.ProjectID())
}

func TestPersistence_LoadSuspendsAutosave(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.canvas.LoadProject(context.Background(), "p1"))

	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Advance(700 * time.Millisecond)
	assert.Equal(t, 0, f.store.Puts())

	f.scheduler.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, f.store.Puts())
}

func TestPersistence_LoadFlushesPrevious(t *testing.T) {
	f := loaded(t)
	ctx := context.Background()
	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, map[string]any{"content": "keep me"})

	require.NoError(t, f.canvas.LoadProject(ctx, "p2"))

	assert.Equal(t, 1, f.store.Puts())
	data, err := f.store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, string(data), "keep me")
	assert.Empty(t, f.canvas.Nodes())
	assert.Equal(t, "p2", f.canvas.ProjectID())
}

func TestPersistence_LoadMigratedIsResaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := `{"nodes":[{"id":"n1","type":"text","data":{"content":"x","zIndex":4}}],
		"edges":[{"source":"n1","target":"gone"}]}`
	require.NoError(t, f.store.ProjectStore.Put(ctx, "old", []byte(legacy)))

	require.NoError(t, f.canvas.LoadProject(ctx, "old"))
	node, ok := f.canvas.GetNodeByID("n1")
	require.True(t, ok)
	assert.Equal(t, 4, node.ZIndex)
	assert.NotContains(t, node.Data, "zIndex")
	assert.Empty(t, f.canvas.Edges())

	f.scheduler.Settle()
	assert.Equal(t, 1, f.store.Puts())
}

func TestPersistence_CloseFlushes(t *testing.T) {
	f := loaded(t)
	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)

	require.NoError(t, f.canvas.Close(context.Background()))
	assert.Equal(t, 1, f.store.Puts())

	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Settle()
	assert.Equal(t, 1, f.store.Puts())
	assert.NoError(t, f.canvas.Close(context.Background()))
}

func TestPersistence_LoadInsideBatch(t *testing.T) {
	f := newFixture(t)

	var err error
	f.canvas.WithBatchUpdates(func() {
		err = f.canvas.LoadProject(context.Background(), "p1")
	})

	assert.ErrorIs(t, err, domain.ErrBatchInProgress)
}

func TestPersistence_NonFiniteDataDoesNotBlockSaves(t *testing.T) {
	f := loaded(t)
	c := f.canvas

	id := c.AddNode(domain.NodeTypeImage, domain.Position{}, map[string]any{"height": math.Inf(1)})
	c.UpdateNode(id, domain.NodePatch{Data: map[string]any{"width": math.NaN()}})
	f.scheduler.Settle()

	assert.Equal(t, 1, f.store.Puts())
	assert.Zero(t, f.events.Count(domain.EventSaveFailed))
	assert.Equal(t, 1, f.events.Count(domain.EventProjectSaved))

	data, err := f.store.Get(context.Background(), "p1")
	require.NoError(t, err)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Nodes, 1)
	assert.Contains(t, snap.Nodes[0].Data, "width")
	assert.Nil(t, snap.Nodes[0].Data["width"])
	assert.Nil(t, snap.Nodes[0].Data["height"])
}

func TestPersistence_NonFiniteEdgeDataDoesNotBlockSaves(t *testing.T) {
	f := loaded(t)
	c := f.canvas

	a := c.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	b := c.AddNode(domain.NodeTypeImageConfig, domain.Position{}, nil)
	e := c.AddEdge(domain.EdgeParams{Source: a, Target: b, Data: map[string]any{"order": math.NaN()}})
	require.NotEmpty(t, e)
	c.UpdateEdge(e, map[string]any{"weight": math.Inf(-1)})
	f.scheduler.Settle()

	assert.Equal(t, 1, f.store.Puts())
	assert.Zero(t, f.events.Count(domain.EventSaveFailed))
}

func TestPersistence_BackgroundFailureLoggedWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger.SetVerbose(false)
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	f := loaded(t)
	f.store.FailNext(1)
	f.canvas.AddNode(domain.NodeTypeText, domain.Position{}, nil)
	f.scheduler.Settle()

	assert.Contains(t, buf.String(), "save p1 failed (attempt 1)")
	assert.Contains(t, buf.String(), "disk full")
}
