package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/services"
)

// getProject reads a stored project through a fresh project service.
func getProject(t *testing.T, env *testEnv, id string) *domain.Snapshot {
	t.Helper()
	snap, err := services.NewProjectService(env.store, domain.DefaultCanvasSettings()).Get(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func findNode(snap *domain.Snapshot, id string) (domain.Node, bool) {
	for _, n := range snap.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Node{}, false
}

func TestNodeAdd(t *testing.T) {
	env := setupTestServices(t)

	out := mustExecute(t, "node", "add", "p1", "text", "--x", "10", "--y", "20", "--set", "content=hello", "--set", "count=2")

	assert.Equal(t, "node_1", lastLine(out))
	n, ok := findNode(getProject(t, env, "p1"), "node_1")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeText, n.Type)
	assert.Equal(t, domain.Position{X: 10, Y: 20}, n.Position)
	assert.Equal(t, "hello", n.Data["content"])
	assert.Equal(t, float64(2), n.Data["count"])
}

func TestNodeAdd_IDsContinueAcrossRuns(t *testing.T) {
	setupTestServices(t)

	mustExecute(t, "node", "add", "p1", "text")
	out := mustExecute(t, "node", "add", "p1", "image")

	assert.Equal(t, "node_2", lastLine(out))
}

func TestNodeAdd_InvalidAssignment(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "node", "add", "p1", "text", "--set", "novalue")

	assert.ErrorContains(t, err, "want key=value")
}

func TestNodeUpdate(t *testing.T) {
	env := setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text", "--x", "5", "--y", "6")

	out := mustExecute(t, "node", "update", "p1", "node_1", "--x", "50", "--z", "3", "--set", "content=updated")

	assert.Contains(t, out, "Node node_1 updated.")
	n, ok := findNode(getProject(t, env, "p1"), "node_1")
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 50, Y: 6}, n.Position, "unchanged y is kept")
	assert.Equal(t, 3, n.ZIndex)
	assert.Equal(t, "updated", n.Data["content"])
}

func TestNodeUpdate_FlagsDoNotLeak(t *testing.T) {
	env := setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text", "--x", "5", "--y", "6")
	mustExecute(t, "node", "update", "p1", "node_1", "--x", "50")

	mustExecute(t, "node", "update", "p1", "node_1", "--set", "content=x")

	n, _ := findNode(getProject(t, env, "p1"), "node_1")
	assert.Equal(t, domain.Position{X: 50, Y: 6}, n.Position)
}

func TestNodeUpdate_Unknown(t *testing.T) {
	setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text")

	_, err := execute(t, "", "node", "update", "p1", "node_9", "--x", "1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeRemove(t *testing.T) {
	env := setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text")
	mustExecute(t, "node", "add", "p1", "imageConfig")
	mustExecute(t, "edge", "add", "p1", "node_1", "node_2")

	out := mustExecute(t, "node", "remove", "p1", "node_1")

	assert.Contains(t, out, "Node node_1 removed.")
	snap := getProject(t, env, "p1")
	assert.Len(t, snap.Nodes, 1)
	assert.Empty(t, snap.Edges, "edges of a removed node go with it")

	_, err := execute(t, "", "node", "remove", "p1", "node_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeDuplicate(t *testing.T) {
	env := setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text", "--set", "content=copy me")

	out := mustExecute(t, "node", "duplicate", "p1", "node_1")

	assert.Equal(t, "node_2", lastLine(out))
	snap := getProject(t, env, "p1")
	require.Len(t, snap.Nodes, 2)
	dup, _ := findNode(snap, "node_2")
	assert.Equal(t, "copy me", dup.Data["content"])

	_, err := execute(t, "", "node", "duplicate", "p1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeCommands_NoCanvas(t *testing.T) {
	setupTestServices(t)
	newCanvas = nil

	_, err := execute(t, "", "node", "add", "p1", "text")

	assert.ErrorContains(t, err, "canvas not configured")
}

func TestEdgeAddRemove(t *testing.T) {
	env := setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text")
	mustExecute(t, "node", "add", "p1", "image")
	mustExecute(t, "node", "add", "p1", "imageConfig")

	out := mustExecute(t, "edge", "add", "p1", "node_2", "node_3", "--target-handle", "in", "--set", "imageRole=style")
	edgeID := lastLine(out)
	assert.Equal(t, "edge_1", edgeID)

	snap := getProject(t, env, "p1")
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "node_2", snap.Edges[0].Source)
	assert.Equal(t, "in", snap.Edges[0].TargetHandle)
	assert.Equal(t, "style", snap.Edges[0].Data["imageRole"])

	out = mustExecute(t, "edge", "remove", "p1", edgeID)
	assert.Contains(t, out, "Edge edge_1 removed.")
	assert.Empty(t, getProject(t, env, "p1").Edges)
}

func TestEdgeAdd_MissingEndpoint(t *testing.T) {
	setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text")

	_, err := execute(t, "", "edge", "add", "p1", "node_1", "node_7")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEdgeRemove_Unknown(t *testing.T) {
	setupTestServices(t)
	mustExecute(t, "node", "add", "p1", "text")

	_, err := execute(t, "", "edge", "remove", "p1", "edge_4")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseAssignments([]string{
		"content=plain words",
		"n=2",
		"flag=true",
		`quoted="2"`,
		`obj={"a":1}`,
		"empty=",
		" spaced =x",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"content": "plain words",
		"n":       float64(2),
		"flag":    true,
		"quoted":  "2",
		"obj":     map[string]any{"a": float64(1)},
		"empty":   "",
		"spaced":  "x",
	}, got)

	_, err = parseAssignments([]string{"=v"})
	assert.Error(t, err)
}
