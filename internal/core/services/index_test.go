package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

func edgeIDs(edges []*domain.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

func TestAdjacencyIndex_Rebuild(t *testing.T) {
	ix := newAdjacencyIndex()
	nodes := []*domain.Node{{ID: "a"}, {ID: "b"}}
	edges := []*domain.Edge{{ID: "e1", Source: "a", Target: "b"}}

	ix.rebuild(nodes, edges)

	assert.True(t, ix.hasNode("a"))
	assert.True(t, ix.hasEdge("e1"))
	assert.True(t, ix.hasID("e1"))
	assert.False(t, ix.hasID("c"))
	assert.Equal(t, []string{"e1"}, edgeIDs(ix.incoming["b"]))
	assert.Equal(t, []string{"e1"}, edgeIDs(ix.outgoing["a"]))

	ix.rebuild(nodes[:1], nil)
	assert.False(t, ix.hasNode("b"))
	assert.False(t, ix.hasEdge("e1"))
	assert.Empty(t, ix.incoming)
}

func TestAdjacencyIndex_RemoveEdge(t *testing.T) {
	ix := newAdjacencyIndex()
	e1 := &domain.Edge{ID: "e1", Source: "a", Target: "b"}
	e2 := &domain.Edge{ID: "e2", Source: "a", Target: "c"}
	ix.addEdge(e1)
	ix.addEdge(e2)

	ix.removeEdge(e1)

	assert.False(t, ix.hasEdge("e1"))
	assert.NotContains(t, ix.incoming, "b", "empty lists are dropped")
	assert.Equal(t, []string{"e2"}, edgeIDs(ix.outgoing["a"]))
}

func TestAdjacencyIndex_EdgesOf(t *testing.T) {
	ix := newAdjacencyIndex()
	loop := &domain.Edge{ID: "loop", Source: "a", Target: "a"}
	in := &domain.Edge{ID: "in", Source: "b", Target: "a"}
	out := &domain.Edge{ID: "out", Source: "a", Target: "c"}
	ix.addEdge(loop)
	ix.addEdge(in)
	ix.addEdge(out)

	assert.ElementsMatch(t, []string{"loop", "in", "out"}, edgeIDs(ix.edgesOf("a")))
	assert.Empty(t, ix.edgesOf("missing"))
}

func TestAdjacencyIndex_RemoveNode(t *testing.T) {
	ix := newAdjacencyIndex()
	ix.addNode(&domain.Node{ID: "a"})
	ix.addEdge(&domain.Edge{ID: "e1", Source: "a", Target: "b"})

	ix.removeNode("a")

	assert.False(t, ix.hasNode("a"))
	assert.NotContains(t, ix.outgoing, "a")
	assert.True(t, ix.hasEdge("e1"), "edges are removed by the caller")
}

func TestAdjacencyIndex_IncomingOrdered(t *testing.T) {
	ix := newAdjacencyIndex()
	for _, e := range []*domain.Edge{
		{ID: "plain1", Source: "p", Target: "t"},
		{ID: "second", Source: "q", Target: "t", Data: map[string]any{"order": 2.0}},
		{ID: "plain2", Source: "r", Target: "t"},
		{ID: "first", Source: "s", Target: "t", Data: map[string]any{"order": 1}},
		{ID: "bad", Source: "u", Target: "t", Data: map[string]any{"order": "x"}},
	} {
		ix.addEdge(e)
	}

	got := ix.incomingOrdered("t")
	require.Len(t, got, 5)
	assert.Equal(t, []string{"first", "second", "plain1", "plain2", "bad"}, edgeIDs(got))
	assert.Equal(t, []string{"plain1", "second", "plain2", "first", "bad"}, edgeIDs(ix.incoming["t"]),
		"ordering does not reorder the index")
}
