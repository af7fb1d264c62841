package services

import (
	"sort"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// adjacencyIndex gives O(1) node lookup and O(degree) edge lookup.
// It always reflects the live document, including batch-buffered items.
type adjacencyIndex struct {
	nodes    map[string]*domain.Node
	edges    map[string]*domain.Edge
	incoming map[string][]*domain.Edge
	outgoing map[string][]*domain.Edge
}

func newAdjacencyIndex() *adjacencyIndex {
	ix := &adjacencyIndex{}
	ix.reset()
	return ix
}

func (ix *adjacencyIndex) reset() {
	ix.nodes = make(map[string]*domain.Node)
	ix.edges = make(map[string]*domain.Edge)
	ix.incoming = make(map[string][]*domain.Edge)
	ix.outgoing = make(map[string][]*domain.Edge)
}

// rebuild discards the index and recomputes it from scratch.
func (ix *adjacencyIndex) rebuild(nodes []*domain.Node, edges []*domain.Edge) {
	ix.reset()
	for _, n := range nodes {
		ix.nodes[n.ID] = n
	}
	for _, e := range edges {
		ix.addEdge(e)
	}
}

func (ix *adjacencyIndex) hasNode(id string) bool {
	_, ok := ix.nodes[id]
	return ok
}

func (ix *adjacencyIndex) hasEdge(id string) bool {
	_, ok := ix.edges[id]
	return ok
}

// hasID reports whether id is used by any node or edge.
func (ix *adjacencyIndex) hasID(id string) bool {
	return ix.hasNode(id) || ix.hasEdge(id)
}

func (ix *adjacencyIndex) addNode(n *domain.Node) {
	ix.nodes[n.ID] = n
}

// removeNode drops the node and its adjacency lists. Callers remove the
// edges themselves.
func (ix *adjacencyIndex) removeNode(id string) {
	delete(ix.nodes, id)
	delete(ix.incoming, id)
	delete(ix.outgoing, id)
}

func (ix *adjacencyIndex) addEdge(e *domain.Edge) {
	ix.edges[e.ID] = e
	ix.incoming[e.Target] = append(ix.incoming[e.Target], e)
	ix.outgoing[e.Source] = append(ix.outgoing[e.Source], e)
}

func (ix *adjacencyIndex) removeEdge(e *domain.Edge) {
	delete(ix.edges, e.ID)
	ix.incoming[e.Target] = withoutEdge(ix.incoming[e.Target], e)
	if len(ix.incoming[e.Target]) == 0 {
		delete(ix.incoming, e.Target)
	}
	ix.outgoing[e.Source] = withoutEdge(ix.outgoing[e.Source], e)
	if len(ix.outgoing[e.Source]) == 0 {
		delete(ix.outgoing, e.Source)
	}
}

// edgesOf returns every edge touching id, each once.
func (ix *adjacencyIndex) edgesOf(id string) []*domain.Edge {
	out := make([]*domain.Edge, 0, len(ix.incoming[id])+len(ix.outgoing[id]))
	seen := make(map[*domain.Edge]struct{}, cap(out))
	for _, list := range [][]*domain.Edge{ix.incoming[id], ix.outgoing[id]} {
		for _, e := range list {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// incomingOrdered returns the edges targeting id. Edges carrying an order
// hint come first by ascending hint; the rest keep insertion order.
func (ix *adjacencyIndex) incomingOrdered(id string) []*domain.Edge {
	list := append([]*domain.Edge(nil), ix.incoming[id]...)
	sort.SliceStable(list, func(i, j int) bool {
		oi, hi := list[i].OrderHint()
		oj, hj := list[j].OrderHint()
		if hi && hj {
			return oi < oj
		}
		return hi && !hj
	})
	return list
}

func withoutEdge(list []*domain.Edge, e *domain.Edge) []*domain.Edge {
	out := list[:0]
	for _, x := range list {
		if x != e {
			out = append(out, x)
		}
	}
	// Clear the tail so removed edges can be collected.
	for i := len(out); i < len(list); i++ {
		list[i] = nil
	}
	return out
}
