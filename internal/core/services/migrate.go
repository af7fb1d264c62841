package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// Legacy data keys that older snapshots used for stacking order.
const (
	legacyZKey     = "zIndex"
	legacyStyleKey = "style"
)

// wireSnapshot accepts every snapshot shape ever written. Pointer fields
// distinguish "missing" from zero values.
type wireSnapshot struct {
	Nodes    []wireNode    `json:"nodes"`
	Edges    []wireEdge    `json:"edges"`
	Viewport *wireViewport `json:"viewport"`
}

type wireNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position *wirePosition  `json:"position"`
	Data     map[string]any `json:"data"`
	ZIndex   *float64       `json:"zIndex"`
}

type wirePosition struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type wireEdge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle"`
	TargetHandle string         `json:"targetHandle"`
	Data         map[string]any `json:"data"`
}

type wireViewport struct {
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Zoom *float64 `json:"zoom"`
}

// migrationReport counts what a migration had to repair.
type migrationReport struct {
	DroppedNodes     int
	RegeneratedEdges int
	PrunedEdges      int
	FoldedZ          int
	Renormalized     bool
}

// Changed reports whether the stored bytes differ from what will be saved back.
func (r migrationReport) Changed() bool {
	return r.DroppedNodes > 0 || r.RegeneratedEdges > 0 || r.PrunedEdges > 0 ||
		r.FoldedZ > 0 || r.Renormalized
}

// migrated is a snapshot brought up to the current shape.
type migrated struct {
	Nodes    []*domain.Node
	Edges    []*domain.Edge
	Viewport domain.Viewport
	Report   migrationReport
}

// migrateSnapshot decodes snapshot bytes of any known vintage and repairs
// them so that every document invariant holds. The allocators are seeded
// past every numeric id suffix in the result.
// Empty input yields an empty document.
func migrateSnapshot(data []byte, zmax int, nodeIDs, edgeIDs *idAllocator) (*migrated, error) {
	out := &migrated{Viewport: domain.DefaultViewport()}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	var wire wireSnapshot
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", domain.ErrInvalidInput, err)
	}

	// 1. Nodes: drop unusable ids, default positions and data, fold legacy z.
	seen := make(map[string]struct{}, len(wire.Nodes))
	for i := range wire.Nodes {
		w := &wire.Nodes[i]
		if w.ID == "" {
			out.Report.DroppedNodes++
			continue
		}
		if _, dup := seen[w.ID]; dup {
			out.Report.DroppedNodes++
			continue
		}
		seen[w.ID] = struct{}{}

		n := &domain.Node{
			ID:       w.ID,
			Type:     domain.NodeType(w.Type),
			Position: w.Position.toPosition(),
			Data:     mergeDefaults(domain.NodeType(w.Type), w.Data),
		}
		z, folded := legacyZ(w.ZIndex, n.Data)
		if folded {
			out.Report.FoldedZ++
		}
		n.ZIndex = z
		out.Nodes = append(out.Nodes, n)
	}

	nodeIDs.Reset()
	edgeIDs.Reset()
	for _, n := range out.Nodes {
		nodeIDs.Seed([]string{n.ID})
	}
	for _, w := range wire.Edges {
		edgeIDs.Seed([]string{w.ID})
	}

	// 2. Edges: prune dangling, regenerate missing or duplicate ids.
	edgeSeen := make(map[string]struct{}, len(wire.Edges))
	for _, w := range wire.Edges {
		if _, ok := seen[w.Source]; !ok {
			out.Report.PrunedEdges++
			continue
		}
		if _, ok := seen[w.Target]; !ok {
			out.Report.PrunedEdges++
			continue
		}
		e := &domain.Edge{
			ID:           w.ID,
			Source:       w.Source,
			Target:       w.Target,
			SourceHandle: w.SourceHandle,
			TargetHandle: w.TargetHandle,
			Data:         w.Data,
		}
		_, dup := edgeSeen[e.ID]
		_, clash := seen[e.ID]
		if e.ID == "" || dup || clash {
			e.ID = edgeIDs.Next(func(id string) bool {
				_, a := edgeSeen[id]
				_, b := seen[id]
				return a || b
			})
			out.Report.RegeneratedEdges++
		}
		edgeSeen[e.ID] = struct{}{}
		out.Edges = append(out.Edges, e)
	}

	// 3. Stacking and viewport.
	if needsNormalize(out.Nodes, zmax) {
		normalizeZ(out.Nodes, zmax)
		out.Report.Renormalized = true
	}
	out.Viewport = wire.Viewport.toViewport()

	return out, nil
}

func (p *wirePosition) toPosition() domain.Position {
	var pos domain.Position
	if p == nil {
		return pos
	}
	if p.X != nil && finite(*p.X) {
		pos.X = *p.X
	}
	if p.Y != nil && finite(*p.Y) {
		pos.Y = *p.Y
	}
	return pos
}

func (v *wireViewport) toViewport() domain.Viewport {
	vp := domain.DefaultViewport()
	if v == nil {
		return vp
	}
	if v.X != nil {
		vp.X = *v.X
	}
	if v.Y != nil {
		vp.Y = *v.Y
	}
	if v.Zoom != nil {
		vp.Zoom = *v.Zoom
	}
	return vp.Sanitize()
}

// mergeDefaults fills keys missing from data with the type defaults.
func mergeDefaults(t domain.NodeType, data map[string]any) map[string]any {
	out := domain.DefaultNodeData(t)
	for k, v := range data {
		out[k] = v
	}
	return out
}

// legacyZ resolves the stacking order. A top-level zIndex wins; older
// snapshots kept it in data.zIndex or data.style.zIndex, which are removed
// from data once folded. Returns the clamped-to-non-negative value and
// whether a legacy field was found and removed.
func legacyZ(top *float64, data map[string]any) (int, bool) {
	var (
		z      float64
		found  bool
		folded bool
	)
	if top != nil && finite(*top) {
		z, found = *top, true
	}

	if v, ok := data[legacyZKey]; ok {
		if f, isNum := toFloat(v); isNum && !found {
			z, found = f, true
		}
		delete(data, legacyZKey)
		folded = true
	}
	if style, ok := data[legacyStyleKey].(map[string]any); ok {
		if v, has := style[legacyZKey]; has {
			if f, isNum := toFloat(v); isNum && !found {
				z, found = f, true
			}
			delete(style, legacyZKey)
			folded = true
			if len(style) == 0 {
				delete(data, legacyStyleKey)
			}
		}
	}

	if !found || z < 0 {
		return 0, folded
	}
	if z > math.MaxInt32 {
		return math.MaxInt32, folded
	}
	return int(math.Round(z)), folded
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, finite(n)
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && finite(f)
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
