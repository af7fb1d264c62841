package services

import (
	"sort"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// clampZ bounds z to [0, zmax].
func clampZ(z, zmax int) int {
	if z < 0 {
		return 0
	}
	if z > zmax {
		return zmax
	}
	return z
}

// maxZ returns the highest zIndex, or -1 for an empty document.
func maxZ(nodes []*domain.Node) int {
	top := -1
	for _, n := range nodes {
		if n.ZIndex > top {
			top = n.ZIndex
		}
	}
	return top
}

// needsNormalize reports whether any zIndex lies outside [0, zmax].
func needsNormalize(nodes []*domain.Node, zmax int) bool {
	for _, n := range nodes {
		if n.ZIndex < 0 || n.ZIndex > zmax {
			return true
		}
	}
	return false
}

// normalizeZ rewrites zIndex values to a dense rank 0..k-1 over the distinct
// values, so relative stacking is kept and the top is as low as possible.
// When there are more distinct values than fit in [0, zmax] the ranks are
// scaled down, which can merge neighbours but never reorders them.
// Returns true if any node changed.
func normalizeZ(nodes []*domain.Node, zmax int) bool {
	if len(nodes) == 0 {
		return false
	}

	distinct := make([]int, 0, len(nodes))
	seen := make(map[int]struct{}, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ZIndex]; !ok {
			seen[n.ZIndex] = struct{}{}
			distinct = append(distinct, n.ZIndex)
		}
	}
	sort.Ints(distinct)

	rank := make(map[int]int, len(distinct))
	for i, z := range distinct {
		r := i
		if len(distinct)-1 > zmax {
			r = i * zmax / (len(distinct) - 1)
		}
		rank[z] = r
	}

	changed := false
	for _, n := range nodes {
		if r := rank[n.ZIndex]; r != n.ZIndex {
			n.ZIndex = r
			changed = true
		}
	}
	return changed
}
