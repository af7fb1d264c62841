package services

import (
	"strconv"
	"strings"
)

// Id prefixes. Generated ids look like "node_12" and "edge_3".
const (
	nodeIDPrefix = "node"
	edgeIDPrefix = "edge"
)

// idAllocator hands out "<prefix>_<n>" ids with a monotonically increasing n.
// It is not safe for concurrent use; the canvas lock guards it.
type idAllocator struct {
	prefix string
	last   int
}

func newIDAllocator(prefix string) *idAllocator {
	return &idAllocator{prefix: prefix}
}

// Next returns the next id not reported as taken.
// A nil taken func accepts the first candidate.
func (a *idAllocator) Next(taken func(string) bool) string {
	for {
		a.last++
		id := a.prefix + "_" + strconv.Itoa(a.last)
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// Seed advances the counter past the largest numeric suffix among ids.
// Ids with another prefix or a non-numeric suffix are ignored.
func (a *idAllocator) Seed(ids []string) {
	for _, id := range ids {
		if n, ok := a.suffix(id); ok && n > a.last {
			a.last = n
		}
	}
}

// Reset restarts numbering from 1.
func (a *idAllocator) Reset() {
	a.last = 0
}

func (a *idAllocator) suffix(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, a.prefix+"_")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
