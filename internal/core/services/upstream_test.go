package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

func upstreamIndex(nodes []*domain.Node, edges []*domain.Edge) *adjacencyIndex {
	ix := newAdjacencyIndex()
	ix.rebuild(nodes, edges)
	return ix
}

func TestCollectUpstream(t *testing.T) {
	longURL := "https://cdn.example.com/" + strings.Repeat("x", 300)
	nodes := []*domain.Node{
		{ID: "focus", Type: domain.NodeTypeText, Data: map[string]any{"content": "the prompt"}},
		{ID: "gen", Type: domain.NodeTypeImageConfig},
		{ID: "vid", Type: domain.NodeTypeVideoConfig},
		{ID: "style", Type: domain.NodeTypeText, Data: map[string]any{"content": "  watercolor\r\nsoft  ", "label": "Style"}},
		{ID: "blank", Type: domain.NodeTypeText, Data: map[string]any{"content": "   "}},
		{ID: "inline", Type: domain.NodeTypeImage, Data: map[string]any{"url": "data:image/png;base64,AAAA"}},
		{ID: "remote", Type: domain.NodeTypeImage, Data: map[string]any{"url": longURL, "label": "Pose"}},
		{ID: "motion", Type: domain.NodeTypeText, Data: map[string]any{"content": "slow pan"}},
		{ID: "other", Type: domain.NodeTypeImage},
	}
	edges := []*domain.Edge{
		{ID: "e1", Source: "focus", Target: "gen"},
		{ID: "e2", Source: "style", Target: "gen", Data: map[string]any{"order": 2.0}},
		{ID: "e3", Source: "blank", Target: "gen"},
		{ID: "e4", Source: "inline", Target: "gen", Data: map[string]any{"order": 1.0, "imageRole": "first_frame"}},
		{ID: "e5", Source: "remote", Target: "gen"},
		{ID: "e6", Source: "focus", Target: "vid"},
		{ID: "e7", Source: "style", Target: "vid"},
		{ID: "e8", Source: "motion", Target: "vid"},
		{ID: "e9", Source: "focus", Target: "other"},
	}

	got := collectUpstream(upstreamIndex(nodes, edges), "focus")

	require.Len(t, got.Text, 2)
	assert.Equal(t, domain.UpstreamText{ID: "style", Label: "Style", Text: "watercolor\nsoft", Target: "gen"}, got.Text[0])
	assert.Equal(t, domain.UpstreamText{ID: "motion", Label: "Text", Text: "slow pan", Target: "vid"}, got.Text[1])

	require.Len(t, got.Images, 2)
	assert.Equal(t, domain.UpstreamImage{
		ID: "inline", Label: "Reference image", Role: "first_frame", URL: "", Target: "gen",
	}, got.Images[0])
	assert.Equal(t, "remote", got.Images[1].ID)
	assert.Equal(t, domain.DefaultImageRole, got.Images[1].Role)
	assert.Equal(t, "Pose", got.Images[1].Label)
	assert.Equal(t, 241, utf8.RuneCountInString(got.Images[1].URL))
	assert.True(t, strings.HasSuffix(got.Images[1].URL, "…"))
}

func TestCollectUpstream_TruncatesText(t *testing.T) {
	long := strings.Repeat("é", 600)
	nodes := []*domain.Node{
		{ID: "focus", Type: domain.NodeTypeText},
		{ID: "gen", Type: domain.NodeTypeImageConfig},
		{ID: "long", Type: domain.NodeTypeText, Data: map[string]any{"content": long}},
	}
	edges := []*domain.Edge{
		{ID: "e1", Source: "focus", Target: "gen"},
		{ID: "e2", Source: "long", Target: "gen"},
	}

	got := collectUpstream(upstreamIndex(nodes, edges), "focus")

	require.Len(t, got.Text, 1)
	assert.Equal(t, strings.Repeat("é", 520)+"…", got.Text[0].Text)
}

func TestCollectUpstream_NoInputs(t *testing.T) {
	nodes := []*domain.Node{
		{ID: "a", Type: domain.NodeTypeText, Data: map[string]any{"content": "x"}},
		{ID: "gen", Type: domain.NodeTypeImageConfig},
	}
	edges := []*domain.Edge{{ID: "e1", Source: "gen", Target: "a"}}
	ix := upstreamIndex(nodes, edges)

	assert.True(t, collectUpstream(ix, "missing").IsEmpty())
	assert.True(t, collectUpstream(ix, "").IsEmpty())
	assert.True(t, collectUpstream(ix, "a").IsEmpty(), "only outgoing edges of the focus count")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab…", truncateRunes("abc", 2))
	assert.Equal(t, "…", truncateRunes("abc", 0))
}
