package services

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// Limits applied to collected inputs.
const (
	maxUpstreamTextRunes = 520
	maxUpstreamURLRunes  = 240

	defaultTextLabel  = "Text"
	defaultImageLabel = "Reference image"
	truncationMark    = "…"
)

// collectUpstream resolves the inputs of the generator nodes that focusID
// feeds: for every imageConfig or videoConfig target of the focus node,
// the non-empty text nodes and image nodes connected into that target.
// The focus node itself is never reported as text. Each source node is
// reported at most once, against the first target that reaches it.
func collectUpstream(ix *adjacencyIndex, focusID string) domain.UpstreamInputs {
	var out domain.UpstreamInputs

	focusID = strings.TrimSpace(focusID)
	if focusID == "" || !ix.hasNode(focusID) {
		return out
	}

	seenText := make(map[string]struct{})
	seenImage := make(map[string]struct{})

	for _, e := range ix.outgoing[focusID] {
		target, ok := ix.nodes[e.Target]
		if !ok || !target.Type.IsGenerator() {
			continue
		}
		for _, in := range ix.incomingOrdered(target.ID) {
			src, ok := ix.nodes[in.Source]
			if !ok {
				continue
			}
			switch src.Type {
			case domain.NodeTypeText:
				if src.ID == focusID {
					continue
				}
				if _, dup := seenText[src.ID]; dup {
					continue
				}
				content := dataString(src.Data, domain.DataKeyContent)
				if content == "" {
					continue
				}
				out.Text = append(out.Text, domain.UpstreamText{
					ID:     src.ID,
					Label:  orDefault(dataString(src.Data, domain.DataKeyLabel), defaultTextLabel),
					Text:   truncateRunes(content, maxUpstreamTextRunes),
					Target: target.ID,
				})
				seenText[src.ID] = struct{}{}

			case domain.NodeTypeImage:
				if _, dup := seenImage[src.ID]; dup {
					continue
				}
				url := dataString(src.Data, domain.DataKeyURL)
				if strings.HasPrefix(url, "data:") {
					url = ""
				} else {
					url = truncateRunes(url, maxUpstreamURLRunes)
				}
				out.Images = append(out.Images, domain.UpstreamImage{
					ID:     src.ID,
					Label:  orDefault(dataString(src.Data, domain.DataKeyLabel), defaultImageLabel),
					Role:   orDefault(dataString(in.Data, domain.EdgeKeyImageRole), domain.DefaultImageRole),
					URL:    url,
					Target: target.ID,
				})
				seenImage[src.ID] = struct{}{}
			}
		}
	}

	return out
}

// dataString returns data[key] as normalized text, or "" if it is not a string.
func dataString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return normalizeText(s)
}

func normalizeText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// truncateRunes cuts s to max runes and marks the cut with an ellipsis.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	i := 0
	for _, r := range s {
		if i >= max {
			break
		}
		b.WriteRune(r)
		i++
	}
	b.WriteString(truncationMark)
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
