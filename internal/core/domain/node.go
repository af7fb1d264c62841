package domain

import "math"

// NodeType identifies the kind of content a node holds.
type NodeType string

// Known node types. Other values are accepted and get empty default data.
const (
	// NodeTypeText holds free text, typically a prompt.
	NodeTypeText NodeType = "text"

	// NodeTypeImageConfig configures an image generation request.
	NodeTypeImageConfig NodeType = "imageConfig"

	// NodeTypeVideoConfig configures a video generation request.
	NodeTypeVideoConfig NodeType = "videoConfig"

	// NodeTypeImage holds a generated or imported image.
	NodeTypeImage NodeType = "image"

	// NodeTypeVideo holds a generated or imported video.
	NodeTypeVideo NodeType = "video"

	// NodeTypeAudio holds a generated or imported audio clip.
	NodeTypeAudio NodeType = "audio"

	// NodeTypeLocalSave writes upstream media to a local path.
	NodeTypeLocalSave NodeType = "localSave"
)

// IsKnown returns true if the node type is one of the built-in types.
func (t NodeType) IsKnown() bool {
	switch t {
	case NodeTypeText, NodeTypeImageConfig, NodeTypeVideoConfig,
		NodeTypeImage, NodeTypeVideo, NodeTypeAudio, NodeTypeLocalSave:
		return true
	default:
		return false
	}
}

// IsGenerator returns true for config nodes that drive a generation request.
func (t NodeType) IsGenerator() bool {
	return t == NodeTypeImageConfig || t == NodeTypeVideoConfig
}

// String returns the string representation.
func (t NodeType) String() string {
	return string(t)
}

// Well-known data keys.
const (
	DataKeyContent   = "content"
	DataKeyLabel     = "label"
	DataKeyURL       = "url"
	DataKeyPrompt    = "prompt"
	DataKeyCreatedAt = "createdAt"
	DataKeyUpdatedAt = "updatedAt"
)

// DefaultNodeData returns a fresh copy of the default data for a node type.
func DefaultNodeData(t NodeType) map[string]any {
	switch t {
	case NodeTypeText:
		return map[string]any{DataKeyContent: ""}
	case NodeTypeImageConfig:
		return map[string]any{DataKeyPrompt: "", "model": "", "aspectRatio": "1:1", "count": 1}
	case NodeTypeVideoConfig:
		return map[string]any{DataKeyPrompt: "", "model": "", "aspectRatio": "16:9", "duration": 5}
	case NodeTypeImage, NodeTypeVideo, NodeTypeAudio:
		return map[string]any{DataKeyURL: "", DataKeyLabel: ""}
	case NodeTypeLocalSave:
		return map[string]any{"path": ""}
	default:
		return map[string]any{}
	}
}

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite returns true if both coordinates are finite numbers.
func (p Position) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Node is a unit of canvas content.
type Node struct {
	// ID is unique within the document.
	ID string `json:"id"`

	// Type selects the default data and how collaborators treat the node.
	Type NodeType `json:"type"`

	// Position is the top-left corner on the canvas.
	Position Position `json:"position"`

	// Data holds type-specific fields (prompt, url, content, ...).
	Data map[string]any `json:"data"`

	// ZIndex is the stacking order, always within [0, ZMax].
	ZIndex int `json:"zIndex"`
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Data = CloneData(n.Data)
	return n
}

// NodePatch describes a partial node update. Nil fields are left unchanged.
type NodePatch struct {
	// Data is shallow-merged into the existing data.
	Data map[string]any

	// Position replaces the position when finite.
	Position *Position

	// ZIndex replaces the stacking order when non-negative.
	ZIndex *int
}

// CloneData deep-copies a data map, including nested maps and slices.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-like value. NaN and infinite floats have no
// JSON form and become nil.
func CloneValue(v any) any {
	switch val := v.(type) {
	case float64:
		if !isFinite(val) {
			return nil
		}
		return val
	case float32:
		if !isFinite(float64(val)) {
			return nil
		}
		return val
	case map[string]any:
		return CloneData(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = CloneValue(val[i])
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
