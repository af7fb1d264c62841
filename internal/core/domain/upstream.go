package domain

// UpstreamText is a text node feeding a generator node.
type UpstreamText struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`

	// Target is the generator node the text feeds.
	Target string `json:"target"`
}

// UpstreamImage is an image node feeding a generator node.
type UpstreamImage struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Role  string `json:"role"`
	URL   string `json:"url"`

	// Target is the generator node the image feeds.
	Target string `json:"target"`
}

// UpstreamInputs are the prompt and reference inputs resolved for a node.
type UpstreamInputs struct {
	Text   []UpstreamText  `json:"text"`
	Images []UpstreamImage `json:"images"`
}

// IsEmpty returns true if no inputs were found.
func (u UpstreamInputs) IsEmpty() bool {
	return len(u.Text) == 0 && len(u.Images) == 0
}
