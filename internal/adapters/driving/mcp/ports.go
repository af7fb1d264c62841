package mcp

import (
	"net/http"

	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Canvas is the open document the editing tools act on.
	Canvas driving.CanvasService

	// Projects reads and manages stored projects.
	Projects driving.ProjectService

	// Metrics is served at /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Canvas == nil {
		return ErrMissingCanvasService
	}
	if p.Projects == nil {
		return ErrMissingProjectService
	}
	return nil
}
