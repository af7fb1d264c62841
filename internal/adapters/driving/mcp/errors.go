// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// canvas store. It lets AI assistants read and edit canvas graphs.
package mcp

import "errors"

var (
	// ErrMissingCanvasService is returned when the canvas service is not provided.
	ErrMissingCanvasService = errors.New("mcp: canvas service is required")

	// ErrMissingProjectService is returned when the project service is not provided.
	ErrMissingProjectService = errors.New("mcp: project service is required")
)
