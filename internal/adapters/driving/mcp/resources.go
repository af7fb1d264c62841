package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for canvas resources.
	uriScheme = "nexus://"

	mimeJSON = "application/json"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "projects",
		Name:        "projects",
		Description: "List of stored canvas projects",
		MIMEType:    mimeJSON,
	}, s.handleProjectsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "canvas",
		Name:        "canvas",
		Description: "The graph of the project currently open for editing",
		MIMEType:    mimeJSON,
	}, s.handleCanvasResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "projects/{projectId}",
		Name:        "project-snapshot",
		Description: "Snapshot JSON of a stored project",
		MIMEType:    mimeJSON,
	}, s.handleProjectResource)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

// handleProjectsResource returns the stored projects.
func (s *Server) handleProjectsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos, err := s.ports.Projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	out := make([]ProjectInfoOutput, len(infos))
	for i, info := range infos {
		out[i] = ProjectInfoOutput{
			ID:        info.ID,
			UpdatedAt: info.UpdatedAt.UTC().Format(time.RFC3339),
			Size:      info.Size,
		}
	}
	return jsonResult(req.Params.URI, out)
}

// handleCanvasResource returns the open document.
func (s *Server) handleCanvasResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Canvas.ProjectID() == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResult(req.Params.URI, s.graph())
}

// handleProjectResource returns the migrated snapshot of one project.
func (s *Server) handleProjectResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	projectID := extractProjectID(req.Params.URI)
	if projectID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := s.ports.Projects.Export(ctx, projectID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("exporting project: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

// extractProjectID extracts the project ID from a URI like nexus://projects/{projectId}.
func extractProjectID(uri string) string {
	const prefix = uriScheme + "projects/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
