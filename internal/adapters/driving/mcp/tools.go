package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

// ProjectInput selects a stored project.
type ProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project to open"`
}

// IDInput names a node or edge of the open project.
type IDInput struct {
	ID string `json:"id" jsonschema:"node or edge id, e.g. node_3"`
}

// EmptyInput is used by tools that take no arguments.
type EmptyInput struct{}

// AddNodeInput is the input schema for add_node.
type AddNodeInput struct {
	Type string         `json:"type" jsonschema:"node type: text, imageConfig, videoConfig, image, video, audio or localSave"`
	X    float64        `json:"x,omitempty" jsonschema:"canvas x coordinate"`
	Y    float64        `json:"y,omitempty" jsonschema:"canvas y coordinate"`
	Data map[string]any `json:"data,omitempty" jsonschema:"fields merged over the type defaults"`
}

// UpdateNodeInput is the input schema for update_node. Omitted fields are
// left unchanged.
type UpdateNodeInput struct {
	ID     string         `json:"id" jsonschema:"node id"`
	X      *float64       `json:"x,omitempty" jsonschema:"new x coordinate"`
	Y      *float64       `json:"y,omitempty" jsonschema:"new y coordinate"`
	ZIndex *int           `json:"z_index,omitempty" jsonschema:"new stacking order"`
	Data   map[string]any `json:"data,omitempty" jsonschema:"fields shallow-merged into the node data"`
}

// AddEdgeInput is the input schema for add_edge.
type AddEdgeInput struct {
	Source       string         `json:"source" jsonschema:"source node id"`
	Target       string         `json:"target" jsonschema:"target node id"`
	SourceHandle string         `json:"source_handle,omitempty" jsonschema:"source port"`
	TargetHandle string         `json:"target_handle,omitempty" jsonschema:"target port"`
	Data         map[string]any `json:"data,omitempty" jsonschema:"edge data such as order or imageRole"`
}

// GraphOutput is the open document.
type GraphOutput struct {
	ProjectID string          `json:"project_id"`
	Nodes     []domain.Node   `json:"nodes"`
	Edges     []domain.Edge   `json:"edges"`
	Viewport  domain.Viewport `json:"viewport"`
	CanUndo   bool            `json:"can_undo"`
	CanRedo   bool            `json:"can_redo"`
}

// ProjectOutput names a project.
type ProjectOutput struct {
	ProjectID string `json:"project_id"`
}

// ProjectInfoOutput describes a stored project.
type ProjectInfoOutput struct {
	ID        string `json:"id"`
	UpdatedAt string `json:"updated_at"`
	Size      int64  `json:"size"`
}

// ProjectsOutput is the output schema for list_projects.
type ProjectsOutput struct {
	Projects []ProjectInfoOutput `json:"projects"`
	Count    int                 `json:"count"`
}

// NodeOutput returns one node.
type NodeOutput struct {
	Node domain.Node `json:"node"`
}

// EdgeOutput returns a created edge id.
type EdgeOutput struct {
	ID string `json:"id"`
}

// RemovedOutput reports whether something was removed.
type RemovedOutput struct {
	Removed bool `json:"removed"`
}

// HistoryOutput is the output schema for undo and redo.
type HistoryOutput struct {
	Performed bool   `json:"performed"`
	Notice    string `json:"notice,omitempty"`
	CanUndo   bool   `json:"can_undo"`
	CanRedo   bool   `json:"can_redo"`
}

// UpstreamOutput is the output schema for upstream_inputs.
type UpstreamOutput struct {
	Inputs domain.UpstreamInputs `json:"inputs"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List stored canvas projects, most recently saved first",
	}, s.handleListProjects)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_project",
		Description: "Create an empty project and open it",
	}, s.handleCreateProject)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "open_project",
		Description: "Open a stored project for editing; a project that was never saved opens empty",
	}, s.handleOpenProject)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_graph",
		Description: "Return the nodes, edges and viewport of the open project",
	}, s.handleGetGraph)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_node",
		Description: "Add a node to the open project",
	}, s.handleAddNode)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_node",
		Description: "Update a node's position, stacking order or data",
	}, s.handleUpdateNode)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remove_node",
		Description: "Remove a node and every edge connected to it",
	}, s.handleRemoveNode)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "duplicate_node",
		Description: "Copy a node, offset and stacked above the original",
	}, s.handleDuplicateNode)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_edge",
		Description: "Connect two nodes of the open project",
	}, s.handleAddEdge)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remove_edge",
		Description: "Remove an edge",
	}, s.handleRemoveEdge)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upstream_inputs",
		Description: "Collect the prompt texts and reference images feeding the generators a node connects to",
	}, s.handleUpstreamInputs)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "undo",
		Description: "Undo the last change",
	}, s.handleUndo)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "redo",
		Description: "Redo the last undone change",
	}, s.handleRedo)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "save",
		Description: "Save the open project now",
	}, s.handleSave)
}

func (s *Server) requireProject() error {
	if s.ports.Canvas.ProjectID() == "" {
		return domain.ErrNoProject
	}
	return nil
}

func (s *Server) graph() GraphOutput {
	c := s.ports.Canvas
	out := GraphOutput{
		ProjectID: c.ProjectID(),
		Nodes:     c.Nodes(),
		Edges:     c.Edges(),
		Viewport:  c.Viewport(),
		CanUndo:   c.CanUndo(),
		CanRedo:   c.CanRedo(),
	}
	if out.Nodes == nil {
		out.Nodes = []domain.Node{}
	}
	if out.Edges == nil {
		out.Edges = []domain.Edge{}
	}
	return out
}

func (s *Server) handleListProjects(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ProjectsOutput, error) {
	infos, err := s.ports.Projects.List(ctx)
	if err != nil {
		return nil, ProjectsOutput{}, err
	}

	out := ProjectsOutput{
		Projects: make([]ProjectInfoOutput, len(infos)),
		Count:    len(infos),
	}
	for i, info := range infos {
		out.Projects[i] = ProjectInfoOutput{
			ID:        info.ID,
			UpdatedAt: info.UpdatedAt.UTC().Format(time.RFC3339),
			Size:      info.Size,
		}
	}
	return nil, out, nil
}

func (s *Server) handleCreateProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ProjectOutput, error) {
	id := uuid.NewString()
	if err := s.ports.Projects.Import(ctx, id, []byte("{}")); err != nil {
		return nil, ProjectOutput{}, fmt.Errorf("creating project: %w", err)
	}
	if err := s.ports.Canvas.LoadProject(ctx, id); err != nil {
		return nil, ProjectOutput{}, fmt.Errorf("opening project: %w", err)
	}
	return nil, ProjectOutput{ProjectID: id}, nil
}

func (s *Server) handleOpenProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	if err := s.ports.Canvas.LoadProject(ctx, input.ProjectID); err != nil {
		return nil, GraphOutput{}, err
	}
	return nil, s.graph(), nil
}

func (s *Server) handleGetGraph(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, GraphOutput{}, err
	}
	return nil, s.graph(), nil
}

func (s *Server) handleAddNode(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AddNodeInput,
) (*mcp.CallToolResult, NodeOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, NodeOutput{}, err
	}
	nodeType := strings.TrimSpace(input.Type)
	if nodeType == "" {
		return nil, NodeOutput{}, fmt.Errorf("%w: node type is required", domain.ErrInvalidInput)
	}

	id := s.ports.Canvas.AddNode(domain.NodeType(nodeType), domain.Position{X: input.X, Y: input.Y}, input.Data)
	node, _ := s.ports.Canvas.GetNodeByID(id)
	return nil, NodeOutput{Node: node}, nil
}

func (s *Server) handleUpdateNode(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input UpdateNodeInput,
) (*mcp.CallToolResult, NodeOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, NodeOutput{}, err
	}
	c := s.ports.Canvas
	node, ok := c.GetNodeByID(input.ID)
	if !ok {
		return nil, NodeOutput{}, fmt.Errorf("node %s: %w", input.ID, domain.ErrNotFound)
	}

	patch := domain.NodePatch{Data: input.Data, ZIndex: input.ZIndex}
	if input.X != nil || input.Y != nil {
		pos := node.Position
		if input.X != nil {
			pos.X = *input.X
		}
		if input.Y != nil {
			pos.Y = *input.Y
		}
		patch.Position = &pos
	}
	c.UpdateNode(input.ID, patch)

	node, _ = c.GetNodeByID(input.ID)
	return nil, NodeOutput{Node: node}, nil
}

func (s *Server) handleRemoveNode(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, RemovedOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, RemovedOutput{}, err
	}
	if _, ok := s.ports.Canvas.GetNodeByID(input.ID); !ok {
		return nil, RemovedOutput{}, nil
	}
	s.ports.Canvas.RemoveNode(input.ID)
	return nil, RemovedOutput{Removed: true}, nil
}

func (s *Server) handleDuplicateNode(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, NodeOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, NodeOutput{}, err
	}
	id := s.ports.Canvas.DuplicateNode(input.ID)
	if id == "" {
		return nil, NodeOutput{}, fmt.Errorf("node %s: %w", input.ID, domain.ErrNotFound)
	}
	node, _ := s.ports.Canvas.GetNodeByID(id)
	return nil, NodeOutput{Node: node}, nil
}

func (s *Server) handleAddEdge(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AddEdgeInput,
) (*mcp.CallToolResult, EdgeOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, EdgeOutput{}, err
	}
	id := s.ports.Canvas.AddEdge(domain.EdgeParams{
		Source:       input.Source,
		Target:       input.Target,
		SourceHandle: input.SourceHandle,
		TargetHandle: input.TargetHandle,
		Data:         input.Data,
	})
	if id == "" {
		return nil, EdgeOutput{}, fmt.Errorf("%w: both %q and %q must be existing nodes",
			domain.ErrInvalidInput, input.Source, input.Target)
	}
	return nil, EdgeOutput{ID: id}, nil
}

func (s *Server) handleRemoveEdge(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, RemovedOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, RemovedOutput{}, err
	}
	c := s.ports.Canvas
	before := len(c.Edges())
	c.RemoveEdge(input.ID)
	return nil, RemovedOutput{Removed: len(c.Edges()) < before}, nil
}

func (s *Server) handleUpstreamInputs(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, UpstreamOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, UpstreamOutput{}, err
	}
	inputs := s.ports.Canvas.CollectUpstreamInputs(input.ID)
	if inputs.Text == nil {
		inputs.Text = []domain.UpstreamText{}
	}
	if inputs.Images == nil {
		inputs.Images = []domain.UpstreamImage{}
	}
	return nil, UpstreamOutput{Inputs: inputs}, nil
}

func (s *Server) handleUndo(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, HistoryOutput{}, err
	}
	err := s.ports.Canvas.Undo()
	if err != nil && !isHistoryNotice(err) {
		return nil, HistoryOutput{}, err
	}
	return nil, s.historyResult(err), nil
}

func (s *Server) handleRedo(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, HistoryOutput{}, err
	}
	err := s.ports.Canvas.Redo()
	if err != nil && !isHistoryNotice(err) {
		return nil, HistoryOutput{}, err
	}
	return nil, s.historyResult(err), nil
}

// isHistoryNotice reports whether err means undo/redo was simply not
// performed.
func isHistoryNotice(err error) bool {
	return errors.Is(err, domain.ErrNothingToUndo) ||
		errors.Is(err, domain.ErrNothingToRedo) ||
		domain.IsTransient(err)
}

// historyResult turns an undo/redo notice into output.
func (s *Server) historyResult(err error) HistoryOutput {
	out := HistoryOutput{
		Performed: err == nil,
		CanUndo:   s.ports.Canvas.CanUndo(),
		CanRedo:   s.ports.Canvas.CanRedo(),
	}
	if err != nil {
		out.Notice = err.Error()
	}
	return out
}

func (s *Server) handleSave(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ProjectOutput, error) {
	if err := s.requireProject(); err != nil {
		return nil, ProjectOutput{}, err
	}
	if err := s.ports.Canvas.SaveProject(ctx); err != nil {
		if errors.Is(err, domain.ErrNotImplemented) {
			return nil, ProjectOutput{}, fmt.Errorf("saving: no project store configured")
		}
		return nil, ProjectOutput{}, err
	}
	return nil, ProjectOutput{ProjectID: s.ports.Canvas.ProjectID()}, nil
}
