package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driving/mcp"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so an AI assistant can open,
edit and save canvas projects.

By default, the server communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Prometheus metrics at /metrics

Examples:
  # Stdio mode (default)
  nexus mcp serve

  # HTTP mode
  nexus mcp serve --port 8080

  # Open a project before the first request
  nexus mcp serve --project my-project`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("project", "", "Project to open at start")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	projectID, err := cmd.Flags().GetString("project")
	if err != nil {
		return fmt.Errorf("getting project flag: %w", err)
	}
	if newCanvas == nil {
		return errors.New("canvas not configured")
	}

	ctx := cmd.Context()
	canvas := newCanvas()
	defer func() {
		// ctx is already cancelled when a served session ends.
		if err := canvas.Close(context.Background()); err != nil {
			logger.Error("closing canvas: %v", err)
		}
	}()

	if projectID != "" {
		if err := canvas.LoadProject(ctx, projectID); err != nil {
			return fmt.Errorf("opening project: %w", err)
		}
	}

	ports := &mcp.Ports{
		Canvas:   canvas,
		Projects: projectService,
		Metrics:  metricsHandler,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
