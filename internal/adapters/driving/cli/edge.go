package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Edit the edges of a project",
}

var edgeAddCmd = &cobra.Command{
	Use:   "add [project-id] [source-id] [target-id]",
	Short: "Connect two nodes and print the edge id",
	Long: `Connect two existing nodes. Use --set order=N to fix the position of the
edge among the target's inputs and --set imageRole=NAME for image inputs.`,
	Args: cobra.ExactArgs(3),
	RunE: runEdgeAdd,
}

var edgeRemoveCmd = &cobra.Command{
	Use:   "remove [project-id] [edge-id]",
	Short: "Remove an edge",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdgeRemove,
}

// Edge flags.
var (
	edgeSourceHandle string
	edgeTargetHandle string
	edgeSets         []string
)

func init() {
	edgeAddCmd.Flags().StringVar(&edgeSourceHandle, "source-handle", "", "Source port")
	edgeAddCmd.Flags().StringVar(&edgeTargetHandle, "target-handle", "", "Target port")
	edgeAddCmd.Flags().StringArrayVar(&edgeSets, "set", nil, "Data field as key=value (repeatable)")

	edgeCmd.AddCommand(edgeAddCmd)
	edgeCmd.AddCommand(edgeRemoveCmd)
	rootCmd.AddCommand(edgeCmd)
}

func runEdgeAdd(cmd *cobra.Command, args []string) error {
	data, err := parseAssignments(edgeSets)
	if err != nil {
		return err
	}

	return editProject(cmd, args[0], func(c driving.CanvasService) error {
		id := c.AddEdge(domain.EdgeParams{
			Source:       args[1],
			Target:       args[2],
			SourceHandle: edgeSourceHandle,
			TargetHandle: edgeTargetHandle,
			Data:         data,
		})
		if id == "" {
			return fmt.Errorf("%w: both %s and %s must be existing nodes", domain.ErrInvalidInput, args[1], args[2])
		}
		cmd.Println(id)
		return nil
	})
}

func runEdgeRemove(cmd *cobra.Command, args []string) error {
	return editProject(cmd, args[0], func(c driving.CanvasService) error {
		before := len(c.Edges())
		c.RemoveEdge(args[1])
		if len(c.Edges()) == before {
			return fmt.Errorf("edge %s: %w", args[1], domain.ErrNotFound)
		}
		cmd.Printf("Edge %s removed.\n", args[1])
		return nil
	})
}
