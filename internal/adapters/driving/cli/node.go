package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Edit the nodes of a project",
	Long: `Add, update, duplicate and remove nodes. Each command loads the project,
applies the change and saves it.

Data fields are given as --set key=value. Values that parse as JSON keep
their type, so --set count=2 stores a number and --set 'content="2"' a string.`,
}

var nodeAddCmd = &cobra.Command{
	Use:   "add [project-id] [type]",
	Short: "Add a node and print its id",
	Long: `Add a node. Known types are text, imageConfig, videoConfig, image, video,
audio and localSave; other types are stored with empty default data.`,
	Args: cobra.ExactArgs(2),
	RunE: runNodeAdd,
}

var nodeUpdateCmd = &cobra.Command{
	Use:   "update [project-id] [node-id]",
	Short: "Update a node's position, stacking order or data",
	Args:  cobra.ExactArgs(2),
	RunE:  runNodeUpdate,
}

var nodeRemoveCmd = &cobra.Command{
	Use:   "remove [project-id] [node-id]",
	Short: "Remove a node and its edges",
	Args:  cobra.ExactArgs(2),
	RunE:  runNodeRemove,
}

var nodeDuplicateCmd = &cobra.Command{
	Use:   "duplicate [project-id] [node-id]",
	Short: "Duplicate a node and print the copy's id",
	Args:  cobra.ExactArgs(2),
	RunE:  runNodeDuplicate,
}

// Node flags.
var (
	nodeX    float64
	nodeY    float64
	nodeZ    int
	nodeSets []string
)

func init() {
	for _, c := range []*cobra.Command{nodeAddCmd, nodeUpdateCmd} {
		c.Flags().Float64Var(&nodeX, "x", 0, "X coordinate")
		c.Flags().Float64Var(&nodeY, "y", 0, "Y coordinate")
		c.Flags().StringArrayVar(&nodeSets, "set", nil, "Data field as key=value (repeatable)")
	}
	nodeUpdateCmd.Flags().IntVar(&nodeZ, "z", 0, "Stacking order")

	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeUpdateCmd)
	nodeCmd.AddCommand(nodeRemoveCmd)
	nodeCmd.AddCommand(nodeDuplicateCmd)
	rootCmd.AddCommand(nodeCmd)
}

func runNodeAdd(cmd *cobra.Command, args []string) error {
	data, err := parseAssignments(nodeSets)
	if err != nil {
		return err
	}

	return editProject(cmd, args[0], func(c driving.CanvasService) error {
		id := c.AddNode(domain.NodeType(args[1]), domain.Position{X: nodeX, Y: nodeY}, data)
		cmd.Println(id)
		return nil
	})
}

func runNodeUpdate(cmd *cobra.Command, args []string) error {
	data, err := parseAssignments(nodeSets)
	if err != nil {
		return err
	}
	flags := cmd.Flags()

	return editProject(cmd, args[0], func(c driving.CanvasService) error {
		node, ok := c.GetNodeByID(args[1])
		if !ok {
			return fmt.Errorf("node %s: %w", args[1], domain.ErrNotFound)
		}

		patch := domain.NodePatch{Data: data}
		if flags.Changed("x") || flags.Changed("y") {
			pos := node.Position
			if flags.Changed("x") {
				pos.X = nodeX
			}
			if flags.Changed("y") {
				pos.Y = nodeY
			}
			patch.Position = &pos
		}
		if flags.Changed("z") {
			z := nodeZ
			patch.ZIndex = &z
		}
		c.UpdateNode(args[1], patch)
		cmd.Printf("Node %s updated.\n", args[1])
		return nil
	})
}

func runNodeRemove(cmd *cobra.Command, args []string) error {
	return editProject(cmd, args[0], func(c driving.CanvasService) error {
		if _, ok := c.GetNodeByID(args[1]); !ok {
			return fmt.Errorf("node %s: %w", args[1], domain.ErrNotFound)
		}
		c.RemoveNode(args[1])
		cmd.Printf("Node %s removed.\n", args[1])
		return nil
	})
}

func runNodeDuplicate(cmd *cobra.Command, args []string) error {
	return editProject(cmd, args[0], func(c driving.CanvasService) error {
		id := c.DuplicateNode(args[1])
		if id == "" {
			return fmt.Errorf("node %s: %w", args[1], domain.ErrNotFound)
		}
		cmd.Println(id)
		return nil
	})
}
