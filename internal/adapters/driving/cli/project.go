package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage stored projects",
	Long:  `List, inspect, export, import and delete canvas projects.`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty project",
	Args:  cobra.NoArgs,
	RunE:  runProjectNew,
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project's nodes and edges",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectExportCmd = &cobra.Command{
	Use:   "export [project-id]",
	Short: "Write a project's snapshot JSON",
	Long: `Write the snapshot JSON of a project after migrating legacy shapes.
The output goes to stdout unless --output is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectExport,
}

var projectImportCmd = &cobra.Command{
	Use:   "import [project-id] [file]",
	Short: "Store snapshot JSON under a project id",
	Long: `Migrate snapshot JSON and store it under project-id, replacing any
existing project. Reads stdin when file is omitted or "-".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runProjectImport,
}

var projectWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print project changes as they happen",
	Long:  `Print a line whenever a project is written or removed, by this or any other process. Requires the file backend.`,
	Args:  cobra.NoArgs,
	RunE:  runProjectWatch,
}

// exportOutput is a flag for the export command.
var exportOutput string

func init() {
	projectExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectExportCmd)
	projectCmd.AddCommand(projectImportCmd)
	projectCmd.AddCommand(projectWatchCmd)
	rootCmd.AddCommand(projectCmd)
}

func requireProjects() error {
	if projectService == nil {
		return errors.New("project service not configured")
	}
	return nil
}

func runProjectList(cmd *cobra.Command, _ []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	infos, err := projectService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(infos) == 0 {
		cmd.Println("No projects found.")
		return nil
	}

	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{
			info.ID,
			info.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			humanSize(info.Size),
		}
	}
	printTable(cmd.OutOrStdout(), []string{"PROJECT", "UPDATED", "SIZE"}, rows)
	cmd.Printf("\nTotal: %d projects\n", len(infos))
	return nil
}

func runProjectNew(cmd *cobra.Command, _ []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	id := uuid.NewString()
	if err := projectService.Import(cmd.Context(), id, []byte("{}")); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	cmd.Println(id)
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	projectID := args[0]
	snap, err := projectService.Get(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styleTitle.Sprintf("Project %s", projectID))
	cmd.Printf("  Viewport: x=%g y=%g zoom=%g\n\n", snap.Viewport.X, snap.Viewport.Y, snap.Viewport.Zoom)

	cmd.Printf("Nodes (%d)\n", len(snap.Nodes))
	nodeRows := make([][]string, len(snap.Nodes))
	for i, n := range snap.Nodes {
		nodeRows[i] = []string{
			n.ID,
			n.Type.String(),
			fmt.Sprintf("%g,%g", n.Position.X, n.Position.Y),
			fmt.Sprintf("%d", n.ZIndex),
			summarizeData(n.Data),
		}
	}
	printTable(out, []string{"ID", "TYPE", "POSITION", "Z", "DATA"}, nodeRows)

	cmd.Printf("\nEdges (%d)\n", len(snap.Edges))
	edgeRows := make([][]string, len(snap.Edges))
	for i, e := range snap.Edges {
		edgeRows[i] = []string{e.ID, e.Source, e.Target, summarizeData(e.Data)}
	}
	printTable(out, []string{"ID", "SOURCE", "TARGET", "DATA"}, edgeRows)
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	if err := projectService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	cmd.Printf("Project %s deleted.\n", args[0])
	return nil
}

func runProjectExport(cmd *cobra.Command, args []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	data, err := projectService.Export(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to export project: %w", err)
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	cmd.Printf("Exported %s to %s\n", args[0], exportOutput)
	return nil
}

func runProjectImport(cmd *cobra.Command, args []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if len(args) < 2 || args[1] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if err := projectService.Import(cmd.Context(), args[0], data); err != nil {
		return fmt.Errorf("failed to import project: %w", err)
	}
	cmd.Println(styleGood.Sprintf("Imported %s (%d bytes)", args[0], len(data)))
	return nil
}

func runProjectWatch(cmd *cobra.Command, _ []string) error {
	if projectWatcher == nil {
		return errors.New("watching requires the file storage backend")
	}

	cmd.Println(styleSubtle.Sprint("Watching for project changes, press Ctrl-C to stop."))
	return projectWatcher.Watch(cmd.Context(), func(projectID string, op fsnotify.Op) {
		cmd.Printf("%-8s %s\n", describeOp(op), projectID)
	})
}

func describeOp(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return "removed"
	case op.Has(fsnotify.Create):
		return "created"
	default:
		return "written"
	}
}

// summarizeData renders data as sorted key=value pairs, long values cut.
func summarizeData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(data[k])
		if r := []rune(v); len(r) > 24 {
			v = string(r[:23]) + "…"
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
