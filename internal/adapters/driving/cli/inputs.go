package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var inputsCmd = &cobra.Command{
	Use:   "inputs [project-id] [node-id]",
	Short: "Show the generator inputs a node feeds",
	Long: `Follow the node's outgoing edges to image and video generators and list
the prompt texts and reference images connected to them.`,
	Args: cobra.ExactArgs(2),
	RunE: runInputs,
}

// inputsJSON is a flag for the inputs command.
var inputsJSON bool

func init() {
	inputsCmd.Flags().BoolVar(&inputsJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(inputsCmd)
}

func runInputs(cmd *cobra.Command, args []string) error {
	if err := requireProjects(); err != nil {
		return err
	}

	inputs, err := projectService.UpstreamInputs(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to collect inputs: %w", err)
	}

	if inputsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inputs)
	}

	if inputs.IsEmpty() {
		cmd.Println("No upstream inputs.")
		return nil
	}

	out := cmd.OutOrStdout()
	if len(inputs.Text) > 0 {
		cmd.Println("Text")
		rows := make([][]string, len(inputs.Text))
		for i, t := range inputs.Text {
			rows[i] = []string{t.ID, t.Label, t.Target, summarizeData(map[string]any{"text": t.Text})}
		}
		printTable(out, []string{"NODE", "LABEL", "TARGET", "TEXT"}, rows)
	}
	if len(inputs.Images) > 0 {
		if len(inputs.Text) > 0 {
			cmd.Println()
		}
		cmd.Println("Images")
		rows := make([][]string, len(inputs.Images))
		for i, img := range inputs.Images {
			rows[i] = []string{img.ID, img.Label, img.Role, img.Target, img.URL}
		}
		printTable(out, []string{"NODE", "LABEL", "ROLE", "TARGET", "URL"}, rows)
	}
	return nil
}
