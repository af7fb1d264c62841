package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure canvas tunables, the storage backend and history
compaction.

Canvas tunables are edited in config.toml or overridden with NEXUS_*
environment variables, e.g. NEXUS_CANVAS_MAX_HISTORY=100.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to choose the storage backend and compaction codec.`,
	RunE:  runSettingsWizard,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "backend [file|sqlite|memory]",
	Short: "Set the storage backend",
	Long: `Set where project snapshots are stored.

Available backends:
  file   - One JSON document per project (default)
  sqlite - A single SQLite database
  memory - Process memory only, nothing survives exit`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsBackend,
}

var settingsCodecCmd = &cobra.Command{
	Use:   "codec [none|zstd|s2]",
	Short: "Set the history compaction codec",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsCodec,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsBackendCmd)
	settingsCmd.AddCommand(settingsCodecCmd)
	rootCmd.AddCommand(settingsCmd)
}

func requireSettings() error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(styleTitle.Sprint("Current Settings"))
	cmd.Println("================")
	cmd.Println()

	c := settings.Canvas
	cmd.Println("[Canvas]")
	cmd.Printf("  Max zIndex:           %d\n", c.ZMax)
	cmd.Printf("  History depth:        %d\n", c.MaxHistory)
	cmd.Printf("  History throttle:     %s\n", c.HistoryThrottle)
	cmd.Printf("  Save debounce:        %s\n", c.SaveDebounce)
	cmd.Printf("  Autosave settle:      %s\n", c.AutosaveSettle)
	cmd.Printf("  Save retry limit:     %d\n", c.SaveRetryLimit)
	cmd.Printf("  Visibility bump:      %s\n", c.VisibilityBump)
	cmd.Printf("  Visibility release:   %s\n", c.VisibilityRelease)
	cmd.Printf("  Compaction retention: %d\n", c.CompactionRetention)
	cmd.Printf("  Duplicate offset:     %g,%g\n", c.DuplicateOffset.X, c.DuplicateOffset.Y)
	cmd.Printf("  Size fields:          %s\n", strings.Join(c.SizeAffectingFields, ", "))
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend.Description())
	dataDir := settings.Storage.DataDir
	if dataDir == "" {
		dataDir = "(default)"
	}
	cmd.Printf("  Data dir: %s\n", dataDir)
	cmd.Printf("  Write-behind: %s\n", yesNo(settings.Storage.WriteBehind))
	cmd.Println()

	cmd.Println("[History]")
	cmd.Printf("  Codec: %s\n", settings.History.Codec.Description())
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(styleWarn.Sprintf("Warning: %v", err))
		cmd.Println("Run 'nexus settings wizard' to fix configuration issues.")
	} else {
		cmd.Println(styleGood.Sprint("Configuration is valid."))
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(styleTitle.Sprint("Nexus Settings Wizard"))
	cmd.Println("=====================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Select Storage Backend")
	cmd.Println("------------------------------")
	backends := domain.AllStorageBackends()
	current := 1
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
		if b == settings.Storage.Backend {
			current = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	backend := backends[parseChoice(readLine(reader), len(backends), current)-1]
	if err := settingsService.SetStorageBackend(backend); err != nil {
		return fmt.Errorf("failed to set storage backend: %w", err)
	}
	cmd.Printf("Set storage backend to: %s\n\n", backend.Description())

	cmd.Println("Step 2: Select Compaction Codec")
	cmd.Println("-------------------------------")
	codecs := domain.AllCodecs()
	current = 1
	for i, c := range codecs {
		cmd.Printf("  %d. %s\n", i+1, c.Description())
		if c == settings.History.Codec {
			current = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	codec := codecs[parseChoice(readLine(reader), len(codecs), current)-1]
	if err := settingsService.SetCodec(codec); err != nil {
		return fmt.Errorf("failed to set codec: %w", err)
	}
	cmd.Printf("Set compaction codec to: %s\n\n", codec.Description())

	if err := settingsService.Validate(); err != nil {
		cmd.Println(styleWarn.Sprintf("Warning: %v", err))
		return nil
	}
	cmd.Println(styleGood.Sprint("Configuration saved."))
	return nil
}

func runSettingsBackend(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	backend := domain.StorageBackend(strings.ToLower(args[0]))
	if err := settingsService.SetStorageBackend(backend); err != nil {
		return fmt.Errorf("failed to set storage backend: %w", err)
	}
	cmd.Printf("Storage backend set to: %s\n", backend.Description())
	return nil
}

func runSettingsCodec(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	codec := domain.CodecName(strings.ToLower(args[0]))
	if err := settingsService.SetCodec(codec); err != nil {
		return fmt.Errorf("failed to set codec: %w", err)
	}
	cmd.Printf("Compaction codec set to: %s\n", codec.Description())
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
