// Package cli provides the nexus command line.
//
// Commands reach the core through package-level driving ports. They are
// installed by the bootstrap registered with SetBootstrap, which runs once
// the global flags are parsed.
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

var version = "dev"

// Options are the global flags handed to the bootstrap.
type Options struct {
	ConfigDir string
	DataDir   string
	Verbose   bool
}

// ProjectWatcher reports snapshot changes made by any process.
type ProjectWatcher interface {
	Watch(ctx context.Context, fn func(projectID string, op fsnotify.Op)) error
}

// Services are the ports the commands use. Only Projects and Settings are
// required.
type Services struct {
	Projects driving.ProjectService
	Settings driving.SettingsService

	// NewCanvas returns an empty canvas bound to the project store.
	NewCanvas func() driving.CanvasService

	// Watcher is set when the storage backend can report external changes.
	Watcher ProjectWatcher

	// Metrics is served next to the MCP endpoint in HTTP mode.
	Metrics http.Handler

	// Close flushes queued writes and stops background work.
	Close func(ctx context.Context) error
}

// Bootstrap builds the services for the parsed global options.
type Bootstrap func(opts Options) (*Services, error)

var (
	bootstrap Bootstrap
	opts      Options

	projectService  driving.ProjectService
	settingsService driving.SettingsService
	newCanvas       func() driving.CanvasService
	projectWatcher  ProjectWatcher
	metricsHandler  http.Handler
	closeServices   func(ctx context.Context) error
)

// SetBootstrap registers the function that wires the services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by `nexus version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func useServices(s *Services) {
	projectService = s.Projects
	settingsService = s.Settings
	newCanvas = s.NewCanvas
	projectWatcher = s.Watcher
	metricsHandler = s.Metrics
	closeServices = s.Close
}

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Canvas graph document store",
	Long: `nexus stores AI canvas projects: graphs of prompt, generator and media
nodes joined by data-flow edges.

Use the subcommands to inspect and edit projects, or run "nexus mcp serve"
to let an AI assistant edit them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		return teardown(cmd.Context())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&opts.ConfigDir, "config-dir", "", "Configuration directory (default ~/.nexus)")
	flags.StringVar(&opts.DataDir, "data-dir", "", "Data directory, overrides storage.data_dir")
}

// setup configures logging and runs the bootstrap. Commands marked with the
// skipBootstrap annotation (version) run without services.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(opts.Verbose)
	if bootstrap == nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}

	svcs, err := bootstrap(opts)
	if err != nil {
		return err
	}
	if svcs.Projects == nil || svcs.Settings == nil {
		return errors.New("bootstrap returned incomplete services")
	}
	useServices(svcs)
	return nil
}

func teardown(ctx context.Context) error {
	defer logger.Sync()
	if closeServices == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := closeServices(ctx)
	closeServices = nil
	return err
}

const skipBootstrap = "nexus/skip-bootstrap"

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so long-running commands (watch, mcp serve) shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRunE does not run after a failed command.
		if cerr := teardown(context.Background()); cerr != nil {
			logger.Error("closing services: %v", cerr)
		}
	}
	return err
}
