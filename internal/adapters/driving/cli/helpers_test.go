package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/scheduler"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
	"github.com/custodia-labs/nexus-canvas/internal/core/services"
)

// testEnv holds the real services installed for a test.
type testEnv struct {
	store  *memory.ProjectStore
	config *memory.ConfigStore
}

// setupTestServices installs services over memory stores and returns a
// cleanup that restores the previous ones.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	prev := Services{
		Projects:  projectService,
		Settings:  settingsService,
		NewCanvas: newCanvas,
		Watcher:   projectWatcher,
		Metrics:   metricsHandler,
		Close:     closeServices,
	}
	prevBootstrap := bootstrap

	settings := domain.DefaultCanvasSettings()
	store := memory.NewProjectStore()
	config := memory.NewConfigStore()
	sched := scheduler.New()

	bootstrap = nil
	useServices(&Services{
		Projects: services.NewProjectService(store, settings),
		Settings: services.NewSettingsService(config, nil),
		NewCanvas: func() driving.CanvasService {
			return services.NewCanvas(settings, store, sched, nil, nil)
		},
	})

	t.Cleanup(func() {
		sched.Stop()
		useServices(&prev)
		bootstrap = prevBootstrap
	})
	return &testEnv{store: store, config: config}
}

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// mustExecute is execute that fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, "", args...)
	require.NoError(t, err, out)
	return out
}

// lastLine returns the last non-empty output line.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
