package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

// editProject opens projectID on a fresh canvas, runs fn and saves the
// result. A project that was never saved starts empty.
func editProject(cmd *cobra.Command, projectID string, fn func(c driving.CanvasService) error) error {
	if newCanvas == nil {
		return errors.New("canvas not configured")
	}

	ctx := cmd.Context()
	c := newCanvas()
	defer func() {
		if err := c.Close(ctx); err != nil {
			logger.Warn("closing canvas: %v", err)
		}
	}()

	if err := c.LoadProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	if err := fn(c); err != nil {
		return err
	}
	if err := c.SaveProject(ctx); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// parseAssignments turns key=value flags into a data map. A value that is
// valid JSON is decoded (numbers, booleans, objects, quoted strings); any
// other value is kept as a plain string.
func parseAssignments(values []string) (map[string]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(values))
	for _, kv := range values {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
