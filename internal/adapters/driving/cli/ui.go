package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Output styles. fatih/color drops the escapes when stdout is not a terminal.
var (
	styleTitle  = color.New(color.FgHiGreen, color.Bold)
	styleSubtle = color.New(color.FgHiBlack)
	styleWarn   = color.New(color.FgYellow)
	styleGood   = color.New(color.FgGreen)
)

// printTable writes an aligned table. Nothing is written for zero rows.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var head, sep strings.Builder
	head.WriteString("  ")
	sep.WriteString("  ")
	for i, h := range headers {
		fmt.Fprintf(&head, "%-*s  ", widths[i], h)
		sep.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	fmt.Fprintln(w, styleSubtle.Sprint(strings.TrimRight(head.String(), " ")))
	fmt.Fprintln(w, styleSubtle.Sprint(strings.TrimRight(sep.String(), " ")))

	for _, row := range rows {
		var line strings.Builder
		line.WriteString("  ")
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&line, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

// humanSize formats a byte count.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
