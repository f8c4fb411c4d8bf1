// internal/cli/generate_output.go
package medgen

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/mwiater/medgen/internal/report"
)

var (
	modelHeader  = color.New(color.FgCyan, color.Bold).SprintFunc()
	sectionTitle = color.New(color.FgMagenta, color.Bold).SprintFunc()
	failedResult = color.New(color.FgRed).SprintFunc()
	faintResult  = color.New(color.Faint).SprintFunc()
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	tableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// printReport writes a finished run for reading in a terminal.
func printReport(out io.Writer, r report.Report) {
	for _, m := range r.Models {
		fmt.Fprintf(out, "%s\n", modelHeader("== "+m.Model+" =="))
		switch {
		case m.Output == "":
			fmt.Fprintln(out, faintResult("(no output)"))
		case !m.Final:
			fmt.Fprintln(out, m.Output)
			fmt.Fprintln(out, faintResult("(incomplete)"))
		default:
			fmt.Fprintln(out, m.Output)
		}
		fmt.Fprintln(out)
	}

	if r.Error != "" {
		fmt.Fprintf(out, "%s %s\n\n", failedResult("Error:"), r.Error)
	}

	if table := metricsTable(r); table != "" {
		fmt.Fprintln(out, sectionTitle("Metrics"))
		fmt.Fprintln(out, table)
		fmt.Fprintln(out)
	}

	if r.Evaluation != nil {
		fmt.Fprintln(out, sectionTitle(fmt.Sprintf("Evaluation (%s)", r.Evaluation.EvaluatorModel)))
		fmt.Fprintln(out, r.Evaluation.Text)
	}
}

// metricsTable lays out one row per model that reported metrics.
func metricsTable(r report.Report) string {
	header := []string{"Model", "TTFT (ms)", "TPS (tok/s)", "TPOT (ms)", "ITL (ms)", "Tokens", "Total (ms)"}
	rows := [][]string{}
	for _, m := range r.Models {
		mt := m.Metrics
		if mt == nil {
			continue
		}
		rows = append(rows, []string{
			m.Model,
			fmt.Sprintf("%.0f", mt.TTFTMillis),
			fmt.Sprintf("%.1f", mt.TokensPerSecond),
			fmt.Sprintf("%.1f", mt.TPOTMillis),
			fmt.Sprintf("%.1f", mt.ITLAvgMillis),
			fmt.Sprintf("%d", mt.TotalTokens),
			fmt.Sprintf("%.0f", mt.TotalTimeMillis),
		})
	}
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	render := func(style lipgloss.Style, cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Width(widths[i] + 2).Render(cell)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	lines := []string{render(tableHeaderStyle, header)}
	for _, row := range rows {
		lines = append(lines, render(tableCellStyle, row))
	}
	return strings.Join(lines, "\n")
}
