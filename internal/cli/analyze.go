// internal/cli/analyze.go
package medgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/medgen/internal/metrics"
	"github.com/mwiater/medgen/internal/report"
	"github.com/mwiater/medgen/internal/stream"
	"github.com/spf13/cobra"
)

// analyzeCmd implements 'analyze', which aggregates exported runs per model.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <report>...",
	Short: "Compare model metrics across exported runs",
	Long: `Aggregate the metrics of reports written by --export or --exportYAML and
rank the models by throughput and time to first token.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.OutOrStdout(), args, getConfig().JSONMode)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(out io.Writer, paths []string, jsonMode bool) error {
	runs := make([]map[string]stream.Metrics, 0, len(paths))
	var errs []error
	for _, path := range paths {
		r, err := report.Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		runs = append(runs, r.Metrics())
	}
	if len(runs) == 0 {
		return errors.Join(append(errs, errors.New("no reports to analyze"))...)
	}
	for _, err := range errs {
		fmt.Fprintf(out, "%s %v\n", failedResult("Skipped:"), err)
	}

	analysis := metrics.Analyze(runs)
	if jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}

	fmt.Fprintln(out, sectionTitle(fmt.Sprintf("Analysis of %d runs", analysis.Runs)))
	fmt.Fprintln(out, analysisTable(analysis))
	return nil
}

func analysisTable(a metrics.Analysis) string {
	header := []string{"Model", "Runs", "TTFT (ms)", "TPS (tok/s)", "TPS σ", "Efficiency", "Speed", "Latency", "Stability"}
	rows := [][]string{header}
	for _, m := range a.Models {
		rows = append(rows, []string{
			m.Model,
			fmt.Sprintf("%d", m.Runs),
			fmt.Sprintf("%.0f", m.TTFT.Mean),
			fmt.Sprintf("%.1f", m.TPS.Mean),
			fmt.Sprintf("%.1f", m.TPS.StdDev()),
			fmt.Sprintf("%.0f", m.Scores.Efficiency),
			m.Labels.SpeedTier,
			m.Labels.LatencyProfile,
			m.Labels.Stability,
		})
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, len(rows))
	for r, row := range rows {
		style := tableCellStyle
		if r == 0 {
			style = tableHeaderStyle
		}
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = style.Width(widths[i] + 2).Render(cell)
		}
		lines[r] = strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " ")
	}
	return strings.Join(lines, "\n")
}
