// internal/report/report.go
// Package report snapshots a finished run and exports it as JSON, Markdown or YAML.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mwiater/medgen/internal/metrics"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/stream"
	"github.com/mwiater/medgen/internal/util"
)

// ErrEmpty is returned when exporting a run that produced no output.
var ErrEmpty = errors.New("no run to export")

// Report is the exported record of one run.
type Report struct {
	RunID        string               `json:"runId" yaml:"run_id"`
	RunStarted   time.Time            `json:"runStarted" yaml:"run_started"`
	RunCompleted time.Time            `json:"runCompleted" yaml:"run_completed"`
	APIURL       string               `json:"apiURL,omitempty" yaml:"api_url,omitempty"`
	Input        string               `json:"input" yaml:"input"`
	Models       []ModelResult        `json:"models" yaml:"models"`
	Summary      metrics.Summary      `json:"summary" yaml:"summary"`
	Evaluation   *runstate.Evaluation `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	Error        string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// ModelResult is one model's part of a run.
type ModelResult struct {
	Model   string          `json:"model" yaml:"model"`
	Output  string          `json:"output" yaml:"output"`
	Final   bool            `json:"final" yaml:"final"`
	Metrics *stream.Metrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Meta carries run details the view state does not hold.
type Meta struct {
	// RunID identifies the run across exports; New mints one when empty.
	RunID     string
	Input     string
	APIURL    string
	Started   time.Time
	Completed time.Time
}

// New builds a report from the final state of a run. Models without a
// finalized output carry whatever partial text had arrived.
func New(state runstate.State, meta Meta) Report {
	completed := meta.Completed
	if completed.IsZero() {
		completed = time.Now()
	}
	runID := meta.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := Report{
		RunID:        runID,
		RunStarted:   meta.Started,
		RunCompleted: completed,
		APIURL:       meta.APIURL,
		Input:        meta.Input,
		Summary:      metrics.Summarize(state.AllMetrics()),
		Evaluation:   state.Evaluation,
		Error:        state.Err,
	}
	for _, model := range state.Models {
		res := ModelResult{Model: model}
		if out, ok := state.Output(model); ok {
			res.Output, res.Final = out, true
		} else if text, ok := state.Display(model); ok {
			res.Output = text
		}
		if m, ok := state.Metrics(model); ok {
			res.Metrics = &m
		}
		r.Models = append(r.Models, res)
	}
	return r
}

// Empty reports whether no model produced any text.
func (r Report) Empty() bool {
	for _, m := range r.Models {
		if m.Output != "" {
			return false
		}
	}
	return true
}

// JSON renders the report as indented JSON.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// YAML renders the report as YAML.
func (r Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// Markdown renders the report for reading.
func (r Report) Markdown() string {
	builder := &strings.Builder{}
	builder.WriteString("# Generation Run\n\n")
	builder.WriteString(fmt.Sprintf("- Run ID: %s\n", r.RunID))
	if !r.RunStarted.IsZero() {
		builder.WriteString(fmt.Sprintf("- Run started: %s\n", r.RunStarted.Format(time.RFC3339)))
	}
	builder.WriteString(fmt.Sprintf("- Run completed: %s\n", r.RunCompleted.Format(time.RFC3339)))
	if r.Error != "" {
		builder.WriteString(fmt.Sprintf("- Error: %s\n", r.Error))
	}
	builder.WriteString("\n## Input\n\n```text\n")
	builder.WriteString(r.Input)
	builder.WriteString("\n```\n\n")

	for _, m := range r.Models {
		builder.WriteString(fmt.Sprintf("## %s\n\n", m.Model))
		if mt := m.Metrics; mt != nil {
			builder.WriteString(fmt.Sprintf("- TTFT: %.0f ms\n", mt.TTFTMillis))
			builder.WriteString(fmt.Sprintf("- TPS: %.1f tok/s\n", mt.TokensPerSecond))
			builder.WriteString(fmt.Sprintf("- TPOT: %.1f ms\n", mt.TPOTMillis))
			builder.WriteString(fmt.Sprintf("- ITL: %.1f ms\n", mt.ITLAvgMillis))
			builder.WriteString(fmt.Sprintf("- Tokens: %d\n", mt.TotalTokens))
			builder.WriteString(fmt.Sprintf("- Total: %.0f ms\n", mt.TotalTimeMillis))
		}
		if !m.Final {
			builder.WriteString("- Incomplete\n")
		}
		builder.WriteString("\n```text\n")
		builder.WriteString(m.Output)
		builder.WriteString("\n```\n\n")
	}

	if s := r.Summary; s.Models > 0 {
		builder.WriteString("## Summary\n\n")
		writeLeader(builder, "Fastest TTFT", s.FastestTTFT, "ms")
		writeLeader(builder, "Highest TPS", s.HighestTPS, "tok/s")
		writeLeader(builder, "Lowest ITL", s.LowestITL, "ms")
		builder.WriteString("\n")
	}

	if r.Evaluation != nil {
		builder.WriteString(fmt.Sprintf("## Evaluation (%s)\n\n", r.Evaluation.EvaluatorModel))
		builder.WriteString(r.Evaluation.Text)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeLeader(b *strings.Builder, label string, l metrics.Leader, unit string) {
	if l.Model == "" {
		return
	}
	b.WriteString(fmt.Sprintf("- %s: %s (%.1f %s)\n", label, l.Model, l.Value, unit))
}

// WriteJSON writes the report as JSON to path.
func WriteJSON(path string, r Report) error {
	if r.Empty() {
		return ErrEmpty
	}
	data, err := r.JSON()
	if err != nil {
		return err
	}
	return util.WriteFile(path, data)
}

// WriteMarkdown writes the report as Markdown to path.
func WriteMarkdown(path string, r Report) error {
	if r.Empty() {
		return ErrEmpty
	}
	return util.WriteFile(path, []byte(r.Markdown()))
}

// WriteYAML writes the report as YAML to path.
func WriteYAML(path string, r Report) error {
	if r.Empty() {
		return ErrEmpty
	}
	data, err := r.YAML()
	if err != nil {
		return err
	}
	return util.WriteFile(path, data)
}

// Targets names the files a report is exported to. Empty paths are skipped.
type Targets struct {
	JSON     string
	Markdown string
	YAML     string
}

// Export writes r to every configured target and returns one notice per
// attempted write, e.g. "JSON → run.json" or "YAML export failed: ...".
func Export(r Report, t Targets) (notices []string, err error) {
	writers := []struct {
		label string
		path  string
		write func(string, Report) error
	}{
		{"JSON", t.JSON, WriteJSON},
		{"Markdown", t.Markdown, WriteMarkdown},
		{"YAML", t.YAML, WriteYAML},
	}
	var errs []error
	for _, w := range writers {
		path := strings.TrimSpace(w.path)
		if path == "" {
			continue
		}
		if werr := w.write(path, r); werr != nil {
			notices = append(notices, fmt.Sprintf("%s export failed: %v", w.label, werr))
			errs = append(errs, fmt.Errorf("%s export: %w", w.label, werr))
			continue
		}
		notices = append(notices, fmt.Sprintf("%s → %s", w.label, path))
	}
	return notices, errors.Join(errs...)
}

// Load reads a report written by WriteJSON or WriteYAML, chosen by extension.
func Load(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	var r Report
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return Report{}, fmt.Errorf("parse report %s: %w", path, err)
	}
	return r, nil
}

// Metrics returns the metrics reported by each model of the run.
func (r Report) Metrics() map[string]stream.Metrics {
	out := make(map[string]stream.Metrics, len(r.Models))
	for _, m := range r.Models {
		if m.Metrics != nil {
			out[m.Model] = *m.Metrics
		}
	}
	return out
}
