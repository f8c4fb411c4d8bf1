// cli/cli_multimodel_test.go
package cli

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/medgen/internal/report"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/session"
	"github.com/mwiater/medgen/internal/stream"
)

func update(t *testing.T, m *multimodelModel, msg tea.Msg) (*multimodelModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(*multimodelModel), cmd
}

// readyModel returns a sized model whose registry answer has arrived.
func readyModel(t *testing.T, cfg *Config, models ...string) (*testHarness, *multimodelModel) {
	t.Helper()
	h := newTestHarness(cfg, models...)
	m, _ := update(t, h.model, tea.WindowSizeMsg{Width: 150, Height: 40})
	m, _ = update(t, m, modelsReadyMsg{models: models})
	return h, m
}

// TestInitialMultimodelModel verifies the initial state of the generation UI.
func TestInitialMultimodelModel(t *testing.T) {
	h := newTestHarness(nil)
	m := h.model

	if m.cloudModel != "OpenAI GPT-4.1" {
		t.Errorf("expected default cloud model, got %q", m.cloudModel)
	}
	if !m.modelsLoading {
		t.Error("expected registry to be loading")
	}
	if view := m.View(); view != "Initializing..." {
		t.Errorf("expected 'Initializing...', got %q", view)
	}
	if cmd := m.Init(); cmd == nil {
		t.Error("expected Init to return a command")
	}
}

// TestApplyModelsInitialSelection checks that configured models win and the
// remaining pane falls back to the first registry entry.
func TestApplyModelsInitialSelection(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		registry   []string
		want       [localPanes]string
	}{
		{name: "first two", registry: []string{"a", "b", "c"}, want: [localPanes]string{"a", "b"}},
		{name: "configured", configured: []string{"c", "b"}, registry: []string{"a", "b", "c"}, want: [localPanes]string{"c", "b"}},
		{name: "configured missing", configured: []string{"z", "b"}, registry: []string{"a", "b"}, want: [localPanes]string{"b", "a"}},
		{name: "single", registry: []string{"a"}, want: [localPanes]string{"a", ""}},
		{name: "empty", want: [localPanes]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, m := readyModel(t, &Config{LocalModels: tt.configured}, tt.registry...)
			if m.selected != tt.want {
				t.Fatalf("selected = %v, want %v", m.selected, tt.want)
			}
			if m.modelsLoading {
				t.Fatal("expected registry loading to end")
			}
		})
	}
}

func TestRegistryFailureLeavesPanesEmpty(t *testing.T) {
	h := newTestHarness(nil)
	m, _ := update(t, h.model, tea.WindowSizeMsg{Width: 150, Height: 40})
	m, _ = update(t, m, modelsReadyMsg{err: errors.New("connection refused")})

	if m.modelsLoading || len(m.models) != 0 {
		t.Fatalf("unexpected registry state: loading=%v models=%v", m.modelsLoading, m.models)
	}
	if m.state.Err != "" {
		t.Fatalf("registry failure must not populate the error slot, got %q", m.state.Err)
	}
	if !strings.Contains(m.View(), "Select a model") {
		t.Fatal("expected empty local panes to ask for a model")
	}
}

// TestGenerateFlow drives one run from submission to evaluation.
func TestGenerateFlow(t *testing.T) {
	h, m := readyModel(t, &Config{}, "llama3:8b", "gemma2:9b")
	m.textArea.SetValue("  45yo, chest pain  ")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("expected spinner and tick commands")
	}
	if len(h.runner.starts) != 1 || !reflect.DeepEqual(h.runner.starts[0], []string{"llama3:8b", "gemma2:9b"}) {
		t.Fatalf("unexpected run start: %v", h.runner.starts)
	}
	if h.runner.inputs[0] != "  45yo, chest pain  " {
		t.Fatalf("expected input sent as typed, got %q", h.runner.inputs[0])
	}
	if !m.state.Loading || !m.state.IsStreaming("OpenAI GPT-4.1") {
		t.Fatal("expected loading run with the cloud model streaming")
	}

	gen := m.state.Generation
	for _, ev := range []stream.Event{
		stream.Partial{Model: "llama3:8b", Content: "Hel"},
		stream.Partial{Model: "llama3:8b", Content: "lo"},
	} {
		m, _ = update(t, m, session.EventMsg{Gen: gen, Event: ev})
	}
	view := m.View()
	if !strings.Contains(view, "Hello"+cursorGlyph) {
		t.Fatalf("expected streamed text with cursor, got:\n%s", view)
	}

	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Complete{
		Model: "llama3:8b", Content: "Hello", Metrics: &stream.Metrics{TTFTMillis: 12, TokensPerSecond: 40.5, TPOTMillis: 24.7, ITLAvgMillis: 20},
	}})
	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Done{}})
	if m.state.Loading || m.state.AnyStreaming() {
		t.Fatal("expected run to end on done")
	}
	if len(h.runner.evaluations) != 1 || h.runner.evaluations[0]["llama3:8b"] != "Hello" {
		t.Fatalf("expected one evaluation with finalized outputs, got %v", h.runner.evaluations)
	}
	if h.runner.evalInputs[0] != "  45yo, chest pain  " {
		t.Fatalf("expected evaluation of the input as typed, got %q", h.runner.evalInputs[0])
	}

	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Done{}})
	if len(h.runner.evaluations) != 1 {
		t.Fatal("expected evaluation to be requested once")
	}

	m, _ = update(t, m, session.EvaluationMsg{Gen: gen, Result: runstate.Evaluation{Text: "llama3 is concise", EvaluatorModel: "gpt-4.1"}})
	view = m.View()
	for _, want := range []string{"TTFT 12ms", "TPS 40.5 tok/s", "Evaluation (gpt-4.1)", "llama3 is concise"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if strings.Contains(view, cursorGlyph) {
		t.Fatal("expected no cursor after done")
	}
}

func TestGenerateWithoutOutputsSkipsEvaluation(t *testing.T) {
	h, m := readyModel(t, &Config{}, "m1")
	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m, _ = update(t, m, session.EventMsg{Gen: m.state.Generation, Event: stream.Done{}})

	if len(h.runner.evaluations) != 0 {
		t.Fatal("expected no evaluation without finalized outputs")
	}
}

func TestEvaluationDisabled(t *testing.T) {
	off := false
	h, m := readyModel(t, &Config{Evaluate: &off}, "m1")
	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	gen := m.state.Generation
	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Complete{Model: "m1", Content: "x"}})
	_, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Done{}})

	if len(h.runner.evaluations) != 0 {
		t.Fatal("expected evaluation to stay off")
	}
}

func TestGenerateRequiresInput(t *testing.T) {
	h, m := readyModel(t, &Config{}, "m1")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})

	if len(h.runner.starts) != 0 {
		t.Fatal("expected no run for empty input")
	}
	if m.state.Err != "enter input text first" {
		t.Fatalf("unexpected error: %q", m.state.Err)
	}
}

// TestStaleRunIsInvisible cancels a run, starts another and feeds messages
// from the first; none of them may show up.
func TestStaleRunIsInvisible(t *testing.T) {
	h, m := readyModel(t, &Config{}, "m1")
	m.textArea.SetValue("first")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	first := m.state.Generation

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if h.runner.cancels != 1 || m.state.Loading {
		t.Fatalf("expected cancelled run, cancels=%d loading=%v", h.runner.cancels, m.state.Loading)
	}
	if m.state.Err != "" {
		t.Fatal("cancellation must not populate the error slot")
	}

	m.textArea.SetValue("second")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	second := m.state.Generation
	if second == first {
		t.Fatal("expected a new generation")
	}

	m, _ = update(t, m, session.EventMsg{Gen: first, Event: stream.Complete{Model: "m1", Content: "stale", Metrics: &stream.Metrics{TTFTMillis: 1}}})
	m, _ = update(t, m, session.EventMsg{Gen: first, Event: stream.Error{Model: "m1", Content: "stale failure"}})
	m, _ = update(t, m, session.ClosedMsg{Gen: first, Err: errors.New("stale transport")})
	m, _ = update(t, m, session.EvaluationMsg{Gen: first, Result: runstate.Evaluation{Text: "stale"}})

	if text, ok := m.state.Display("m1"); ok || text != runstate.Placeholder {
		t.Fatalf("stale output visible: %q", text)
	}
	if _, ok := m.state.Metrics("m1"); ok || m.state.Err != "" || m.state.Evaluation != nil {
		t.Fatalf("stale run mutated state: %+v", m.state)
	}
	if !m.state.Loading {
		t.Fatal("current run must still be loading")
	}
}

func TestTransportFailure(t *testing.T) {
	_, m := readyModel(t, &Config{}, "m1")
	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m, _ = update(t, m, session.ClosedMsg{Gen: m.state.Generation, Err: errors.New("HTTP 502 Bad Gateway")})

	if m.state.Loading || m.state.Err != "HTTP 502 Bad Gateway" {
		t.Fatalf("unexpected state after failure: loading=%v err=%q", m.state.Loading, m.state.Err)
	}
	if !strings.Contains(m.View(), "Error: HTTP 502 Bad Gateway") {
		t.Fatal("expected error line in view")
	}
}

func TestModelDialog(t *testing.T) {
	_, m := readyModel(t, &Config{}, "a", "b", "c")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlK})
	if m.dialog != dialogModel || m.dialogPane != 1 {
		t.Fatalf("expected model dialog for pane 2, got dialog=%v pane=%d", m.dialog, m.dialogPane)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.dialog != dialogNone || m.selected[1] != "c" {
		t.Fatalf("expected pane 2 set to c, got dialog=%v selected=%v", m.dialog, m.selected)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.dialog != dialogNone || m.selected[0] != "a" {
		t.Fatalf("expected esc to keep pane 1, got %v", m.selected)
	}

	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	if m.dialog != dialogNone {
		t.Fatal("model selection must be disabled while loading")
	}
}

func TestUploadResult(t *testing.T) {
	_, m := readyModel(t, &Config{}, "m1")
	m.textArea.SetValue("original")

	m, _ = update(t, m, uploadDoneMsg{path: "a.txt", err: errUploadFailed})
	if m.state.Err != "file upload failed" || m.textArea.Value() != "original" {
		t.Fatalf("failed upload changed input or missed error: err=%q input=%q", m.state.Err, m.textArea.Value())
	}

	m, _ = update(t, m, uploadDoneMsg{path: "a.txt", text: "from file"})
	if m.state.Err != "" || m.textArea.Value() != "from file" {
		t.Fatalf("expected input replaced and error cleared: err=%q input=%q", m.state.Err, m.textArea.Value())
	}
}

// TestPastedPathUploads simulates a terminal file drop, which arrives as a
// bracketed paste of the file's path.
func TestPastedPathUploads(t *testing.T) {
	h, m := readyModel(t, &Config{}, "m1")
	path := filepath.Join(t.TempDir(), "case notes.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'" + path + "'"), Paste: true})
	if cmd == nil || !m.uploading {
		t.Fatal("expected an upload command")
	}
	msg := cmd()
	done, ok := msg.(uploadDoneMsg)
	if !ok || done.path != path || len(h.uploader.paths) != 1 {
		t.Fatalf("unexpected upload result: %#v paths=%v", msg, h.uploader.paths)
	}
	m, _ = update(t, m, done)
	if m.textArea.Value() != "uploaded text" || m.uploading {
		t.Fatalf("expected uploaded text in input, got %q", m.textArea.Value())
	}
}

func TestPastedProseIsTyped(t *testing.T) {
	h, m := readyModel(t, &Config{}, "m1")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("fever for three days"), Paste: true})

	if len(h.uploader.paths) != 0 || m.uploading {
		t.Fatal("prose must not trigger an upload")
	}
	if m.textArea.Value() != "fever for three days" {
		t.Fatalf("expected pasted text in input, got %q", m.textArea.Value())
	}
}

func TestExportNow(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{ExportPath: filepath.Join(dir, "run.json"), ExportMarkdownPath: filepath.Join(dir, "run.md")}
	_, m := readyModel(t, cfg, "m1")
	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	gen := m.state.Generation
	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Complete{Model: "m1", Content: "answer"}})
	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Done{}})

	for _, path := range []string{cfg.ExportPath, cfg.ExportMarkdownPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected auto export %s: %v", path, err)
		}
	}

	auto, err := report.Load(cfg.ExportPath)
	if err != nil {
		t.Fatalf("load auto export: %v", err)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	if !strings.Contains(m.notice, "JSON → "+cfg.ExportPath) {
		t.Fatalf("unexpected notice: %q", m.notice)
	}
	manual, err := report.Load(cfg.ExportPath)
	if err != nil {
		t.Fatalf("load manual export: %v", err)
	}
	if auto.RunID == "" || manual.RunID != auto.RunID {
		t.Fatalf("expected one run ID per run, got %q and %q", auto.RunID, manual.RunID)
	}

	m.textArea.SetValue("second note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	gen = m.state.Generation
	m, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Complete{Model: "m1", Content: "again"}})
	_, _ = update(t, m, session.EventMsg{Gen: gen, Event: stream.Done{}})
	next, err := report.Load(cfg.ExportPath)
	if err != nil {
		t.Fatalf("load second export: %v", err)
	}
	if next.RunID == auto.RunID {
		t.Fatal("expected a new run ID for a new run")
	}
}

func TestQuitCancelsRun(t *testing.T) {
	h, m := readyModel(t, &Config{}, "m1")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if h.runner.cancels != 1 {
		t.Fatal("expected quit to cancel the active run")
	}
}
