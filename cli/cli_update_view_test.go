// cli/cli_update_view_test.go
package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/session"
	"github.com/mwiater/medgen/internal/stream"
)

// TestPaneBodyStates covers every body a pane can show, in the order the
// states occur during start-up and a run.
func TestPaneBodyStates(t *testing.T) {
	h := newTestHarness(&Config{CloudModel: "Cloud X"})
	m, _ := update(t, h.model, tea.WindowSizeMsg{Width: 150, Height: 40})

	cloud := pane{model: "Cloud X"}
	local := pane{model: "", local: true}

	if body := m.paneBody(local, 40, 10); !strings.Contains(body, "Loading list...") {
		t.Fatalf("expected loading list, got %q", body)
	}
	if body := m.paneBody(cloud, 40, 10); body != runstate.Placeholder {
		t.Fatalf("expected placeholder for idle cloud pane, got %q", body)
	}

	m, _ = update(t, m, modelsReadyMsg{models: []string{"m1"}})
	if body := m.paneBody(pane{local: true}, 40, 10); body != "Select a model" {
		t.Fatalf("expected model prompt, got %q", body)
	}

	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if body := m.paneBody(cloud, 40, 10); !strings.Contains(body, "Generating...") {
		t.Fatalf("expected generating indicator, got %q", body)
	}

	m, _ = update(t, m, session.EventMsg{Gen: m.state.Generation, Event: stream.Partial{Model: "Cloud X", Content: "partial"}})
	m.cursorOn = true
	if body := m.paneBody(cloud, 40, 10); body != "partial"+cursorGlyph {
		t.Fatalf("expected partial text with cursor, got %q", body)
	}
	m.cursorOn = false
	if body := m.paneBody(cloud, 40, 10); body != "partial " {
		t.Fatalf("expected blinked-off cursor, got %q", body)
	}

	m, _ = update(t, m, session.EventMsg{Gen: m.state.Generation, Event: stream.Done{}})
	if body := m.paneBody(pane{model: "m1", local: true}, 40, 10); body != runstate.Placeholder {
		t.Fatalf("expected placeholder for a model without output, got %q", body)
	}
}

func TestPaneBodyKeepsTail(t *testing.T) {
	h := newTestHarness(nil)
	m, _ := update(t, h.model, tea.WindowSizeMsg{Width: 150, Height: 40})
	m.textArea.SetValue("note")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m, _ = update(t, m, session.EventMsg{Gen: m.state.Generation, Event: stream.Complete{
		Model: m.cloudModel, Content: "one\ntwo\nthree\nfour",
	}})

	if body := m.paneBody(pane{model: m.cloudModel}, 40, 2); body != "three\nfour" {
		t.Fatalf("expected last two lines, got %q", body)
	}
}

func TestMetricsRow(t *testing.T) {
	h := newTestHarness(nil)
	m := h.model
	if row := m.metricsRow("m1"); row != "TTFT -  TPS -  TPOT -  ITL -" {
		t.Fatalf("unexpected empty metrics row %q", row)
	}

	m.state = runstate.New(1, []string{"m1"})
	m.state, _ = m.state.Apply(1, stream.Complete{Model: "m1", Content: "x", Metrics: &stream.Metrics{
		TTFTMillis: 123.4, TokensPerSecond: 55.55, TPOTMillis: 18.04, ITLAvgMillis: 17.96,
	}})
	want := "TTFT 123ms  TPS 55.5 tok/s  TPOT 18.0ms  ITL 18.0ms"
	if row := m.metricsRow("m1"); row != want && row != "TTFT 123ms  TPS 55.6 tok/s  TPOT 18.0ms  ITL 18.0ms" {
		t.Fatalf("unexpected metrics row %q", row)
	}
}

func TestFileDialogView(t *testing.T) {
	h := newTestHarness(nil)
	m, _ := update(t, h.model, tea.WindowSizeMsg{Width: 120, Height: 30})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if m.dialog != dialogFile || cmd == nil {
		t.Fatalf("expected file dialog with a directory read, got dialog=%v", m.dialog)
	}
	view := m.View()
	if !strings.Contains(view, "Select a file to load") || !strings.Contains(view, ".txt .md .csv") {
		t.Fatalf("unexpected file dialog view:\n%s", view)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.dialog != dialogNone {
		t.Fatal("expected esc to close the file dialog")
	}
}

func TestMainViewLayout(t *testing.T) {
	_, m := readyModel(t, &Config{}, "llama3:8b", "gemma2:9b")
	view := m.View()
	for _, want := range []string{"MedGen", "OpenAI GPT-4.1", "Cloud", "llama3:8b", "gemma2:9b", "Local", "ctrl+r: Generate"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Evaluation (") {
		t.Fatal("evaluation section must be hidden before a result arrives")
	}
}
