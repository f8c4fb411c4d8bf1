// cli/cli_view.go
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/util"
)

// cursorGlyph follows the text of a model that is still streaming.
const cursorGlyph = "▊"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	modelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	cloudBadge   = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	localBadge   = lipgloss.NewStyle().Background(lipgloss.Color("2")).Foreground(lipgloss.Color("0")).Padding(0, 1)
	metricsStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("238"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

// pane describes one column of the output area.
type pane struct {
	model string
	local bool
}

// View renders the UI from the current state.
func (m *multimodelModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	switch m.dialog {
	case dialogModel:
		return lipgloss.NewStyle().Margin(1, 2).Render(m.modelList.View())
	case dialogFile:
		var b strings.Builder
		b.WriteString(titleStyle.Render("Select a file to load") + "\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("Allowed: %s  esc: Cancel", strings.Join(m.uploader.Extensions(), " "))) + "\n\n")
		b.WriteString(m.filePicker.View())
		return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
	}

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("MedGen - Multi-Model Generation") + "\n")
	builder.WriteString(helpStyle.Render("ctrl+r: Generate  ctrl+o: Load file  ctrl+l/ctrl+k: Local models  ctrl+e: Export  esc: Cancel  ctrl+c: Quit") + "\n\n")
	builder.WriteString(m.textArea.View() + "\n")
	builder.WriteString(m.statusLine() + "\n")
	if m.state.Err != "" {
		builder.WriteString(errorStyle.Render("Error: "+m.state.Err) + "\n")
	}
	builder.WriteString("\n")
	builder.WriteString(m.panesView())

	if m.state.Evaluation != nil {
		builder.WriteString("\n\n")
		header := fmt.Sprintf("Evaluation (%s)", m.state.Evaluation.EvaluatorModel)
		builder.WriteString(titleStyle.Render(header) + helpStyle.Render("  pgup/pgdown: Scroll") + "\n")
		builder.WriteString(m.viewport.View())
	}

	return lipgloss.NewStyle().Margin(0, 1).Render(builder.String())
}

// statusLine shows run progress or the latest notice.
func (m *multimodelModel) statusLine() string {
	switch {
	case m.state.Loading:
		return fmt.Sprintf("%s Generating...", m.spinner.View())
	case m.uploading:
		return fmt.Sprintf("%s %s", m.spinner.View(), m.notice)
	case m.notice != "":
		return noticeStyle.Render(m.notice)
	default:
		return ""
	}
}

func (m *multimodelModel) panes() []pane {
	out := []pane{{model: m.cloudModel}}
	for _, name := range m.selected {
		out = append(out, pane{model: name, local: true})
	}
	return out
}

// panesView renders the cloud pane and the local panes side by side.
func (m *multimodelModel) panesView() string {
	panes := m.panes()
	colWidth := max((m.width-2)/len(panes)-4, 10)
	bodyHeight := max(m.height/2-6, 4)

	cells := make([]string, 0, len(panes))
	for _, p := range panes {
		cells = append(cells, m.paneView(p, colWidth, bodyHeight))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *multimodelModel) paneView(p pane, width, bodyHeight int) string {
	name := p.model
	if name == "" {
		name = "Local model"
	}
	badge := cloudBadge.Render("Cloud")
	if p.local {
		badge = localBadge.Render("Local")
	}
	header := modelStyle.Render(util.TruncateRunes(name, max(width-8, 4))) + " " + badge

	body := m.paneBody(p, width, bodyHeight)
	metrics := metricsStyle.Render(m.metricsRow(p.model))

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Width(width).Height(bodyHeight).Render(body),
		metrics,
	)
	return paneStyle.Width(width + 2).Render(content)
}

// paneBody derives the body text of a pane from the state.
func (m *multimodelModel) paneBody(p pane, width, height int) string {
	if p.local && m.modelsLoading {
		return m.spinner.View() + " Loading list..."
	}
	if p.model == "" {
		return faintStyle.Render("Select a model")
	}

	text, ok := m.state.Display(p.model)
	if !ok {
		if m.state.Loading {
			return m.spinner.View() + " Generating..."
		}
		return faintStyle.Render(runstate.Placeholder)
	}

	text = util.WrapToWidth(text, width)
	if m.state.ShowCursor(p.model) {
		if m.cursorOn {
			text += cursorGlyph
		} else {
			text += " "
		}
	}
	return util.TailLines(text, height)
}

// metricsRow formats the performance figures of a finished model.
func (m *multimodelModel) metricsRow(model string) string {
	mt, ok := m.state.Metrics(model)
	if model == "" || !ok {
		return "TTFT -  TPS -  TPOT -  ITL -"
	}
	return fmt.Sprintf("TTFT %.0fms  TPS %.1f tok/s  TPOT %.1fms  ITL %.1fms",
		mt.TTFTMillis, mt.TokensPerSecond, mt.TPOTMillis, mt.ITLAvgMillis)
}
