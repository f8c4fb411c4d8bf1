// cli/cli_multimodel.go
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/mwiater/medgen/internal/logging"
	"github.com/mwiater/medgen/internal/report"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/session"
	"github.com/mwiater/medgen/internal/upload"
)

// localPanes is the number of selectable local model panes.
const localPanes = 2

// inputPlaceholder doubles as the drop affordance; a terminal has no drag-over state.
const inputPlaceholder = "Enter the input text here...\n(drop a .txt/.md/.csv file onto the terminal or press ctrl+o to load one)"

// multimodelDialog identifies the overlay currently open, if any.
type multimodelDialog int

const (
	dialogNone multimodelDialog = iota
	// dialogModel lets the user pick the model of one local pane.
	dialogModel
	// dialogFile lets the user pick a file to upload.
	dialogFile
)

// multimodelModel is the Bubble Tea model of the three-pane generation UI.
type multimodelModel struct {
	// ctx bounds registry and upload requests.
	ctx    context.Context
	config *Config

	registry Registry
	uploader Uploader
	runner   Runner

	// state is the view state of the current run.
	state runstate.State
	// cloudModel names the fixed first pane.
	cloudModel string

	// models holds the registry answer; modelsLoading is true until it arrives.
	models        []string
	modelsLoading bool
	// selected holds the model chosen for each local pane; empty means none.
	selected [localPanes]string

	// runInput is the text submitted for the current run.
	runInput    string
	runID       string
	runStarted  time.Time
	exportedGen uint64

	dialog     multimodelDialog
	dialogPane int
	uploading  bool
	notice     string
	cursorOn   bool

	textArea   textarea.Model
	spinner    spinner.Model
	viewport   viewport.Model
	modelList  list.Model
	filePicker filepicker.Model

	width, height int
}

// initialMultimodelModel creates the UI model with its widgets configured.
func initialMultimodelModel(ctx context.Context, cfg *Config, registry Registry, uploader Uploader, runner Runner) *multimodelModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.Focus()
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(4)

	fp := filepicker.New()
	fp.AllowedTypes = uploader.Extensions()
	fp.AutoHeight = true
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}

	modelList := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	return &multimodelModel{
		ctx:           ctx,
		config:        cfg,
		registry:      registry,
		uploader:      uploader,
		runner:        runner,
		cloudModel:    cfg.CloudModelName(),
		modelsLoading: true,
		cursorOn:      true,
		textArea:      ta,
		spinner:       s,
		viewport:      viewport.New(100, 8),
		modelList:     modelList,
		filePicker:    fp,
	}
}

// Init fetches the model registry and starts the spinner.
func (m *multimodelModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, fetchModelsCmd(m.ctx, m.registry))
}

// Update handles all message updates for the generation UI.
func (m *multimodelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.runner.Cancel()
			return m, tea.Quit
		}
		if m.dialog != dialogNone {
			return m, m.updateDialog(msg)
		}
		return m, m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 4)
		m.modelList.SetSize(msg.Width-4, msg.Height-4)
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height/4, 4)
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)
		return m, cmd

	case modelsReadyMsg:
		m.applyModels(msg)
		return m, nil

	case uploadDoneMsg:
		m.uploading = false
		if msg.err != nil {
			m.state = m.state.WithError(msg.err.Error())
			return m, nil
		}
		m.textArea.SetValue(msg.text)
		m.state = m.state.ClearError()
		m.notice = fmt.Sprintf("Loaded %s", msg.path)
		return m, nil

	case session.EventMsg:
		var eff runstate.Effect
		m.state, eff = m.state.Apply(msg.Gen, msg.Event)
		if eff == runstate.EffectEvaluate && m.config.EvaluationEnabled() {
			m.runner.Evaluate(msg.Gen, m.runInput, m.state.Finalized())
		}
		if !m.state.Loading {
			m.finishRun(msg.Gen)
		}
		return m, nil

	case session.ClosedMsg:
		if msg.Err != nil {
			m.state = m.state.Failed(msg.Gen, msg.Err)
		} else {
			m.state = m.state.Closed(msg.Gen)
		}
		m.finishRun(msg.Gen)
		return m, nil

	case session.EvaluationMsg:
		m.state = m.state.WithEvaluation(msg.Gen, msg.Result)
		if m.state.Evaluation != nil {
			m.viewport.SetContent(m.state.Evaluation.Text)
			m.viewport.GotoTop()
			m.autoExport()
		}
		return m, nil

	case tickMsg:
		if m.state.AnyStreaming() {
			m.cursorOn = !m.cursorOn
			return m, tickCmd()
		}
		m.cursorOn = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.dialog == dialogFile {
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.textArea, cmd = m.textArea.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// updateKeys handles keys while no dialog is open.
func (m *multimodelModel) updateKeys(msg tea.KeyMsg) tea.Cmd {
	if msg.Paste {
		if path, ok := upload.PathFromPaste(string(msg.Runes)); ok {
			return m.startUpload(path)
		}
	}

	switch msg.String() {
	case "ctrl+r":
		return m.generate()
	case "ctrl+o":
		return m.openFilePicker()
	case "ctrl+l":
		m.openModelList(0)
		return nil
	case "ctrl+k":
		m.openModelList(1)
		return nil
	case "esc":
		if m.state.Loading {
			m.runner.Cancel()
			m.state = m.state.Closed(m.state.Generation)
			m.notice = "Generation cancelled"
			logging.LogEvent("ui: run %d cancelled by user", m.state.Generation)
		}
		return nil
	case "ctrl+e":
		m.exportNow()
		return nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.textArea, cmd = m.textArea.Update(msg)
	return cmd
}

// updateDialog routes keys to the open dialog.
func (m *multimodelModel) updateDialog(msg tea.KeyMsg) tea.Cmd {
	switch m.dialog {
	case dialogModel:
		if m.modelList.FilterState() != list.Filtering {
			switch msg.String() {
			case "esc":
				m.dialog = dialogNone
				return nil
			case "enter":
				if selected, ok := m.modelList.SelectedItem().(item); ok {
					m.selected[m.dialogPane] = selected.title
					logging.LogEvent("ui: pane %d model set to %s", m.dialogPane+1, selected.title)
				}
				m.dialog = dialogNone
				return nil
			}
		}
		var cmd tea.Cmd
		m.modelList, cmd = m.modelList.Update(msg)
		return cmd

	case dialogFile:
		if msg.String() == "esc" {
			m.dialog = dialogNone
			return nil
		}
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)
		if ok, path := m.filePicker.DidSelectFile(msg); ok {
			m.dialog = dialogNone
			return m.startUpload(path)
		}
		if ok, path := m.filePicker.DidSelectDisabledFile(msg); ok {
			m.state = m.state.WithError(fmt.Sprintf("unsupported file type: %s", path))
		}
		return cmd
	}
	return nil
}

// applyModels stores the registry answer and picks the initial local models:
// the configured ones when offered, else the first two offered.
func (m *multimodelModel) applyModels(msg modelsReadyMsg) {
	m.modelsLoading = false
	if msg.err != nil {
		logging.LogEvent("ui: model registry failed: %v", msg.err)
		return
	}
	m.models = msg.models

	items := make([]list.Item, len(m.models))
	for i, name := range m.models {
		items[i] = item{title: name, desc: "Local model"}
	}
	m.modelList.SetItems(items)

	next := 0
	for _, want := range m.config.LocalModels {
		if next < localPanes && slices.Contains(m.models, want) {
			m.selected[next] = want
			next++
		}
	}
	for _, name := range m.models {
		if next >= localPanes {
			break
		}
		if !slices.Contains(m.selected[:next], name) {
			m.selected[next] = name
			next++
		}
	}
}

// openModelList opens the model dialog for a local pane.
func (m *multimodelModel) openModelList(pane int) {
	if m.modelsLoading || m.state.Loading || len(m.models) == 0 {
		return
	}
	m.dialog = dialogModel
	m.dialogPane = pane
	m.modelList.Title = fmt.Sprintf("Select model for local pane %d", pane+1)
	if m.modelList.Paginator.PerPage == 0 {
		return
	}
	for i, name := range m.models {
		if name == m.selected[pane] {
			m.modelList.Select(i)
			break
		}
	}
}

// openFilePicker opens the file dialog and reads the current directory.
func (m *multimodelModel) openFilePicker() tea.Cmd {
	if m.state.Loading || m.uploading {
		return nil
	}
	m.dialog = dialogFile
	return m.filePicker.Init()
}

// startUpload submits path unless a run or another upload is in progress.
func (m *multimodelModel) startUpload(path string) tea.Cmd {
	if m.state.Loading || m.uploading {
		return nil
	}
	m.uploading = true
	m.notice = fmt.Sprintf("Uploading %s...", path)
	return uploadCmd(m.ctx, m.uploader, path)
}

// generate starts a new run with the current input and selected models.
func (m *multimodelModel) generate() tea.Cmd {
	if m.state.Loading {
		return nil
	}
	input := m.textArea.Value()
	if strings.TrimSpace(input) == "" {
		m.state = m.state.WithError("enter input text first")
		return nil
	}

	var locals []string
	for _, name := range m.selected {
		if name != "" {
			locals = append(locals, name)
		}
	}

	gen := m.runner.Start(input, locals)
	m.state = runstate.New(gen, append([]string{m.cloudModel}, locals...))
	m.runInput = input
	m.runID = uuid.NewString()
	m.runStarted = time.Now()
	m.notice = ""
	m.cursorOn = true
	m.viewport.SetContent("")
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// finishRun exports the run once its stream has ended.
func (m *multimodelModel) finishRun(gen uint64) {
	if gen != m.state.Generation || m.state.Loading || gen == m.exportedGen {
		return
	}
	m.exportedGen = gen
	m.autoExport()
}

func (m *multimodelModel) buildReport() report.Report {
	return report.New(m.state, report.Meta{
		RunID:     m.runID,
		Input:     m.runInput,
		APIURL:    m.config.BaseURL(),
		Started:   m.runStarted,
		Completed: time.Now(),
	})
}

func (m *multimodelModel) exportTargets() report.Targets {
	return report.Targets{
		JSON:     m.config.ExportPath,
		Markdown: m.config.ExportMarkdownPath,
		YAML:     m.config.ExportYAMLPath,
	}
}

// autoExport writes the configured exports silently unless one fails.
func (m *multimodelModel) autoExport() {
	targets := m.exportTargets()
	if targets == (report.Targets{}) {
		return
	}
	notices, err := report.Export(m.buildReport(), targets)
	if err != nil {
		m.notice = strings.Join(notices, " | ")
	}
}

// exportNow writes the run on request, falling back to medgen-<time>.json.
func (m *multimodelModel) exportNow() {
	targets := m.exportTargets()
	if targets == (report.Targets{}) {
		targets.JSON = fmt.Sprintf("medgen-%s.json", time.Now().Format("20060102-150405"))
	}
	notices, err := report.Export(m.buildReport(), targets)
	if err != nil {
		logging.LogEvent("ui: export failed: %v", err)
	}
	m.notice = strings.Join(notices, " | ")
}
