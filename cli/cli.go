// cli/cli.go
// Package cli provides the terminal user interface for the MedGen application.
package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/medgen/internal/api"
	"github.com/mwiater/medgen/internal/appconfig"
	"github.com/mwiater/medgen/internal/logging"
	"github.com/mwiater/medgen/internal/session"
	"github.com/mwiater/medgen/internal/upload"
)

// Config represents the shared application configuration for the CLI.
type Config = appconfig.Config

// Registry lists the models offered for the local panes.
type Registry interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Uploader turns a file into input text.
type Uploader interface {
	Submit(ctx context.Context, path string) (string, error)
	Extensions() []string
}

// Runner starts, evaluates and cancels generation runs.
type Runner interface {
	Start(input string, models []string) uint64
	Evaluate(gen uint64, input string, outputs map[string]string)
	Cancel()
}

// item is a model entry in the selection list.
type item struct {
	title string
	desc  string
}

// Title returns the title of the list item.
func (i item) Title() string { return i.title }

// Description returns the description of the list item.
func (i item) Description() string { return i.desc }

// FilterValue returns the value used to filter the list.
func (i item) FilterValue() string { return i.title }

// modelsReadyMsg carries the registry answer.
type modelsReadyMsg struct {
	models []string
	err    error
}

// uploadDoneMsg carries the result of a file upload.
type uploadDoneMsg struct {
	path string
	text string
	err  error
}

// tickMsg drives the streaming cursor blink.
type tickMsg time.Time

// tickCmd creates a Bubble Tea command that sends a tickMsg at a regular interval.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchModelsCmd queries the registry once.
func fetchModelsCmd(ctx context.Context, registry Registry) tea.Cmd {
	return func() tea.Msg {
		models, err := registry.ListModels(ctx)
		return modelsReadyMsg{models: models, err: err}
	}
}

// uploadCmd submits path through the uploader.
func uploadCmd(ctx context.Context, uploader Uploader, path string) tea.Cmd {
	return func() tea.Msg {
		text, err := uploader.Submit(ctx, path)
		return uploadDoneMsg{path: path, text: text, err: err}
	}
}

// StartGUI runs the three-pane generation UI and blocks until it exits.
func StartGUI(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is not loaded")
	}

	client := api.New(*cfg)
	sess := session.New(client, nil)
	defer sess.Cancel()

	m := initialMultimodelModel(ctx, cfg, client, upload.New(client, cfg.AllowedExtensions()), sess)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	sess.SetSink(func(msg session.Msg) { p.Send(msg) })

	logging.LogEvent("ui: starting against %s", client.BaseURL())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
