// internal/cli/generate.go
package medgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mwiater/medgen/internal/api"
	"github.com/mwiater/medgen/internal/appconfig"
	"github.com/mwiater/medgen/internal/logging"
	"github.com/mwiater/medgen/internal/report"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/session"
	"github.com/mwiater/medgen/internal/upload"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// maxLocalModels is the number of local panes a run fills.
const maxLocalModels = 2

// modelLister is the registry call a run falls back on.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type generateOptions struct {
	input      string
	file       string
	models     []string
	noEvaluate bool
}

var genOpts generateOptions

// generateCmd implements 'generate', a single run without the UI.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one generation without the UI",
	Long: `Run one generation and print every model's output with its metrics,
followed by the evaluation. Input comes from --input, from --file (uploaded
to the backend for conversion) or from stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *getConfig()
		if genOpts.noEvaluate {
			disabled := false
			cfg.Evaluate = &disabled
		}
		ctx := commandContext(cmd)
		client := api.New(cfg)

		input, err := resolveInput(ctx, cmd.InOrStdin(), client, cfg, genOpts)
		if err != nil {
			return err
		}
		models, err := resolveModels(ctx, client, cfg, genOpts.models)
		if err != nil {
			return err
		}

		r, err := runGenerate(ctx, client, cfg, input, models)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cfg.JSONMode {
			data, err := r.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
		} else {
			printReport(out, r)
		}

		if !r.Empty() {
			notices, err := report.Export(r, report.Targets{
				JSON:     cfg.ExportPath,
				Markdown: cfg.ExportMarkdownPath,
				YAML:     cfg.ExportYAMLPath,
			})
			for _, n := range notices {
				fmt.Fprintln(cmd.ErrOrStderr(), n)
			}
			if err != nil {
				return err
			}
		}
		if r.Error != "" {
			return errors.New(r.Error)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&genOpts.input, "input", "i", "", "input text")
	generateCmd.Flags().StringVarP(&genOpts.file, "file", "f", "", "load the input from a .txt, .md or .csv file")
	generateCmd.Flags().StringSliceVarP(&genOpts.models, "model", "m", nil, "local model to run (repeatable, at most two)")
	generateCmd.Flags().BoolVar(&genOpts.noEvaluate, "no-evaluate", false, "skip the evaluation request")
	generateCmd.MarkFlagsMutuallyExclusive("input", "file")
	rootCmd.AddCommand(generateCmd)
}

// resolveInput returns the run input from the flag, the uploaded file or stdin.
func resolveInput(ctx context.Context, stdin io.Reader, uploader upload.Uploader, cfg appconfig.Config, opts generateOptions) (string, error) {
	var input string
	switch {
	case opts.input != "":
		input = opts.input
	case opts.file != "":
		text, err := upload.New(uploader, cfg.AllowedExtensions()).Submit(ctx, opts.file)
		if err != nil {
			return "", err
		}
		input = text
	default:
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return "", errors.New("no input: use --input, --file or pipe text on stdin")
			}
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		input = string(data)
	}

	if strings.TrimSpace(input) == "" {
		return "", errors.New("input text is empty")
	}
	return input, nil
}

// resolveModels picks the local models of a run: the flags, else the
// configured models, else the first two offered by the registry.
func resolveModels(ctx context.Context, registry modelLister, cfg appconfig.Config, requested []string) ([]string, error) {
	models := requested
	if len(models) == 0 {
		models = cfg.LocalModels
	}
	if len(models) == 0 {
		offered, err := registry.ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		models = offered
	}
	if len(models) > maxLocalModels {
		if len(requested) > maxLocalModels {
			return nil, fmt.Errorf("at most %d local models can run at once, got %d", maxLocalModels, len(requested))
		}
		models = models[:maxLocalModels]
	}
	return models, nil
}

// runGenerate streams one run to completion and returns its report. The
// report carries the run's error, if any; the returned error is reserved for
// an interrupted run.
func runGenerate(ctx context.Context, backend session.Backend, cfg appconfig.Config, input string, locals []string) (report.Report, error) {
	msgs := make(chan session.Msg, 64)
	sess := session.New(backend, func(msg session.Msg) {
		select {
		case msgs <- msg:
		case <-ctx.Done():
		}
	})
	defer sess.Cancel()

	runID := uuid.NewString()
	started := time.Now()
	gen := sess.Start(input, locals)
	state := runstate.New(gen, append([]string{cfg.CloudModelName()}, locals...))

	var idle chan struct{}
	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			logging.LogEvent("generate: interrupted")
			return report.Report{}, ctx.Err()

		case msg := <-msgs:
			state = applyMsg(state, sess, cfg, input, msg)
			if _, ok := msg.(session.ClosedMsg); ok && idle == nil {
				idle = make(chan struct{})
				go func() {
					sess.Wait()
					close(idle)
				}()
			}

		case <-idle:
			for drained := false; !drained; {
				select {
				case msg := <-msgs:
					state = applyMsg(state, sess, cfg, input, msg)
				default:
					drained = true
				}
			}
			return report.New(state, report.Meta{
				RunID:     runID,
				Input:     input,
				APIURL:    cfg.BaseURL(),
				Started:   started,
				Completed: time.Now(),
			}), nil
		}
	}
}

// applyMsg reduces one session message into state and requests the
// evaluation when the run asks for it.
func applyMsg(state runstate.State, sess *session.Session, cfg appconfig.Config, input string, msg session.Msg) runstate.State {
	switch msg := msg.(type) {
	case session.EventMsg:
		next, eff := state.Apply(msg.Gen, msg.Event)
		if eff == runstate.EffectEvaluate && cfg.EvaluationEnabled() {
			sess.Evaluate(msg.Gen, input, next.Finalized())
		}
		return next
	case session.ClosedMsg:
		if msg.Err != nil {
			return state.Failed(msg.Gen, msg.Err)
		}
		return state.Closed(msg.Gen)
	case session.EvaluationMsg:
		return state.WithEvaluation(msg.Gen, msg.Result)
	}
	return state
}
