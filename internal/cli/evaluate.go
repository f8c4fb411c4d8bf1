// internal/cli/evaluate.go
package medgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mwiater/medgen/internal/api"
	"github.com/mwiater/medgen/internal/report"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/spf13/cobra"
)

// evaluator requests the evaluation of a set of outputs.
type evaluator interface {
	Evaluate(ctx context.Context, input string, outputs map[string]string) (runstate.Evaluation, error)
}

var (
	evalInput   string
	evalOutputs string
)

// evaluateCmd implements 'evaluate', which re-evaluates stored outputs.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate model outputs stored in a JSON file",
	Long: `Evaluate model outputs read from a JSON file. The file is either an object
mapping model names to outputs or a report written by --export, in which case
its input is reused unless --input is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		data, err := os.ReadFile(evalOutputs)
		if err != nil {
			return fmt.Errorf("read outputs: %w", err)
		}
		input, outputs, err := parseOutputs(data)
		if err != nil {
			return err
		}
		if evalInput != "" {
			input = evalInput
		}
		return runEvaluate(commandContext(cmd), cmd.OutOrStdout(), api.New(*cfg), input, outputs, cfg.JSONMode)
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalInput, "input", "i", "", "input text the outputs were generated from")
	evaluateCmd.Flags().StringVarP(&evalOutputs, "outputs", "o", "", "JSON file holding the outputs")
	_ = evaluateCmd.MarkFlagRequired("outputs")
	rootCmd.AddCommand(evaluateCmd)
}

// parseOutputs reads either a model to output map or an exported report.
func parseOutputs(data []byte) (string, map[string]string, error) {
	var outputs map[string]string
	if err := json.Unmarshal(data, &outputs); err == nil {
		return "", outputs, nil
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return "", nil, fmt.Errorf("outputs file is neither an outputs map nor a report: %w", err)
	}
	outputs = make(map[string]string, len(r.Models))
	for _, m := range r.Models {
		if m.Final {
			outputs[m.Model] = m.Output
		}
	}
	return r.Input, outputs, nil
}

func runEvaluate(ctx context.Context, out io.Writer, client evaluator, input string, outputs map[string]string, jsonMode bool) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input text is empty: pass --input")
	}
	if len(outputs) == 0 {
		return errors.New("no outputs to evaluate")
	}

	result, err := client.Evaluate(ctx, input, outputs)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(out, sectionTitle(fmt.Sprintf("Evaluation (%s)", result.EvaluatorModel)))
	fmt.Fprintln(out, result.Text)
	return nil
}
