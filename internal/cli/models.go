// internal/cli/models.go
package medgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mwiater/medgen/internal/api"
	"github.com/spf13/cobra"
)

// registryClient is the part of the API client 'models' reads from.
type registryClient interface {
	ListLocalModels(ctx context.Context) (api.LocalModels, error)
	Backend(ctx context.Context) (api.BackendInfo, error)
	ListAllModels(ctx context.Context) (api.AllModels, error)
}

var (
	modelsAll     bool
	modelsBackend bool
)

// modelsCmd implements 'models', which lists what the backend can run locally.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the local models offered by the backend",
	Long: `List the models of the active local backend. --all lists the models of
every local backend and --backend shows where local generations are routed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		return runModels(commandContext(cmd), cmd.OutOrStdout(), api.New(*cfg), cfg.JSONMode)
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsAll, "all", false, "list the models of every local backend")
	modelsCmd.Flags().BoolVar(&modelsBackend, "backend-info", false, "show the local backend routing")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(ctx context.Context, out io.Writer, client registryClient, jsonMode bool) error {
	var (
		result any
		err    error
	)
	switch {
	case modelsBackend:
		result, err = client.Backend(ctx)
	case modelsAll:
		result, err = client.ListAllModels(ctx)
	default:
		result, err = client.ListLocalModels(ctx)
	}
	if err != nil {
		return err
	}

	if jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	switch r := result.(type) {
	case api.BackendInfo:
		fmt.Fprintf(out, "Backend:    %s\n", r.Backend)
		fmt.Fprintf(out, "Ollama URL: %s\n", r.OllamaURL)
		fmt.Fprintf(out, "vLLM URL:   %s\n", r.VLLMURL)
	case api.AllModels:
		printModelList(out, "Ollama", r.Ollama)
		printModelList(out, "vLLM", r.VLLM)
	case api.LocalModels:
		if r.Error != "" {
			fmt.Fprintf(out, "%s %s\n", failedResult("Backend error:"), r.Error)
		}
		printModelList(out, backendLabel(r.Backend), r.Models)
	}
	return nil
}

func backendLabel(backend string) string {
	switch strings.ToLower(backend) {
	case "ollama":
		return "Ollama"
	case "vllm":
		return "vLLM"
	case "":
		return "Local"
	}
	return backend
}

func printModelList(out io.Writer, title string, models []string) {
	fmt.Fprintf(out, "%s\n", sectionTitle(fmt.Sprintf("%s models (%d)", title, len(models))))
	if len(models) == 0 {
		fmt.Fprintln(out, faintResult("  (none)"))
		return
	}
	for _, m := range models {
		fmt.Fprintf(out, "  %s\n", m)
	}
}
