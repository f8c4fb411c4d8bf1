package appconfig

import (
	"fmt"
	"io"
	"strings"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &Config{}
	}

	localModels := "(first two from registry)"
	if len(cfg.LocalModels) > 0 {
		localModels = strings.Join(cfg.LocalModels, ", ")
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "(server default)"
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  API URL:           %s\n", cfg.BaseURL())
	fmt.Fprintf(out, "  Cloud Model:       %s\n", cfg.CloudModelName())
	fmt.Fprintf(out, "  Local Models:      %s\n", localModels)
	fmt.Fprintf(out, "  Backend:           %s\n", backend)
	fmt.Fprintf(out, "  Request Timeout:   %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Upload Extensions: %s\n", strings.Join(cfg.AllowedExtensions(), " "))
	fmt.Fprintf(out, "  Evaluate:          %v\n", cfg.EvaluationEnabled())
	fmt.Fprintf(out, "  Debug:             %v\n", cfg.Debug)
	fmt.Fprintf(out, "  JSON Mode:         %v\n", cfg.JSONMode)
	fmt.Fprintf(out, "  Log File:          %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Export JSON:       %s\n", cfg.ExportPath)
	fmt.Fprintf(out, "  Export Markdown:   %s\n", cfg.ExportMarkdownPath)
	fmt.Fprintf(out, "  Export YAML:       %s\n", cfg.ExportYAMLPath)
}

// DumpConfig pretty prints the raw configuration struct.
func DumpConfig(out io.Writer, cfg *Config) {
	pp.ColoringEnabled = false
	_, _ = pp.Fprintln(out, cfg)
}
