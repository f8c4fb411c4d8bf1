// internal/cli/root.go
package medgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/mwiater/medgen/internal/appconfig"
	"github.com/mwiater/medgen/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix namespaces the environment variables read by viper.
const envPrefix = "MEDGEN"

var (
	cfgFile       string
	currentConfig *appconfig.Config
)

// boundFlags are the persistent flags that override config file values.
var boundFlags = []string{"apiURL", "backend", "debug", "jsonMode", "logFile", "export", "exportMarkdown", "exportYAML"}

var rootCmd = &cobra.Command{
	Use:   "medgen",
	Short: "medgen: compare one input across a cloud model and two local models",
	Long: `medgen sends input text to several language models through a single
streaming request and shows their outputs side by side, followed by an
evaluation of the results. Without a subcommand it starts the UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logging.SetDebug(cfg.Debug)
		logging.LogDebug("config loaded from %q", cfg.ConfigPath)
		currentConfig = cfg
		return nil
	},
	RunE: runUI,
}

// Execute runs the command tree. An interrupt cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")
	registerConfigFlags(rootCmd.PersistentFlags())
}

// registerConfigFlags defines the flags that override config file values.
func registerConfigFlags(flags *pflag.FlagSet) {
	flags.String("apiURL", "", "backend base URL (env MEDGEN_API_URL)")
	flags.String("backend", "", "local backend sent with each model: ollama or vllm")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("jsonMode", false, "print machine-readable JSON output")
	flags.String("logFile", "", "log file path (default medgen.log)")
	flags.String("export", "", "write each run as JSON to this path")
	flags.String("exportMarkdown", "", "write each run as Markdown to this path")
	flags.String("exportYAML", "", "write each run as YAML to this path")
}

// configDefaults registers every config key with viper so that environment
// variables are honoured for keys absent from the config file.
var configDefaults = map[string]any{
	"apiURL":           appconfig.DefaultAPIURL,
	"cloudModel":       appconfig.DefaultCloudModel,
	"localModels":      []string{},
	"backend":          "",
	"timeout":          600,
	"uploadExtensions": appconfig.DefaultUploadExtensions,
	"debug":            false,
	"jsonMode":         false,
	"logFile":          "",
	"export":           "",
	"exportMarkdown":   "",
	"exportYAML":       "",
}

// loadConfig merges flags, environment, the config file and defaults, in
// that order of precedence, and validates the result.
func loadConfig(cmd *cobra.Command) (*appconfig.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	_ = v.BindEnv("apiURL", envPrefix+"_API_URL")
	_ = v.BindEnv("evaluate")
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	for _, name := range boundFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag != nil {
			_ = v.BindPFlag(name, flag)
		}
	}

	fileCfg, err := appconfig.Load(cfgFile)
	switch {
	case err == nil:
		v.SetConfigFile(fileCfg.ConfigPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	case errors.Is(err, appconfig.ErrNoConfig):
		if cmd.Flags().Changed("config") {
			return nil, err
		}
		// No file: defaults, env and flags only.
	default:
		return nil, err
	}

	var cfg appconfig.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getConfig returns the loaded application configuration for other packages.
func getConfig() *appconfig.Config {
	if currentConfig == nil {
		return &appconfig.Config{}
	}
	return currentConfig
}

// commandContext returns the context of an executing command.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
