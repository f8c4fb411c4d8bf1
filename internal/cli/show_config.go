// internal/cli/show_config.go
package medgen

import (
	"github.com/mwiater/medgen/internal/appconfig"
	"github.com/spf13/cobra"
)

var showConfigRaw bool

// showConfigCmd implements 'show config', which prints the merged configuration.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings after the config file, environment and flags are merged.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		if showConfigRaw {
			appconfig.DumpConfig(cmd.OutOrStdout(), cfg)
			return
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), cfg.ConfigPath, cfg)
	},
}

func init() {
	showConfigCmd.Flags().BoolVar(&showConfigRaw, "raw", false, "dump the configuration struct")
	showCmd.AddCommand(showConfigCmd)
}
