// internal/cli/chat.go
package medgen

import (
	"github.com/mwiater/medgen/cli"
	"github.com/spf13/cobra"
)

var startGUI = cli.StartGUI

// uiCmd represents the 'ui' command.
var uiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"chat"},
	Short:   "Start the three-pane generation UI",
	Long:    `The 'ui' command starts the terminal UI: one cloud pane, two local model panes and the evaluation of each run.`,
	Args:    cobra.NoArgs,
	RunE:    runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	return startGUI(commandContext(cmd), getConfig())
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
