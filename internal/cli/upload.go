// internal/cli/upload.go
package medgen

import (
	"fmt"

	"github.com/mwiater/medgen/internal/api"
	"github.com/mwiater/medgen/internal/upload"
	"github.com/spf13/cobra"
)

// uploadCmd implements 'upload', which prints the text the backend extracts from a file.
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Convert a .txt, .md or .csv file to input text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		adapter := upload.New(api.New(*cfg), cfg.AllowedExtensions())
		text, err := adapter.Submit(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
