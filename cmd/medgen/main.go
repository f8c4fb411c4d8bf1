// cmd/medgen/main.go
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	cmd "github.com/mwiater/medgen/internal/cli"
	"github.com/mwiater/medgen/internal/logging"
)

var (
	loadDotEnv   = func() error { return godotenv.Load() }
	executeCmd   = cmd.Execute
	closeLogging = logging.Close
	exit         = os.Exit
)

// main loads .env into the environment, runs the command tree and exits
// non-zero when the command failed.
func main() {
	if err := loadDotEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	code := 0
	if err := executeCmd(); err != nil {
		code = 1
	}
	if err := closeLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not close log file: %v\n", err)
	}
	exit(code)
}
