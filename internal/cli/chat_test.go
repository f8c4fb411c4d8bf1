// internal/cli/chat_test.go
package medgen

import (
	"context"
	"testing"

	"github.com/mwiater/medgen/internal/appconfig"
)

// TestUICmd ensures the ui command hands the loaded configuration and the
// command context to the terminal UI.
func TestUICmd(t *testing.T) {
	loaded := &appconfig.Config{APIURL: "http://backend:8000", LocalModels: []string{"m1"}}

	originalStartGUI := startGUI
	originalConfig := currentConfig
	t.Cleanup(func() {
		startGUI = originalStartGUI
		currentConfig = originalConfig
	})
	currentConfig = loaded

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "run")
	uiCmd.SetContext(ctx)

	var receivedCfg *appconfig.Config
	var receivedCtx context.Context
	startGUI = func(ctx context.Context, cfg *appconfig.Config) error {
		receivedCtx = ctx
		receivedCfg = cfg
		return nil
	}

	if err := uiCmd.RunE(uiCmd, nil); err != nil {
		t.Fatalf("ui command returned error: %v", err)
	}
	if receivedCfg != loaded {
		t.Fatal("expected startGUI to receive the loaded configuration")
	}
	if receivedCtx == nil || receivedCtx.Value(ctxKey{}) != "run" {
		t.Fatal("expected startGUI to receive the command context")
	}
}

func TestUICmdWithoutConfig(t *testing.T) {
	originalStartGUI := startGUI
	originalConfig := currentConfig
	t.Cleanup(func() {
		startGUI = originalStartGUI
		currentConfig = originalConfig
	})
	currentConfig = nil

	called := false
	startGUI = func(ctx context.Context, cfg *appconfig.Config) error {
		called = true
		if cfg == nil {
			t.Fatal("expected a default configuration")
		}
		if ctx == nil {
			t.Fatal("expected a context")
		}
		return nil
	}

	if err := rootCmd.RunE(rootCmd, nil); err != nil {
		t.Fatalf("root command returned error: %v", err)
	}
	if !called {
		t.Fatal("expected the root command to start the UI")
	}
}
