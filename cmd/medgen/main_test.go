package main

import (
	"errors"
	"testing"
)

func stubMain(t *testing.T, execErr error) (calls *struct{ env, exec, close bool }, code *int) {
	t.Helper()
	origEnv, origExec, origClose, origExit := loadDotEnv, executeCmd, closeLogging, exit
	t.Cleanup(func() {
		loadDotEnv, executeCmd, closeLogging, exit = origEnv, origExec, origClose, origExit
	})

	calls = &struct{ env, exec, close bool }{}
	code = new(int)
	*code = -1

	loadDotEnv = func() error {
		calls.env = true
		return nil
	}
	executeCmd = func() error {
		calls.exec = true
		return execErr
	}
	closeLogging = func() error {
		calls.close = true
		return nil
	}
	exit = func(c int) { *code = c }
	return calls, code
}

func TestMainWiring(t *testing.T) {
	calls, code := stubMain(t, nil)

	main()

	if !calls.env || !calls.exec || !calls.close {
		t.Fatalf("expected all wiring calls, got %+v", *calls)
	}
	if *code != 0 {
		t.Fatalf("expected exit code 0, got %d", *code)
	}
}

func TestMainExitCode(t *testing.T) {
	_, code := stubMain(t, errors.New("boom"))

	main()

	if *code != 1 {
		t.Fatalf("expected exit code 1, got %d", *code)
	}
}
