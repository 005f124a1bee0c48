// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var cliBinary string

func TestMain(m *testing.M) {
	// 1. Build the binary
	cwd, _ := os.Getwd()
	cliBinary = filepath.Join(cwd, "arxval_e2e")

	// Assuming running from test/e2e/, go up to root
	cmd := exec.Command("go", "build", "-o", cliBinary, "../../cmd/arxval")
	if out, err := cmd.CombinedOutput(); err != nil {
		fmt.Printf("Failed to build CLI: %v\n%s\n", err, out)
		os.Exit(1)
	}

	// 2. Run Tests
	exitCode := m.Run()

	// 3. Cleanup
	os.Remove(cliBinary)
	os.Exit(exitCode)
}

// cliCommand builds a command for the built binary with an isolated
// HOME so first-run config creation never touches the real user
// config. ARXVAL_KB_PATH is cleared so the host environment cannot
// swap the KB under a test.
func cliCommand(home string, args ...string) *exec.Cmd {
	cmd := exec.Command(cliBinary, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "ARXVAL_KB_PATH=")
	return cmd
}

// runCLI executes the binary and returns combined output and the exit
// code.
func runCLI(t *testing.T, home string, args ...string) (string, int) {
	t.Helper()
	out, err := cliCommand(home, args...).CombinedOutput()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			t.Fatalf("running %v: %v", args, err)
		}
	}
	return string(out), code
}

// runCLIStdout is runCLI but captures stdout alone, for JSON output.
func runCLIStdout(t *testing.T, home string, args ...string) (string, int) {
	t.Helper()
	out, err := cliCommand(home, args...).Output()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			t.Fatalf("running %v: %v", args, err)
		}
	}
	return string(out), code
}
