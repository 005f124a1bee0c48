package test

import (
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"testing"
)

const releaseScript = `import autosarfactory

root = autosarfactory.new_file("release.arxml")
pkg = root.new_ArPackage("Components")
swc = pkg.new_ApplicationSwComponentType("EngineController")
root.save()
`

// TestEmbeddedKBRelease builds the CLI and gates the embedded default
// knowledge base. No config, no external KB file: a fresh install must
// validate authoring scripts out of the box.
func TestEmbeddedKBRelease(t *testing.T) {
	// 1. Build the latest CLI binary
	// We build it to a temp location to avoid messing with the user's install
	tmpBin := "./arxval_test_bin"
	buildCmd := exec.Command("go", "build", "-o", tmpBin, "../../cmd/arxval")
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build CLI: %v\nOutput: %s", err, string(output))
	}
	defer os.Remove(tmpBin)

	// Fresh HOME so the run sees no user config, and a cleared
	// ARXVAL_KB_PATH so only the embedded KB can answer.
	env := append(os.Environ(), "HOME="+t.TempDir(), "ARXVAL_KB_PATH=")

	// 2. The embedded KB must load and report a usable surface
	cmd := exec.Command(tmpBin, "kb", "info", "--json")
	cmd.Env = env
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("kb info failed: %v", err)
	}
	var info struct {
		Version string `json:"version"`
		Classes int    `json:"classes"`
		Methods int    `json:"methods"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		t.Fatalf("kb info emitted invalid JSON: %v\nOutput: %s", err, out)
	}
	if info.Version == "" {
		t.Error("FAIL: Embedded KB reports no version.")
	}
	if info.Classes == 0 || info.Methods == 0 {
		t.Errorf("FAIL: Embedded KB is empty: %d classes, %d methods.",
			info.Classes, info.Methods)
	}

	// 3. The component authoring entry point ships in the default KB
	cmd = exec.Command(tmpBin, "kb", "class", "ArPackage")
	cmd.Env = env
	outputBytes, err := cmd.CombinedOutput()
	output := string(outputBytes)
	t.Logf("kb class output:\n%s", output)
	if err != nil {
		t.Fatalf("kb class ArPackage failed: %v", err)
	}
	if !strings.Contains(output, "new_ApplicationSwComponentType") {
		t.Error("FAIL: ArPackage lost its component factory.")
	}

	// 4. A canonical authoring script validates clean with no flags
	cmd = exec.Command(tmpBin, "validate", "-")
	cmd.Env = env
	cmd.Stdin = strings.NewReader(releaseScript)
	outputBytes, err = cmd.CombinedOutput()
	output = string(outputBytes)
	t.Logf("validate output:\n%s", output)
	if err != nil {
		t.Fatalf("FAIL: Canonical script rejected by the embedded KB: %v", err)
	}
	if !strings.Contains(output, "Script is valid") {
		t.Error("FAIL: validate did not report the script valid.")
	}
}
