/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Repository Checks
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const licenseLine = "This software is released under The PostgreSQL License"

// TestLint runs golangci-lint if it's installed on the system.
func TestLint(t *testing.T) {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping lint test. Install with: go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest")
	}

	cmd := exec.Command("golangci-lint", "run", "--timeout=5m")
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if strings.Contains(outputStr, "can't load config") || strings.Contains(outputStr, "unsupported version") {
		t.Skipf("golangci-lint configuration issue, skipping lint test:\n%s", outputStr)
	}

	if err != nil {
		if strings.Contains(outputStr, "level=error") || strings.Contains(outputStr, "Error:") {
			t.Errorf("golangci-lint found issues:\n%s", outputStr)
			return
		}
		if strings.Contains(outputStr, "level=warning") {
			t.Logf("golangci-lint warnings:\n%s", outputStr)
		}
	}
}

// TestLicenseHeaders checks every Go source file carries the license block.
func TestLicenseHeaders(t *testing.T) {
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		head := string(data)
		if len(head) > 512 {
			head = head[:512]
		}
		if !strings.HasPrefix(head, "/*") || !strings.Contains(head, licenseLine) {
			t.Errorf("%s: missing license header", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking source tree: %v", err)
	}
}
