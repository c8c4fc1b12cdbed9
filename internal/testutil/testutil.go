// Package testutil provides testing utilities for buildwatch tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/kirbytools/buildwatch/internal/transport"
)

// SkipIfNoShell skips the test if the shell builds run through is missing.
func SkipIfNoShell(t *testing.T) {
	t.Helper()
	shell := "sh"
	if runtime.GOOS == "windows" {
		shell = "cmd"
	}
	if _, err := exec.LookPath(shell); err != nil {
		t.Skipf("%s not found in PATH, skipping test", shell)
	}
}

// SkipIfNoPTY skips the test if no pseudo-terminal can be allocated, as in
// some containers and CI sandboxes.
func SkipIfNoPTY(t *testing.T) {
	t.Helper()
	if err := transport.NewPTY(transport.Options{}).Probe(); err != nil {
		t.Skipf("pty unavailable, skipping test: %v", err)
	}
}

// SkipIfShort skips process-spawning tests in -short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping process test in short mode")
	}
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s waiting for %s", timeout, what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
