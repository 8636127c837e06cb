// Package testutil provides testing utilities for cadencehost tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// SetupProject creates a temporary directory holding files and returns
// its path. The files map contains relative paths to file contents.
// The directory is removed when the test completes.
func SetupProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for path, content := range files {
		WriteFile(t, dir, path, content)
	}
	return dir
}

// WriteFile creates or replaces a file under dir, creating parents, and
// returns its full path.
func WriteFile(t *testing.T, dir, path, content string) string {
	t.Helper()

	fullPath := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return fullPath
}

// Eventually polls cond every 5ms until it returns true or timeout
// elapses, failing the test with msg on timeout.
func Eventually(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %v: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Never asserts cond stays false for d.
func Never(t *testing.T, d time.Duration, msg string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("condition became true: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
