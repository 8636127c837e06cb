package testutil

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestSetupProject(t *testing.T) {
	dir := SetupProject(t, map[string]string{
		"flow.json":         "{}",
		"contracts/Foo.cdc": "pub contract Foo {}",
	})

	data, err := os.ReadFile(filepath.Join(dir, "contracts", "Foo.cdc"))
	if err != nil {
		t.Fatalf("Expected nested file to exist: %v", err)
	}
	if string(data) != "pub contract Foo {}" {
		t.Errorf("Expected file content to round-trip, got %q", data)
	}
}

func TestEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	Eventually(t, time.Second, "flag set", func() bool { return n.Load() == 1 })
}

func TestNever(t *testing.T) {
	Never(t, 20*time.Millisecond, "always false", func() bool { return false })
}
