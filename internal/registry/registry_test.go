package registry

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/Iron-Ham/cadencehost/internal/testutil"
)

func TestContractName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"0x01.Foo", "Foo"},
		{"0xf233dcee88fe0abe.FungibleToken", "FungibleToken"},
		{"Foo", "Foo"},
		{"a.b.c", "b"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ContractName(tt.path); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRegistry_PutGet(t *testing.T) {
	reg := New()
	reg.Put("Foo", "pub contract Foo {}")
	reg.Put("Bar", "pub contract Bar {}", network.Mainnet)

	for _, n := range network.All() {
		if _, ok := reg.Get(n, "Foo"); !ok {
			t.Errorf("Expected Foo on %s", n)
		}
	}
	if _, ok := reg.Get(network.Testnet, "Bar"); ok {
		t.Error("Bar should only be registered on mainnet")
	}
	if names := reg.Names(network.Mainnet); len(names) != 2 || names[0] != "Bar" {
		t.Errorf("Expected sorted [Bar Foo], got %v", names)
	}
	if reg.Len() != 2 {
		t.Errorf("Expected 2 contracts, got %d", reg.Len())
	}
}

func TestRegistry_MergeReplace(t *testing.T) {
	a := New()
	a.Put("Foo", "old")
	b := New()
	b.Put("Foo", "new")
	b.Put("Baz", "baz")

	a.Merge(b)
	if src, _ := a.Get(network.Testnet, "Foo"); src != "new" {
		t.Errorf("Expected merge to overwrite, got %q", src)
	}

	c := New()
	c.Put("Only", "only")
	a.Replace(c)
	if a.Len() != 1 {
		t.Errorf("Expected replace to drop old entries, got %d", a.Len())
	}

	// Mutating the source after Replace must not leak into a.
	c.Put("Later", "later")
	if _, ok := a.Get(network.Testnet, "Later"); ok {
		t.Error("Replace should copy, not alias")
	}
}

func TestResolver_Resolve(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, "debug")

	reg := New()
	reg.Put("Foo", "pub contract Foo {}")
	reg.Put("Main", "pub contract Main {}", network.Mainnet)
	r := NewResolver(reg, network.Testnet, logger)

	if got := r.Resolve("0x01.Foo"); got != "pub contract Foo {}" {
		t.Errorf("Expected Foo source, got %q", got)
	}
	if got := r.Resolve("0x01.Missing"); got != "" {
		t.Errorf("Expected empty string on miss, got %q", got)
	}
	if !strings.Contains(buf.String(), "Could not find code for Missing") || !strings.Contains(buf.String(), errors.ErrResolutionMiss.Error()) {
		t.Errorf("Expected miss to be logged, got %q", buf.String())
	}

	if got := r.Resolve("0x02.Main"); got != "" {
		t.Errorf("Main should be unknown on testnet, got %q", got)
	}
	if prev := r.SetNetwork(network.Mainnet); prev != network.Testnet {
		t.Errorf("Expected previous network testnet, got %s", prev)
	}
	if got := r.Resolve("0x02.Main"); got != "pub contract Main {}" {
		t.Errorf("Expected Main on mainnet, got %q", got)
	}
}

func TestResolver_Lookup(t *testing.T) {
	reg := New()
	reg.Put("Foo", "pub contract Foo {}")
	r := NewResolver(reg, network.Testnet, nil)

	src, err := r.Lookup("0x01.Foo")
	if err != nil || src != "pub contract Foo {}" {
		t.Errorf("Lookup(0x01.Foo) = %q, %v", src, err)
	}
	_, err = r.Lookup("0x01.Missing")
	if !errors.Is(err, errors.ErrResolutionMiss) {
		t.Errorf("Expected ErrResolutionMiss, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "Missing on testnet") {
		t.Errorf("Expected contract and network in error, got %q", err)
	}
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver(nil, "bogus", nil)
	if r.Network() != network.Default {
		t.Errorf("Expected default network, got %s", r.Network())
	}
	if r.Resolve("Foo") != "" {
		t.Error("Empty registry should resolve to empty string")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := testutil.SetupProject(t, map[string]string{
		"contracts/Foo.cdc": "pub contract Foo {}",
		"registry.yaml": `contracts:
  Foo:
    source: contracts/Foo.cdc
    networks: [mainnet]
  Hello:
    code: "pub contract Hello {}"
`,
	})

	reg, err := LoadManifest(filepath.Join(dir, "registry.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if src, ok := reg.Get(network.Mainnet, "Foo"); !ok || src != "pub contract Foo {}" {
		t.Errorf("Expected Foo on mainnet, got %q", src)
	}
	if _, ok := reg.Get(network.Testnet, "Foo"); ok {
		t.Error("Foo should not be on testnet")
	}
	if _, ok := reg.Get(network.Emulator, "Hello"); !ok {
		t.Error("Inline contract without networks should be on every network")
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "contracts: [\n"},
		{"unknown network", "contracts:\n  Foo:\n    code: x\n    networks: [moonnet]\n"},
		{"missing file", "contracts:\n  Foo:\n    source: nope.cdc\n"},
		{"empty entry", "contracts:\n  Foo: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.SetupProject(t, map[string]string{"registry.yaml": tt.content})
			if _, err := LoadManifest(filepath.Join(dir, "registry.yaml")); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoadFlowJSON(t *testing.T) {
	dir := testutil.SetupProject(t, map[string]string{
		"cadence/Foo.cdc": "pub contract Foo {}",
		"cadence/Bar.cdc": "pub contract Bar {}",
		"flow.json": `{
  // project contracts
  "contracts": {
    "Foo": "./cadence/Foo.cdc",
    "Bar": {
      "source": "./cadence/Bar.cdc",
      "aliases": {"testnet": "0x01", "emulator": "0xf8d6e0586b0a20c7"},
    },
    "Elsewhere": {
      "source": "./missing.cdc",
      "aliases": {"previewnet": "0x02"}
    }
  }
}`,
	})

	reg, err := LoadFlowJSON(filepath.Join(dir, "flow.json"))
	if err != nil {
		t.Fatalf("LoadFlowJSON failed: %v", err)
	}
	if _, ok := reg.Get(network.Mainnet, "Foo"); !ok {
		t.Error("Plain path contract should be on every network")
	}
	if _, ok := reg.Get(network.Testnet, "Bar"); !ok {
		t.Error("Bar should be on its aliased testnet")
	}
	if _, ok := reg.Get(network.Mainnet, "Bar"); ok {
		t.Error("Bar has no mainnet alias")
	}
	if reg.Len() != 2 {
		t.Errorf("Contract aliased only to unknown networks should be skipped, got %d", reg.Len())
	}
}

func TestLoadDirAndLoad(t *testing.T) {
	dir := testutil.SetupProject(t, map[string]string{
		"contracts/Foo.cdc":  "dir foo",
		"contracts/note.txt": "ignored",
		"registry.yaml":      "contracts:\n  Foo:\n    code: manifest foo\n",
	})

	reg, err := LoadDir(filepath.Join(dir, "contracts"))
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected only .cdc files, got %d", reg.Len())
	}

	merged, err := Load(Sources{
		Dir:      filepath.Join(dir, "contracts"),
		Manifest: filepath.Join(dir, "registry.yaml"),
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if src, _ := merged.Get(network.Testnet, "Foo"); src != "manifest foo" {
		t.Errorf("Expected manifest to override directory, got %q", src)
	}

	if _, err := Load(Sources{Dir: filepath.Join(dir, "absent")}); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestSources(t *testing.T) {
	if !(Sources{}).Empty() {
		t.Error("Zero Sources should be empty")
	}
	s := Sources{FlowJSON: "flow.json", Dir: "contracts"}
	if got := s.Paths(); len(got) != 2 || got[0] != "flow.json" {
		t.Errorf("Unexpected paths %v", got)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := testutil.SetupProject(t, map[string]string{
		"contracts/Foo.cdc": "v1",
	})
	src := Sources{Dir: filepath.Join(dir, "contracts")}
	target, err := Load(src)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var mu sync.Mutex
	var counts []int
	w, err := NewWatcher(src, target,
		WithDebounce(10*time.Millisecond),
		WithReloadCallback(func(n int, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				counts = append(counts, n)
			}
		}))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	testutil.WriteFile(t, dir, "contracts/Bar.cdc", "bar")

	testutil.Eventually(t, 2*time.Second, "registry picks up Bar", func() bool {
		_, ok := target.Get(network.Testnet, "Bar")
		return ok
	})

	mu.Lock()
	if len(counts) == 0 || counts[len(counts)-1] != 2 {
		t.Errorf("Expected reload callback with 2 contracts, got %v", counts)
	}
	mu.Unlock()
}

func TestWatcher_StopIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(Sources{Dir: dir}, New())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Start()
	w.Stop()
	w.Stop()

	unstarted, err := NewWatcher(Sources{Dir: dir}, New())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	unstarted.Stop()
}

func TestNewWatcher_MissingDir(t *testing.T) {
	if _, err := NewWatcher(Sources{Dir: filepath.Join(t.TempDir(), "absent")}, New()); err == nil {
		t.Error("Expected error watching a missing directory")
	}
}
