package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/cadencehost/internal/network"
)

// SourceExt is the file extension of contract sources.
const SourceExt = ".cdc"

// Sources lists where contract sources come from. Empty fields are skipped.
type Sources struct {
	Manifest string // YAML manifest
	FlowJSON string // flow.json project file
	Dir      string // directory of *.cdc files
}

// Empty reports whether no source is configured.
func (s Sources) Empty() bool {
	return s.Manifest == "" && s.FlowJSON == "" && s.Dir == ""
}

// Paths returns the configured paths.
func (s Sources) Paths() []string {
	var out []string
	for _, p := range []string{s.Manifest, s.FlowJSON, s.Dir} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load builds a registry from every configured source. Later sources
// override earlier ones: directory first, then flow.json, then the manifest.
func Load(src Sources) (*Registry, error) {
	reg := New()
	if src.Dir != "" {
		r, err := LoadDir(src.Dir)
		if err != nil {
			return nil, err
		}
		reg.Merge(r)
	}
	if src.FlowJSON != "" {
		r, err := LoadFlowJSON(src.FlowJSON)
		if err != nil {
			return nil, err
		}
		reg.Merge(r)
	}
	if src.Manifest != "" {
		r, err := LoadManifest(src.Manifest)
		if err != nil {
			return nil, err
		}
		reg.Merge(r)
	}
	return reg, nil
}

// manifest is the YAML registry file:
//
//	contracts:
//	  FungibleToken:
//	    source: ./contracts/FungibleToken.cdc
//	    networks: [testnet, mainnet]
//	  Hello:
//	    code: "pub contract Hello {}"
type manifest struct {
	Contracts map[string]manifestEntry `yaml:"contracts"`
}

type manifestEntry struct {
	Source   string   `yaml:"source"`
	Code     string   `yaml:"code"`
	Networks []string `yaml:"networks"`
}

// LoadManifest reads a YAML manifest. Source paths are relative to the
// manifest's directory.
func LoadManifest(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	reg := New()
	for _, name := range sortedKeys(m.Contracts) {
		entry := m.Contracts[name]
		nets, err := parseNetworks(entry.Networks)
		if err != nil {
			return nil, fmt.Errorf("manifest contract %s: %w", name, err)
		}

		code := entry.Code
		if entry.Source != "" {
			b, err := os.ReadFile(resolvePath(base, entry.Source))
			if err != nil {
				return nil, fmt.Errorf("manifest contract %s: %w", name, err)
			}
			code = string(b)
		}
		if code == "" {
			return nil, fmt.Errorf("manifest contract %s: no source or code", name)
		}
		reg.Put(name, code, nets...)
	}
	return reg, nil
}

// flowProject is the subset of flow.json the registry reads.
type flowProject struct {
	Contracts map[string]json.RawMessage `json:"contracts"`
}

type flowContract struct {
	Source  string            `json:"source"`
	Aliases map[string]string `json:"aliases"`
}

// LoadFlowJSON reads the contracts section of a flow.json. Entries are a
// path string or an object with a source and per-network aliases; an
// aliased contract is registered only on the networks it has aliases for.
// Comments and trailing commas are tolerated.
func LoadFlowJSON(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow.json: %w", err)
	}

	var project flowProject
	if err := json.Unmarshal(jsonc.ToJSON(data), &project); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	base := filepath.Dir(path)
	reg := New()
	for _, name := range sortedKeys(project.Contracts) {
		raw := project.Contracts[name]

		var entry flowContract
		var plain string
		if err := json.Unmarshal(raw, &plain); err == nil {
			entry.Source = plain
		} else if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("flow.json contract %s: %w", name, err)
		}
		if entry.Source == "" {
			return nil, fmt.Errorf("flow.json contract %s: missing source", name)
		}

		var nets []network.Network
		for alias := range entry.Aliases {
			if n := network.Network(strings.ToLower(alias)); n.Valid() {
				nets = append(nets, n)
			}
		}
		if len(entry.Aliases) > 0 && len(nets) == 0 {
			continue
		}

		b, err := os.ReadFile(resolvePath(base, entry.Source))
		if err != nil {
			return nil, fmt.Errorf("flow.json contract %s: %w", name, err)
		}
		reg.Put(name, string(b), nets...)
	}
	return reg, nil
}

// LoadDir registers every *.cdc file in dir under its base name on all networks.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read contract directory: %w", err)
	}

	reg := New()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != SourceExt {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		reg.Put(strings.TrimSuffix(e.Name(), SourceExt), string(b))
	}
	return reg, nil
}

func parseNetworks(names []string) ([]network.Network, error) {
	nets := make([]network.Network, 0, len(names))
	for _, s := range names {
		n, err := network.Parse(s)
		if err != nil {
			return nil, err
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
