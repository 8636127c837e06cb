// Package registry holds contract sources per network and resolves the
// import paths the analysis service asks about.
package registry

import (
	"sort"
	"sync"

	"github.com/Iron-Ham/cadencehost/internal/network"
)

// Registry maps contract names to source text, per network.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	contracts map[network.Network]map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{contracts: make(map[network.Network]map[string]string)}
}

// Put registers src for name on the given networks, or on every network
// when none are given.
func (r *Registry) Put(name, src string, networks ...network.Network) {
	if len(networks) == 0 {
		networks = network.All()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range networks {
		m, ok := r.contracts[n]
		if !ok {
			m = make(map[string]string)
			r.contracts[n] = m
		}
		m[name] = src
	}
}

// Get returns the source of name on n.
func (r *Registry) Get(n network.Network, name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.contracts[n][name]
	return src, ok
}

// Names returns the contract names registered on n, sorted.
func (r *Registry) Names(n network.Network) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contracts[n]))
	for name := range r.contracts[n] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct contract names across networks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, m := range r.contracts {
		for name := range m {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}

// Merge copies every entry of other into r, overwriting duplicates.
func (r *Registry) Merge(other *Registry) {
	if other == nil || other == r {
		return
	}
	snapshot := other.snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	for n, m := range snapshot {
		dst, ok := r.contracts[n]
		if !ok {
			dst = make(map[string]string, len(m))
			r.contracts[n] = dst
		}
		for name, src := range m {
			dst[name] = src
		}
	}
}

// Replace swaps r's contents for other's in one step.
func (r *Registry) Replace(other *Registry) {
	if other == r {
		return
	}
	var snapshot map[network.Network]map[string]string
	if other != nil {
		snapshot = other.snapshot()
	} else {
		snapshot = make(map[network.Network]map[string]string)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts = snapshot
}

func (r *Registry) snapshot() map[network.Network]map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[network.Network]map[string]string, len(r.contracts))
	for n, m := range r.contracts {
		cp := make(map[string]string, len(m))
		for name, src := range m {
			cp[name] = src
		}
		out[n] = cp
	}
	return out
}
