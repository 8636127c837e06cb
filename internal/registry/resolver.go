package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/network"
)

// ContractName extracts the contract name from an import path: the second
// "."-separated segment ("0x01.Foo" -> "Foo"), or the whole path when it
// has no dot.
func ContractName(importPath string) string {
	parts := strings.Split(importPath, ".")
	if len(parts) < 2 {
		return importPath
	}
	return parts[1]
}

// Resolver looks import paths up in a Registry for the current network.
type Resolver struct {
	registry *Registry
	logger   *logging.Logger

	mu      sync.RWMutex
	network network.Network
}

// NewResolver creates a resolver over reg. An invalid network falls back
// to network.Default.
func NewResolver(reg *Registry, n network.Network, logger *logging.Logger) *Resolver {
	if reg == nil {
		reg = New()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if !n.Valid() {
		n = network.Default
	}
	return &Resolver{
		registry: reg,
		logger:   logger.WithComponent("registry"),
		network:  n,
	}
}

// Registry returns the underlying registry.
func (r *Resolver) Registry() *Registry { return r.registry }

// Network returns the network used for lookups.
func (r *Resolver) Network() network.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.network
}

// SetNetwork changes the network used for lookups and returns the previous one.
func (r *Resolver) SetNetwork(n network.Network) network.Network {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.network
	r.network = n
	return prev
}

// Resolve returns the source registered for importPath on the current
// network, or "" on a miss. Misses are logged, never returned as errors.
func (r *Resolver) Resolve(importPath string) string {
	src, err := r.Lookup(importPath)
	if err != nil {
		r.logger.Warn("Could not find code for "+ContractName(importPath),
			"import", importPath,
			"network", r.Network().String(),
			"error", err)
		return ""
	}
	return src
}

// Lookup is Resolve that reports a miss as an error wrapping
// errors.ErrResolutionMiss.
func (r *Resolver) Lookup(importPath string) (string, error) {
	name := ContractName(importPath)
	n := r.Network()
	src, ok := r.registry.Get(n, name)
	if !ok || src == "" {
		return "", fmt.Errorf("%w: %s on %s", errors.ErrResolutionMiss, name, n)
	}
	return src, nil
}
