// Package network defines the network context that parameterizes contract
// resolution and script execution.
package network

import (
	"fmt"
	"strings"
)

// Network identifies a Flow network.
type Network string

const (
	// Testnet is the default network.
	Testnet Network = "testnet"
	// Mainnet is the production network.
	Mainnet Network = "mainnet"
	// Emulator is a locally running emulator.
	Emulator Network = "emulator"
)

// Default is the network used when none is configured.
const Default = Testnet

var accessNodes = map[Network]string{
	Testnet:  "https://rest-testnet.onflow.org",
	Mainnet:  "https://rest-mainnet.onflow.org",
	Emulator: "http://127.0.0.1:8888",
}

// All returns every known network in cycling order.
func All() []Network {
	return []Network{Testnet, Mainnet, Emulator}
}

// String returns the string representation of the network.
func (n Network) String() string {
	return string(n)
}

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	_, ok := accessNodes[n]
	return ok
}

// Next returns the network after n in All, wrapping around. Unknown
// networks return Default.
func (n Network) Next() Network {
	all := All()
	for i, candidate := range all {
		if candidate == n {
			return all[(i+1)%len(all)]
		}
	}
	return Default
}

// AccessNode returns the REST access API endpoint for n, or "" if n is unknown.
func (n Network) AccessNode() string {
	return accessNodes[n]
}

// Parse converts s to a Network. An empty string yields Default.
func Parse(s string) (Network, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	n := Network(s)
	if !n.Valid() {
		return "", fmt.Errorf("unknown network %q (valid: testnet, mainnet, emulator)", s)
	}
	return n, nil
}
