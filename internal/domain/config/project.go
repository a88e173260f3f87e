package config

import (
	"maps"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ProjectConfig represents the parsed dvm.toml
type ProjectConfig struct {
	Networks  map[string]NetworkConfig `toml:"networks"`
	Chains    map[string]ChainFile     `toml:"chains"` // keyed by decimal chain id
	Artifacts ArtifactsConfig          `toml:"artifacts"`
}

// NetworkConfig is a named RPC endpoint
type NetworkConfig struct {
	RPCURL     string `toml:"rpc_url"`
	PrivateKey string `toml:"private_key,omitempty"` //nolint:gosec // holds env var reference, not a literal secret
	ChainID    uint64 `toml:"chain_id,omitempty"`
}

// ChainFile is the raw per-chain section of dvm.toml
type ChainFile struct {
	Name      string            `toml:"name"`
	Multicall string            `toml:"multicall,omitempty"`
	Addresses map[string]string `toml:"addresses,omitempty"`
}

// ArtifactsConfig lists directories searched for compiled contracts
type ArtifactsConfig struct {
	Paths []string `toml:"paths,omitempty"`
}

// ChainConfig holds the well-known addresses of one chain. Values are copied
// out of the registry, so callers can't mutate shared state.
type ChainConfig struct {
	ChainID   uint64
	Name      string
	Multicall common.Address
	Addresses map[string]common.Address
}

// HasMulticall reports whether a multicall contract is configured
func (c ChainConfig) HasMulticall() bool {
	return c.Multicall != (common.Address{})
}

// AddressNames returns the configured address names in sorted order
func (c ChainConfig) AddressNames() []string {
	names := make([]string, 0, len(c.Addresses))
	for name := range c.Addresses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainRegistry maps chain ids to their configuration. It is built once at
// process start and only read afterwards.
type ChainRegistry struct {
	chains map[uint64]ChainConfig
}

// NewChainRegistry creates a registry from already validated chain configs
func NewChainRegistry(chains ...ChainConfig) ChainRegistry {
	r := ChainRegistry{chains: make(map[uint64]ChainConfig, len(chains))}
	for _, c := range chains {
		r.chains[c.ChainID] = c
	}
	return r
}

// Lookup returns a copy of the chain configuration for chainID
func (r ChainRegistry) Lookup(chainID uint64) (ChainConfig, bool) {
	c, ok := r.chains[chainID]
	if !ok {
		return ChainConfig{}, false
	}
	c.Addresses = maps.Clone(c.Addresses)
	return c, true
}

// ChainIDs returns all configured chain ids in ascending order
func (r ChainRegistry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
