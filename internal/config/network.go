package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// ChainIDFetcher asks an RPC endpoint for its chain id
type ChainIDFetcher func(ctx context.Context, rpcURL string) (uint64, error)

// NetworkResolver resolves network names to configurations with caching
type NetworkResolver struct {
	dataDir  string
	networks map[string]config.NetworkConfig
	fetch    ChainIDFetcher
	cache    *NetworkCache
	mu       sync.RWMutex
}

// NetworkCache caches chain ID lookups
type NetworkCache struct {
	Networks   map[string]uint64   `json:"networks"`   // name -> chainID
	RPCs       map[string]uint64   `json:"rpcs"`       // rpcURL -> chainID
	ChainNames map[uint64][]string `json:"chainNames"` // chainID -> names
	UpdatedAt  time.Time           `json:"updatedAt"`
}

func newNetworkCache() *NetworkCache {
	return &NetworkCache{
		Networks:   make(map[string]uint64),
		RPCs:       make(map[string]uint64),
		ChainNames: make(map[uint64][]string),
		UpdatedAt:  time.Now(),
	}
}

// NewNetworkResolver creates a new network resolver. The cache lives in
// <dataDir>/cache/chainIds.json.
func NewNetworkResolver(dataDir string, project *config.ProjectConfig, fetch ChainIDFetcher) *NetworkResolver {
	networks := map[string]config.NetworkConfig{}
	if project != nil && project.Networks != nil {
		networks = project.Networks
	}
	if fetch == nil {
		fetch = FetchChainID
	}

	r := &NetworkResolver{
		dataDir:  dataDir,
		networks: networks,
		fetch:    fetch,
	}
	r.loadCache()
	return r
}

// ProvideNetworkResolver creates a NetworkResolver for Wire dependency injection
func ProvideNetworkResolver(cfg *config.RuntimeConfig) *NetworkResolver {
	return NewNetworkResolver(cfg.DataDir, cfg.Project, nil)
}

// GetNetworks returns all configured network names, sorted
func (r *NetworkResolver) GetNetworks(ctx context.Context) []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveNetwork resolves a network name to its configuration. The chain id
// comes from dvm.toml, then the cache, then the RPC itself.
func (r *NetworkResolver) ResolveNetwork(ctx context.Context, networkName string) (*config.Network, error) {
	nc, exists := r.networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network '%s' not found in %s [networks]", networkName, ProjectFile)
	}
	if nc.RPCURL == "" {
		return nil, fmt.Errorf("network '%s' has no rpc_url", networkName)
	}

	chainID := nc.ChainID
	if chainID == 0 {
		r.mu.RLock()
		cached, ok := r.cache.Networks[networkName]
		if !ok {
			cached, ok = r.cache.RPCs[nc.RPCURL]
		}
		r.mu.RUnlock()

		if ok {
			chainID = cached
		} else {
			fetched, err := r.fetch(ctx, nc.RPCURL)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch chain ID for network %s: %w", networkName, err)
			}
			chainID = fetched
			r.updateCache(networkName, nc.RPCURL, chainID)
		}
	}

	return &config.Network{
		Name:       networkName,
		ChainID:    chainID,
		RPCURL:     nc.RPCURL,
		PrivateKey: nc.PrivateKey,
	}, nil
}

// FetchChainID dials rpcURL and asks for eth_chainId
func FetchChainID(ctx context.Context, rpcURL string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return chainID.Uint64(), nil
}

func (r *NetworkResolver) cachePath() string {
	return filepath.Join(r.dataDir, "cache", "chainIds.json")
}

// loadCache loads the chain ID cache from disk. A missing or corrupt cache
// starts empty.
func (r *NetworkResolver) loadCache() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = newNetworkCache()

	data, err := os.ReadFile(r.cachePath())
	if err != nil {
		return
	}

	cache := newNetworkCache()
	if err := json.Unmarshal(data, cache); err != nil {
		return
	}
	r.cache = cache
}

// updateCache records a resolved chain id and persists the cache
func (r *NetworkResolver) updateCache(networkName, rpcURL string, chainID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Networks[networkName] = chainID
	r.cache.RPCs[rpcURL] = chainID
	if !slices.Contains(r.cache.ChainNames[chainID], networkName) {
		r.cache.ChainNames[chainID] = append(r.cache.ChainNames[chainID], networkName)
	}
	r.cache.UpdatedAt = time.Now()

	// The cache only saves round trips
	_ = r.saveCache()
}

func (r *NetworkResolver) saveCache() error {
	if err := os.MkdirAll(filepath.Dir(r.cachePath()), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.cachePath(), data, 0644)
}

var _ usecase.NetworkResolver = (*NetworkResolver)(nil)
