package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
)

// ProjectFile is the name of the project configuration file
const ProjectFile = "dvm.toml"

// loadEnvFiles loads .env and .env.local so dvm.toml can reference them.
// Variables already set in the process environment win.
func loadEnvFiles(projectRoot string) {
	for _, name := range []string{".env", ".env.local"} {
		envFile := filepath.Join(projectRoot, name)
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("failed to load env file", "file", envFile, "error", err)
		}
	}
}

// LoadProjectConfig reads dvm.toml from projectRoot and expands ${VAR}
// references in every string value
func LoadProjectConfig(projectRoot string) (*config.ProjectConfig, error) {
	loadEnvFiles(projectRoot)

	cfg := &config.ProjectConfig{}
	path := filepath.Join(projectRoot, ProjectFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ProjectFile, err)
	}

	for name, network := range cfg.Networks {
		network.RPCURL = os.ExpandEnv(network.RPCURL)
		network.PrivateKey = os.ExpandEnv(network.PrivateKey)
		cfg.Networks[name] = network
	}
	for id, chain := range cfg.Chains {
		chain.Multicall = os.ExpandEnv(chain.Multicall)
		for name, addr := range chain.Addresses {
			chain.Addresses[name] = os.ExpandEnv(addr)
		}
		cfg.Chains[id] = chain
	}
	for i, p := range cfg.Artifacts.Paths {
		cfg.Artifacts.Paths[i] = os.ExpandEnv(p)
	}

	return cfg, nil
}

// BuildChainRegistry validates the [chains] sections and freezes them into
// a registry. Every address must be a 20 byte hex string.
func BuildChainRegistry(project *config.ProjectConfig) (config.ChainRegistry, error) {
	chains := make([]config.ChainConfig, 0, len(project.Chains))

	for key, file := range project.Chains {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil || chainID == 0 {
			return config.ChainRegistry{}, fmt.Errorf("%w: [chains.%s]", domain.ErrInvalidChainID, key)
		}

		chain := config.ChainConfig{
			ChainID:   chainID,
			Name:      file.Name,
			Addresses: make(map[string]common.Address, len(file.Addresses)),
		}

		if file.Multicall != "" {
			if !common.IsHexAddress(file.Multicall) {
				return config.ChainRegistry{}, fmt.Errorf("%w: chains.%s.multicall = %q", domain.ErrInvalidAddress, key, file.Multicall)
			}
			chain.Multicall = common.HexToAddress(file.Multicall)
		}

		for name, addr := range file.Addresses {
			if !common.IsHexAddress(addr) {
				return config.ChainRegistry{}, fmt.Errorf("%w: chains.%s.addresses.%s = %q", domain.ErrInvalidAddress, key, name, addr)
			}
			chain.Addresses[name] = common.HexToAddress(addr)
		}

		chains = append(chains, chain)
	}

	return config.NewChainRegistry(chains...), nil
}
