package config

import (
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Context settings
	Tag     string   // Deployment environment partition
	Network *Network // nil if not specified

	// Execution settings
	Debug          bool
	NonInteractive bool
	Timeout        time.Duration

	// Resolved configurations
	Project *ProjectConfig
	Chains  ChainRegistry
}

// Network represents network configuration
type Network struct {
	ChainID    uint64 `json:"chainId"`
	Name       string `json:"name"`
	RPCURL     string `json:"rpcUrl"`
	PrivateKey string `json:"-"`
}

// ActiveChain returns the chain configuration of the selected network
func (c *RuntimeConfig) ActiveChain() (ChainConfig, bool) {
	if c.Network == nil {
		return ChainConfig{}, false
	}
	return c.Chains.Lookup(c.Network.ChainID)
}
