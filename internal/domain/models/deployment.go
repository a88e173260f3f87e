package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Deployment is a persisted record mapping a logical contract name to its
// deployed address for a given chain and tag.
type Deployment struct {
	// Core identification
	ID      string `json:"id"`  // e.g., "default/31337/Vault"
	Tag     string `json:"tag"` // e.g., "default", "local"
	ChainID uint64 `json:"chainId"`
	Name    string `json:"name"`    // e.g., "Vault"
	Address string `json:"address"` // Contract address

	// Provenance
	Artifact        string `json:"artifact"`                  // e.g., "Vault" or "src/Vault.sol:Vault"
	TxHash          string `json:"txHash,omitempty"`          // Deploy transaction
	ConstructorArgs string `json:"constructorArgs,omitempty"` // Hex encoded

	// Metadata is an opaque blob supplied by the build
	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// DeploymentID builds the canonical identifier of a deployment entry
func DeploymentID(tag string, chainID uint64, name string) string {
	return fmt.Sprintf("%s/%d/%s", tag, chainID, name)
}

// Key returns the (chain, tag, name) triple the entry is looked up by
func (d *Deployment) Key() string {
	return DeploymentID(d.Tag, d.ChainID, d.Name)
}
