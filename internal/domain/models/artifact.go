package models

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Artifact is a compiled contract: the factory the resolver deploys from
type Artifact struct {
	Name     string
	Path     string // file the artifact was read from
	ABI      abi.ABI
	Bytecode []byte
}
