package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidChainID is returned when a chain ID is invalid
	ErrInvalidChainID = errors.New("invalid chain ID")

	// ErrNoMulticall is returned when the active chain has no multicall contract configured
	ErrNoMulticall = errors.New("no multicall contract configured for chain")

	// ErrArtifactNotFound is returned when a contract artifact can't be found
	ErrArtifactNotFound = errors.New("artifact not found")
)

// MissingDependencyError is returned during planning when a build depends on a
// name that is neither pending, provided, loaded nor persisted under the active tag.
type MissingDependencyError struct {
	Build      string
	Dependency string
	Tag        string
}

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: %s depends on %s, which is not pending and has no deployment under tag %q",
		e.Build, e.Dependency, e.Tag)
}

// CyclicDependencyError is returned when the pending builds contain a cycle.
// Names lists every build that could not be ordered, Path one concrete cycle.
type CyclicDependencyError struct {
	Names []string
	Path  []string
}

func (e CyclicDependencyError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("circular dependency detected involving: %s", strings.Join(e.Names, ", "))
}

// RevertError is returned when a deploy or batch transaction reverts on-chain
// (or would revert, when caught during simulation).
type RevertError struct {
	Operation string
	TxHash    string
	Reason    string
}

func (e RevertError) Error() string {
	msg := fmt.Sprintf("%s reverted", e.Operation)
	if e.TxHash != "" {
		msg += fmt.Sprintf(" (tx %s)", e.TxHash)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// PreconditionError reports an operation invoked in a state that can't satisfy it.
type PreconditionError struct {
	Operation string
	Reason    string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
}
