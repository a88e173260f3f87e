package models

import (
	"encoding/json"
)

// ArgLink declares that constructor argument Position is filled with the
// address of Dependency once it is known.
type ArgLink struct {
	Position   int    `json:"position" yaml:"position"`
	Dependency string `json:"dependency" yaml:"dependency"`
	// Optional allows falling back to the zero address when Dependency
	// can't be resolved.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// PendingBuild is a contract deployment request whose constructor arguments
// may still contain placeholders.
type PendingBuild struct {
	Name      string
	Artifact  string
	Args      []any
	Links     []ArgLink
	DependsOn []string // ordering-only dependencies
	Metadata  json.RawMessage
}

// Dependencies returns every name the build depends on, linked arguments first,
// in declaration order and without duplicates.
func (b *PendingBuild) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		deps = append(deps, name)
	}
	for _, link := range b.Links {
		add(link.Dependency)
	}
	for _, dep := range b.DependsOn {
		add(dep)
	}
	return deps
}

// IsOptional reports whether every reference to dep is an optional link.
// Ordering-only dependencies are never optional.
func (b *PendingBuild) IsOptional(dep string) bool {
	found := false
	for _, d := range b.DependsOn {
		if d == dep {
			return false
		}
	}
	for _, link := range b.Links {
		if link.Dependency != dep {
			continue
		}
		if !link.Optional {
			return false
		}
		found = true
	}
	return found
}
