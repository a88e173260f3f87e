package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// DefaultArtifactPaths are searched when dvm.toml lists none: Foundry's out/
// and Hardhat's artifacts/
var DefaultArtifactPaths = []string{"out", "artifacts"}

// artifactFile covers both Foundry and Hardhat artifact layouts
type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`

	// Hardhat
	ContractName string `json:"contractName"`
	SourceName   string `json:"sourceName"`

	// Foundry
	Metadata struct {
		Settings struct {
			CompilationTarget map[string]string `json:"compilationTarget"`
		} `json:"settings"`
	} `json:"metadata"`
}

// bytecode reads either {"object": "0x.."} or a plain "0x.." string
func (a *artifactFile) bytecode() (string, error) {
	if len(a.Bytecode) == 0 {
		return "", nil
	}
	var plain string
	if err := json.Unmarshal(a.Bytecode, &plain); err == nil {
		return plain, nil
	}
	var object struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(a.Bytecode, &object); err != nil {
		return "", err
	}
	return object.Object, nil
}

// entry is an indexed artifact file, parsed lazily
type entry struct {
	name   string
	source string
	path   string
	file   *artifactFile
}

// Repository discovers compiled contracts in the configured artifact
// directories and indexes them by name and by "source:Name"
type Repository struct {
	projectRoot string
	paths       []string
	log         *slog.Logger

	mu      sync.RWMutex
	byKey   map[string]*entry   // "src/Vault.sol:Vault"
	byName  map[string][]*entry // "Vault"
	parsed  map[string]*models.Artifact
	indexed bool
}

// NewRepository creates a new artifact repository
func NewRepository(cfg *config.RuntimeConfig, log *slog.Logger) *Repository {
	paths := DefaultArtifactPaths
	if cfg.Project != nil && len(cfg.Project.Artifacts.Paths) > 0 {
		paths = cfg.Project.Artifacts.Paths
	}
	return &Repository{
		projectRoot: cfg.ProjectRoot,
		paths:       paths,
		log:         log.With("component", "ArtifactRepository"),
		byKey:       make(map[string]*entry),
		byName:      make(map[string][]*entry),
		parsed:      make(map[string]*models.Artifact),
	}
}

// Index walks every artifact directory once
func (r *Repository) Index() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexed {
		return nil
	}

	for _, dir := range r.paths {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(r.projectRoot, dir)
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "build-info" {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
				return nil
			}
			return r.processArtifact(path)
		})
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", dir, err)
		}
	}

	r.indexed = true
	return nil
}

// processArtifact indexes one artifact file. Files that are not contract
// artifacts, or carry no bytecode, are skipped.
func (r *Repository) processArtifact(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil || len(file.ABI) == 0 {
		return nil
	}
	code, err := file.bytecode()
	if err != nil || code == "" || code == "0x" {
		return nil
	}

	name, source := file.ContractName, file.SourceName
	for src, contract := range file.Metadata.Settings.CompilationTarget {
		source, name = src, contract
		break
	}
	if name == "" {
		// out/Vault.sol/Vault.json
		name = strings.TrimSuffix(filepath.Base(path), ".json")
		source = filepath.Base(filepath.Dir(path))
	}

	relPath, _ := filepath.Rel(r.projectRoot, path)
	e := &entry{name: name, source: source, path: relPath, file: &file}

	key := fmt.Sprintf("%s:%s", source, name)
	if _, exists := r.byKey[key]; exists {
		return nil
	}
	r.byKey[key] = e
	r.byName[name] = append(r.byName[name], e)

	r.log.Debug("indexed artifact", "key", key, "path", relPath)
	return nil
}

// GetArtifact retrieves an artifact by contract name or "source:Name"
func (r *Repository) GetArtifact(ctx context.Context, ref string) (*models.Artifact, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%s", e.source, e.name)
	if artifact, ok := r.parsed[key]; ok {
		return artifact, nil
	}

	parsedABI, err := abi.JSON(bytes.NewReader(e.file.ABI))
	if err != nil {
		return nil, fmt.Errorf("artifact %s has an invalid abi: %w", key, err)
	}
	code, _ := e.file.bytecode()
	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("artifact %s has invalid bytecode (unlinked libraries?): %w", key, err)
	}

	artifact := &models.Artifact{
		Name:     e.name,
		Path:     e.path,
		ABI:      parsedABI,
		Bytecode: bytecode,
	}
	r.parsed[key] = artifact
	return artifact, nil
}

func (r *Repository) lookup(ref string) (*entry, error) {
	if strings.Contains(ref, ":") {
		if e, ok := r.byKey[ref]; ok {
			return e, nil
		}
		// Accept a path suffix, e.g. "Vault.sol:Vault"
		source, name, _ := strings.Cut(ref, ":")
		for _, e := range r.byName[name] {
			if strings.HasSuffix(e.source, source) {
				return e, nil
			}
		}
		return nil, fmt.Errorf("%s: %w", ref, domain.ErrArtifactNotFound)
	}

	candidates := r.byName[ref]
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%s: %w", ref, domain.ErrArtifactNotFound)
	case 1:
		return candidates[0], nil
	}

	keys := make([]string, len(candidates))
	for i, e := range candidates {
		keys[i] = fmt.Sprintf("%s:%s", e.source, e.name)
	}
	sort.Strings(keys)
	return nil, fmt.Errorf("artifact %s is ambiguous, use one of: %s", ref, strings.Join(keys, ", "))
}

// Names returns every indexed "source:Name" key in sorted order
func (r *Repository) Names() ([]string, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.byKey))
	for key := range r.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ usecase.ArtifactProvider = (*Repository)(nil)
