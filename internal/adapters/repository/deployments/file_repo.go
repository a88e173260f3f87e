package deployments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

const (
	DvmDir          = ".dvm"
	DeploymentsFile = "deployments.json"
	RegistryFile    = "registry.json"
)

// AddressRegistry is the simplified view written next to the deployments:
// chainID -> tag -> name -> address. Scripts outside dvm can read it.
type AddressRegistry map[uint64]map[string]map[string]string

// FileRepository stores the deployments in json files on the system.
// There is a single writer per project; the mutex only guards in-process use.
type FileRepository struct {
	dir         string
	mu          sync.RWMutex
	deployments map[string]*models.Deployment
	registry    AddressRegistry
}

// NewFileRepository creates a repository rooted at the configured data dir
func NewFileRepository(cfg *config.RuntimeConfig) (*FileRepository, error) {
	dir := cfg.DataDir
	if dir == "" {
		dir = filepath.Join(cfg.ProjectRoot, DvmDir)
	}
	return NewFileRepositoryAt(dir)
}

// NewFileRepositoryAt creates a repository storing its files in dir
func NewFileRepositoryAt(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	m := &FileRepository{
		dir:         dir,
		deployments: make(map[string]*models.Deployment),
		registry:    make(AddressRegistry),
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load deployments: %w", err)
	}

	return m, nil
}

// load reads the deployments file and rebuilds the address registry
func (m *FileRepository) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(m.dir, DeploymentsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &m.deployments); err != nil {
		return fmt.Errorf("invalid %s: %w", DeploymentsFile, err)
	}
	if m.deployments == nil {
		m.deployments = make(map[string]*models.Deployment)
	}

	m.rebuildRegistry()
	return nil
}

// save writes all files
func (m *FileRepository) save() error {
	if err := m.saveFile(DeploymentsFile, m.deployments); err != nil {
		return fmt.Errorf("failed to save deployments: %w", err)
	}
	if err := m.saveFile(RegistryFile, m.registry); err != nil {
		return fmt.Errorf("failed to save address registry: %w", err)
	}
	return nil
}

// saveFile saves data to a JSON file in the data directory
func (m *FileRepository) saveFile(filename string, v any) error {
	path := filepath.Join(m.dir, filename)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

func (m *FileRepository) rebuildRegistry() {
	m.registry = make(AddressRegistry)
	for _, dep := range m.deployments {
		m.addToRegistry(dep)
	}
}

func (m *FileRepository) addToRegistry(dep *models.Deployment) {
	if m.registry[dep.ChainID] == nil {
		m.registry[dep.ChainID] = make(map[string]map[string]string)
	}
	if m.registry[dep.ChainID][dep.Tag] == nil {
		m.registry[dep.ChainID][dep.Tag] = make(map[string]string)
	}
	m.registry[dep.ChainID][dep.Tag][dep.Name] = dep.Address
}

// GetDeployment retrieves a deployment by ID
func (m *FileRepository) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dep, exists := m.deployments[id]
	if !exists {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}

	// Clone to avoid mutations
	return clone(dep), nil
}

// ListDeployments retrieves deployments matching the filter
func (m *FileRepository) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := strings.ToLower(filter.Name)
	var result []*models.Deployment
	for _, dep := range m.deployments {
		if filter.Tag != "" && dep.Tag != filter.Tag {
			continue
		}
		if filter.ChainID != 0 && dep.ChainID != filter.ChainID {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(dep.Name), name) {
			continue
		}
		result = append(result, clone(dep))
	}

	slices.SortFunc(result, func(a, b *models.Deployment) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// SaveDeployment records a deployment. Entries are immutable unless
// overwrite is set.
func (m *FileRepository) SaveDeployment(ctx context.Context, deployment *models.Deployment, overwrite bool) error {
	if deployment.ID == "" {
		deployment.ID = deployment.Key()
	}
	if deployment.ID != deployment.Key() {
		return fmt.Errorf("deployment id %s does not match %s", deployment.ID, deployment.Key())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deployments[deployment.ID]; exists && !overwrite {
		return fmt.Errorf("deployment %s: %w", deployment.ID, domain.ErrAlreadyExists)
	}

	previous := m.deployments[deployment.ID]
	m.deployments[deployment.ID] = clone(deployment)
	m.addToRegistry(deployment)

	if err := m.save(); err != nil {
		if previous != nil {
			m.deployments[deployment.ID] = previous
		} else {
			delete(m.deployments, deployment.ID)
		}
		m.rebuildRegistry()
		return err
	}
	return nil
}

// DeleteDeployment removes a deployment
func (m *FileRepository) DeleteDeployment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deployments[id]; !exists {
		return fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}

	delete(m.deployments, id)
	m.rebuildRegistry()

	return m.save()
}

func clone(dep *models.Deployment) *models.Deployment {
	c := *dep
	if dep.Metadata != nil {
		c.Metadata = slices.Clone(dep.Metadata)
	}
	return &c
}
