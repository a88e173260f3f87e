package usecase_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/bindings"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

const testChainID = 31337

var (
	multicallAddr = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")
	wethAddr      = common.HexToAddress("0x4200000000000000000000000000000000000006")
	registryAddr  = common.HexToAddress("0x00000000000000000000000000000000000000AA")

	selWhitelist     = selector("whitelist(address)")
	selIsWhitelisted = selector("isWhitelisted(address)")
	selFail          = selector("fail()")
)

func selector(sig string) string {
	return string(crypto.Keccak256([]byte(sig))[:4])
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.RuntimeConfig {
	return &config.RuntimeConfig{
		Tag:     "default",
		Network: &config.Network{ChainID: testChainID, Name: "anvil"},
		Chains: config.NewChainRegistry(config.ChainConfig{
			ChainID:   testChainID,
			Name:      "anvil",
			Multicall: multicallAddr,
			Addresses: map[string]common.Address{"WETH": wethAddr, "Registry": registryAddr},
		}),
	}
}

// memoryRepo is an in-memory DeploymentRepository
type memoryRepo struct {
	mu          sync.Mutex
	deployments map[string]*models.Deployment
	saves       int
}

func newMemoryRepo(deployments ...*models.Deployment) *memoryRepo {
	r := &memoryRepo{deployments: make(map[string]*models.Deployment)}
	for _, d := range deployments {
		if d.ID == "" {
			d.ID = d.Key()
		}
		r.deployments[d.ID] = d
	}
	return r
}

func (r *memoryRepo) GetDeployment(_ context.Context, id string) (*models.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (r *memoryRepo) ListDeployments(_ context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Deployment
	for _, d := range r.deployments {
		if filter.Tag != "" && d.Tag != filter.Tag {
			continue
		}
		if filter.ChainID != 0 && d.ChainID != filter.ChainID {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(filter.Name)) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *memoryRepo) SaveDeployment(_ context.Context, d *models.Deployment, overwrite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.deployments[d.ID]; exists && !overwrite {
		return fmt.Errorf("deployment %s: %w", d.ID, domain.ErrAlreadyExists)
	}
	r.deployments[d.ID] = d
	r.saves++
	return nil
}

func (r *memoryRepo) DeleteDeployment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deployments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.deployments, id)
	return nil
}

// memoryArtifacts serves artifacts from a map
type memoryArtifacts map[string]*models.Artifact

func (m memoryArtifacts) GetArtifact(_ context.Context, ref string) (*models.Artifact, error) {
	a, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, domain.ErrArtifactNotFound)
	}
	return a, nil
}

func artifact(t *testing.T, name string, constructorInputs string) *models.Artifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(fmt.Sprintf(
		`[{"type":"constructor","stateMutability":"nonpayable","inputs":[%s]}]`, constructorInputs)))
	require.NoError(t, err)
	return &models.Artifact{
		Name:     name,
		ABI:      parsed,
		Bytecode: append([]byte{0x60, 0x80}, []byte(name)...),
	}
}

// protocolArtifacts mirrors a small protocol: Authorizer <- Vault <- Pool
func protocolArtifacts(t *testing.T) memoryArtifacts {
	return memoryArtifacts{
		"Authorizer": artifact(t, "Authorizer", `{"name":"admin","type":"address"}`),
		"Vault": artifact(t, "Vault",
			`{"name":"authorizer","type":"address"},{"name":"weth","type":"address"},{"name":"window","type":"uint256"}`),
		"Pool":   artifact(t, "Pool", `{"name":"vault","type":"address"},{"name":"name","type":"string"}`),
		"Oracle": artifact(t, "Oracle", ``),
	}
}

// fakeChain deploys to sequential addresses and emulates a Multicall3
// contract in front of a whitelist registry.
type fakeChain struct {
	mu sync.Mutex

	deploys     [][]byte
	sends       int
	nextAddress int64
	revertAt    int // 1-based deploy index that reverts, 0 for none

	whitelisted map[common.Address]bool
	aggregate3  abi.Method
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	parsed, err := bindings.Multicall3MetaData.ParseABI()
	require.NoError(t, err)
	return &fakeChain{
		nextAddress: 0x1000,
		whitelisted: make(map[common.Address]bool),
		aggregate3:  parsed.Methods["aggregate3"],
	}
}

func (c *fakeChain) Deploy(_ context.Context, initCode []byte) (*usecase.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deploys = append(c.deploys, initCode)
	n := len(c.deploys)
	tx := &usecase.TxResult{Hash: common.BigToHash(big.NewInt(int64(n))), Status: 1}
	if n == c.revertAt {
		tx.Status = 0
		return tx, nil
	}
	c.nextAddress++
	tx.ContractAddress = common.BigToAddress(big.NewInt(c.nextAddress))
	return tx, nil
}

func (c *fakeChain) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execute(to, data, false)
}

func (c *fakeChain) SendTransaction(_ context.Context, to common.Address, data []byte) (*usecase.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	tx := &usecase.TxResult{Hash: common.BigToHash(big.NewInt(int64(1000 + c.sends))), Status: 1, BlockNumber: uint64(c.sends)}
	if _, err := c.execute(to, data, true); err != nil {
		tx.Status = 0
	}
	return tx, nil
}

func (c *fakeChain) CodeAt(_ context.Context, address common.Address) ([]byte, error) {
	if address == registryAddr {
		return []byte{0x60}, nil
	}
	return nil, nil
}

func (c *fakeChain) deployCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deploys)
}

func (c *fakeChain) execute(to common.Address, data []byte, commit bool) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	if to == multicallAddr && bytes.Equal(data[:4], c.aggregate3.ID) {
		return c.executeBatch(data[4:], commit)
	}
	return c.executeCall(to, data, commit)
}

func (c *fakeChain) executeCall(to common.Address, data []byte, commit bool) ([]byte, error) {
	if to != registryAddr {
		return nil, domain.RevertError{Reason: "no code at target"}
	}
	switch string(data[:4]) {
	case selWhitelist:
		if commit {
			c.whitelisted[common.BytesToAddress(data[4:36])] = true
		}
		return nil, nil
	case selIsWhitelisted:
		if c.whitelisted[common.BytesToAddress(data[4:36])] {
			return common.LeftPadBytes([]byte{1}, 32), nil
		}
		return make([]byte, 32), nil
	case selFail:
		return nil, domain.RevertError{Reason: "always fails"}
	}
	return nil, domain.RevertError{Reason: "unknown selector"}
}

func (c *fakeChain) executeBatch(args []byte, commit bool) ([]byte, error) {
	out, err := c.aggregate3.Inputs.Unpack(args)
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(out[0], new([]bindings.Multicall3Call3)).(*[]bindings.Multicall3Call3)

	// Stage writes so a revert leaves no trace
	staged := make(map[common.Address]bool)
	results := make([]bindings.Multicall3Result, len(calls))
	for i, call := range calls {
		ret, err := c.executeCall(call.Target, call.CallData, false)
		if err != nil {
			if !call.AllowFailure {
				return nil, domain.RevertError{Reason: "Multicall3: call failed"}
			}
			continue
		}
		if string(call.CallData[:4]) == selWhitelist {
			staged[common.BytesToAddress(call.CallData[4:36])] = true
		}
		results[i] = bindings.Multicall3Result{Success: true, ReturnData: ret}
	}

	if commit {
		for addr := range staged {
			c.whitelisted[addr] = true
		}
	}
	return c.aggregate3.Outputs.Pack(results)
}

// recordingProgress collects progress events
type recordingProgress struct {
	usecase.NopProgress
	mu     sync.Mutex
	stages []string
}

func (p *recordingProgress) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, event.Stage)
}
