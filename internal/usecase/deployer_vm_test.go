package usecase_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

var adminAddr = common.HexToAddress("0x000000000000000000000000000000000000ad01")

func newVM(t *testing.T, repo *memoryRepo, chain *fakeChain, overwrite bool) *usecase.DeployerVM {
	t.Helper()
	return usecase.NewDeployerVM(repo, protocolArtifacts(t), chain, &recordingProgress{}, discardLogger(), usecase.VMOptions{
		ChainID:   testChainID,
		Tag:       "default",
		Overwrite: overwrite,
	})
}

func authorizerBuild() *models.PendingBuild {
	return &models.PendingBuild{Name: "Authorizer", Artifact: "Authorizer", Args: []any{adminAddr.Hex()}}
}

func vaultBuild() *models.PendingBuild {
	return &models.PendingBuild{
		Name:     "Vault",
		Artifact: "Vault",
		Args:     []any{nil, nil, 7776000},
		Links: []models.ArgLink{
			{Position: 0, Dependency: "Authorizer"},
			{Position: 1, Dependency: "WETH"},
		},
	}
}

func poolBuild() *models.PendingBuild {
	return &models.PendingBuild{
		Name:     "Pool",
		Artifact: "Pool",
		Args:     []any{nil, "LBP"},
		Links:    []models.ArgLink{{Position: 0, Dependency: "Vault"}},
	}
}

// constructorArgs decodes the arguments appended to a deploy's init code
func constructorArgs(t *testing.T, art *models.Artifact, initCode []byte) []any {
	t.Helper()
	require.True(t, len(initCode) >= len(art.Bytecode))
	values, err := art.ABI.Constructor.Inputs.Unpack(initCode[len(art.Bytecode):])
	require.NoError(t, err)
	return values
}

func persisted(t *testing.T, repo *memoryRepo, name string) *models.Deployment {
	t.Helper()
	dep, err := repo.GetDeployment(context.Background(), models.DeploymentID("default", testChainID, name))
	require.NoError(t, err)
	return dep
}

func TestDeployerVM_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("deploys in dependency order and substitutes addresses", func(t *testing.T) {
		repo := newMemoryRepo()
		chain := newFakeChain(t)
		vm := newVM(t, repo, chain, false)
		vm.Provide("WETH", wethAddr)

		// Added in reverse order on purpose
		require.NoError(t, vm.Add(poolBuild()))
		require.NoError(t, vm.Add(vaultBuild()))
		require.NoError(t, vm.Add(authorizerBuild()))

		result, err := vm.Execute(ctx)
		require.NoError(t, err)

		names := make([]string, 0, len(result.Deployed))
		for _, d := range result.Deployed {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"Authorizer", "Vault", "Pool"}, names)
		require.Equal(t, 3, chain.deployCount())

		artifacts := protocolArtifacts(t)
		authorizer := persisted(t, repo, "Authorizer")
		vault := persisted(t, repo, "Vault")
		pool := persisted(t, repo, "Pool")

		vaultArgs := constructorArgs(t, artifacts["Vault"], chain.deploys[1])
		assert.Equal(t, common.HexToAddress(authorizer.Address), vaultArgs[0])
		assert.Equal(t, wethAddr, vaultArgs[1])
		assert.Equal(t, big.NewInt(7776000), vaultArgs[2])

		poolArgs := constructorArgs(t, artifacts["Pool"], chain.deploys[2])
		assert.Equal(t, common.HexToAddress(vault.Address), poolArgs[0])
		assert.Equal(t, "LBP", poolArgs[1])

		assert.Equal(t, "default/31337/Pool", pool.ID)
		assert.NotEmpty(t, pool.TxHash)
		assert.NotEmpty(t, pool.ConstructorArgs)

		addr, ok := vm.Address("Pool")
		require.True(t, ok)
		assert.Equal(t, common.HexToAddress(pool.Address), addr)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		vm := newVM(t, newMemoryRepo(), newFakeChain(t), false)
		for _, b := range []*models.PendingBuild{
			{Name: "D", Artifact: "Oracle", DependsOn: []string{"C"}},
			{Name: "A", Artifact: "Oracle"},
			{Name: "B", Artifact: "Oracle"},
			{Name: "C", Artifact: "Oracle"},
			{Name: "E", Artifact: "Oracle", DependsOn: []string{"A"}},
		} {
			require.NoError(t, vm.Add(b))
		}

		plan, err := vm.Plan(ctx)
		require.NoError(t, err)

		var order []string
		for _, s := range plan.Steps {
			order = append(order, s.Build.Name)
		}
		assert.Equal(t, []string{"A", "B", "C", "D", "E"}, order)
	})

	t.Run("cycle fails before any deploy", func(t *testing.T) {
		chain := newFakeChain(t)
		vm := newVM(t, newMemoryRepo(), chain, false)
		require.NoError(t, vm.Add(authorizerBuild()))
		require.NoError(t, vm.Add(&models.PendingBuild{Name: "A", Artifact: "Oracle", DependsOn: []string{"B"}}))
		require.NoError(t, vm.Add(&models.PendingBuild{Name: "B", Artifact: "Oracle", DependsOn: []string{"A"}}))

		_, err := vm.Execute(ctx)
		var cycle domain.CyclicDependencyError
		require.True(t, errors.As(err, &cycle), "got %v", err)
		assert.Equal(t, []string{"A", "B"}, cycle.Names)
		assert.Equal(t, []string{"A", "B", "A"}, cycle.Path)
		assert.Contains(t, err.Error(), "A -> B -> A")
		assert.Equal(t, 0, chain.deployCount())
	})

	t.Run("missing dependency fails before any deploy", func(t *testing.T) {
		chain := newFakeChain(t)
		vm := newVM(t, newMemoryRepo(), chain, false)
		require.NoError(t, vm.Add(authorizerBuild()))
		require.NoError(t, vm.Add(poolBuild()))

		_, err := vm.Execute(ctx)
		var missing domain.MissingDependencyError
		require.True(t, errors.As(err, &missing), "got %v", err)
		assert.Equal(t, "Pool", missing.Build)
		assert.Equal(t, "Vault", missing.Dependency)
		assert.Equal(t, "default", missing.Tag)
		assert.Equal(t, 0, chain.deployCount())
	})

	t.Run("optional link falls back to zero address", func(t *testing.T) {
		chain := newFakeChain(t)
		vm := newVM(t, newMemoryRepo(), chain, false)
		require.NoError(t, vm.Add(&models.PendingBuild{
			Name:     "Pool",
			Artifact: "Pool",
			Args:     []any{nil, "LBP"},
			Links:    []models.ArgLink{{Position: 0, Dependency: "Vault", Optional: true}},
		}))

		plan, err := vm.Plan(ctx)
		require.NoError(t, err)
		assert.Equal(t, usecase.SourceMissing, plan.External["Vault"].Source)

		_, err = vm.Execute(ctx)
		require.NoError(t, err)
		args := constructorArgs(t, protocolArtifacts(t)["Pool"], chain.deploys[0])
		assert.Equal(t, common.Address{}, args[0])
	})

	t.Run("optional and required links to the same missing name fail before any deploy", func(t *testing.T) {
		tests := []struct {
			name     string
			required *models.PendingBuild
		}{
			{
				name: "required link",
				required: &models.PendingBuild{
					Name:     "Authorizer",
					Artifact: "Authorizer",
					Args:     []any{nil},
					Links:    []models.ArgLink{{Position: 0, Dependency: "Vault"}},
				},
			},
			{
				name:     "ordering dependency",
				required: &models.PendingBuild{Name: "Oracle", Artifact: "Oracle", DependsOn: []string{"Vault"}},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				chain := newFakeChain(t)
				vm := newVM(t, newMemoryRepo(), chain, false)
				require.NoError(t, vm.Add(&models.PendingBuild{
					Name:     "Pool",
					Artifact: "Pool",
					Args:     []any{nil, "LBP"},
					Links:    []models.ArgLink{{Position: 0, Dependency: "Vault", Optional: true}},
				}))
				require.NoError(t, vm.Add(tt.required))

				_, err := vm.Plan(ctx)
				var missing domain.MissingDependencyError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tt.required.Name, missing.Build)
				assert.Equal(t, "Vault", missing.Dependency)

				_, err = vm.Execute(ctx)
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, 0, chain.deployCount())
			})
		}
	})

	t.Run("dependency persisted under the tag is used", func(t *testing.T) {
		stored := common.HexToAddress("0x00000000000000000000000000000000000A0A0A")
		repo := newMemoryRepo(&models.Deployment{Tag: "default", ChainID: testChainID, Name: "Vault", Address: stored.Hex()})
		chain := newFakeChain(t)
		vm := newVM(t, repo, chain, false)
		require.NoError(t, vm.Add(poolBuild()))

		result, err := vm.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, usecase.SourceStore, result.Plan.External["Vault"].Source)
		args := constructorArgs(t, protocolArtifacts(t)["Pool"], chain.deploys[0])
		assert.Equal(t, stored, args[0])
	})

	t.Run("loaded entries are not redeployed", func(t *testing.T) {
		repo := newMemoryRepo()
		chain := newFakeChain(t)
		first := newVM(t, repo, chain, false)
		first.Provide("WETH", wethAddr)
		for _, b := range []*models.PendingBuild{authorizerBuild(), vaultBuild(), poolBuild()} {
			require.NoError(t, first.Add(b))
		}
		_, err := first.Execute(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, chain.deployCount())

		second := newVM(t, repo, chain, false)
		second.Provide("WETH", wethAddr)
		loaded, err := second.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, loaded, 3)
		for _, b := range []*models.PendingBuild{authorizerBuild(), vaultBuild(), poolBuild()} {
			require.NoError(t, second.Add(b))
		}

		result, err := second.Execute(ctx)
		require.NoError(t, err)
		assert.Empty(t, result.Deployed)
		assert.Equal(t, []string{"Authorizer", "Vault", "Pool"}, result.Skipped)
		assert.Equal(t, 3, chain.deployCount())
	})

	t.Run("existing entry without load is a precondition error", func(t *testing.T) {
		repo := newMemoryRepo(&models.Deployment{Tag: "default", ChainID: testChainID, Name: "Authorizer", Address: adminAddr.Hex()})
		chain := newFakeChain(t)
		vm := newVM(t, repo, chain, false)
		require.NoError(t, vm.Add(authorizerBuild()))

		_, err := vm.Execute(ctx)
		var precondition domain.PreconditionError
		require.True(t, errors.As(err, &precondition), "got %v", err)
		assert.Equal(t, 0, chain.deployCount())

		overwriting := newVM(t, repo, chain, true)
		require.NoError(t, overwriting.Add(authorizerBuild()))
		_, err = overwriting.Execute(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, adminAddr.Hex(), persisted(t, repo, "Authorizer").Address)
	})

	t.Run("revert aborts the remaining plan", func(t *testing.T) {
		repo := newMemoryRepo()
		chain := newFakeChain(t)
		chain.revertAt = 2
		vm := newVM(t, repo, chain, false)
		vm.Provide("WETH", wethAddr)
		for _, b := range []*models.PendingBuild{authorizerBuild(), vaultBuild(), poolBuild()} {
			require.NoError(t, vm.Add(b))
		}

		result, err := vm.Execute(ctx)
		var revert domain.RevertError
		require.True(t, errors.As(err, &revert), "got %v", err)
		assert.Equal(t, "deploy Vault", revert.Operation)
		assert.Equal(t, 2, chain.deployCount())

		require.NotNil(t, result)
		require.Len(t, result.Deployed, 1)
		assert.Equal(t, "Authorizer", result.Deployed[0].Name)
		persisted(t, repo, "Authorizer")
		_, err = repo.GetDeployment(ctx, models.DeploymentID("default", testChainID, "Vault"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("constructor arguments are validated against the ABI", func(t *testing.T) {
		chain := newFakeChain(t)
		vm := newVM(t, newMemoryRepo(), chain, false)
		require.NoError(t, vm.Add(&models.PendingBuild{Name: "Authorizer", Artifact: "Authorizer", Args: []any{"nope"}}))

		_, err := vm.Execute(ctx)
		assert.ErrorIs(t, err, domain.ErrInvalidAddress)
		assert.Equal(t, 0, chain.deployCount())
	})
}

func TestDeployerVM_Add(t *testing.T) {
	tests := []struct {
		name    string
		build   *models.PendingBuild
		wantErr string
	}{
		{
			name:    "missing name",
			build:   &models.PendingBuild{Artifact: "Oracle"},
			wantErr: "must have a name",
		},
		{
			name:    "position out of range",
			build:   &models.PendingBuild{Name: "Pool", Artifact: "Pool", Args: []any{nil}, Links: []models.ArgLink{{Position: 1, Dependency: "Vault"}}},
			wantErr: "out of range",
		},
		{
			name: "position linked twice",
			build: &models.PendingBuild{Name: "Pool", Artifact: "Pool", Args: []any{nil, nil}, Links: []models.ArgLink{
				{Position: 0, Dependency: "Vault"},
				{Position: 0, Dependency: "Router"},
			}},
			wantErr: "more than once",
		},
		{
			name:    "self dependency",
			build:   &models.PendingBuild{Name: "Pool", Artifact: "Pool", DependsOn: []string{"Pool"}},
			wantErr: "cannot depend on itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVM(t, newMemoryRepo(), newFakeChain(t), false)
			assert.ErrorContains(t, vm.Add(tt.build), tt.wantErr)
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		vm := newVM(t, newMemoryRepo(), newFakeChain(t), false)
		require.NoError(t, vm.Add(authorizerBuild()))
		assert.ErrorIs(t, vm.Add(authorizerBuild()), domain.ErrAlreadyExists)
	})
}

func TestDeployerVM_Load(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(
		&models.Deployment{Tag: "default", ChainID: testChainID, Name: "Vault", Address: "0x0000000000000000000000000000000000000001"},
		&models.Deployment{Tag: "staging", ChainID: testChainID, Name: "Pool", Address: "0x0000000000000000000000000000000000000002"},
	)
	vm := newVM(t, repo, newFakeChain(t), false)

	_, err := vm.Load(ctx, "Pool")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	loaded, err := vm.Load(ctx, "Vault")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	addr, ok := vm.Address("Vault")
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000001"), addr)

	_, err = vm.Resolve(ctx, "Pool")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
