package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
)

const projectToml = `
[networks.anvil]
rpc_url = "${DVM_TEST_RPC}"
private_key = "${DVM_TEST_KEY}"
chain_id = 31337

[networks.sepolia]
rpc_url = "https://sepolia.example"

[chains.31337]
name = "anvil"
multicall = "0xcA11bde05977b3631167028862bE2a173976CA11"

[chains.31337.addresses]
WETH = "0x4200000000000000000000000000000000000006"

[artifacts]
paths = ["out"]
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestLoadProjectConfig(t *testing.T) {
	t.Run("expands env and .env values", func(t *testing.T) {
		t.Setenv("DVM_TEST_RPC", "http://localhost:8545")
		t.Cleanup(func() { os.Unsetenv("DVM_TEST_KEY") })

		root := writeProject(t, map[string]string{
			ProjectFile: projectToml,
			".env":      "DVM_TEST_KEY=0xabc\nDVM_TEST_RPC=http://ignored\n",
		})

		project, err := LoadProjectConfig(root)
		require.NoError(t, err)

		anvil := project.Networks["anvil"]
		assert.Equal(t, "http://localhost:8545", anvil.RPCURL, "process env wins over .env")
		assert.Equal(t, "0xabc", anvil.PrivateKey)
		assert.Equal(t, uint64(31337), anvil.ChainID)
		assert.Equal(t, []string{"out"}, project.Artifacts.Paths)
	})

	t.Run("missing file is empty config", func(t *testing.T) {
		project, err := LoadProjectConfig(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, project.Networks)
	})

	t.Run("invalid toml", func(t *testing.T) {
		root := writeProject(t, map[string]string{ProjectFile: "[networks"})
		_, err := LoadProjectConfig(root)
		assert.Error(t, err)
	})
}

func TestBuildChainRegistry(t *testing.T) {
	tests := []struct {
		name    string
		chains  map[string]config.ChainFile
		wantErr error
	}{
		{
			name: "valid",
			chains: map[string]config.ChainFile{
				"1":     {Name: "mainnet", Addresses: map[string]string{"WETH": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}},
				"31337": {Name: "anvil", Multicall: "0xcA11bde05977b3631167028862bE2a173976CA11"},
			},
		},
		{
			name:    "bad chain id",
			chains:  map[string]config.ChainFile{"mainnet": {}},
			wantErr: domain.ErrInvalidChainID,
		},
		{
			name:    "bad multicall",
			chains:  map[string]config.ChainFile{"1": {Multicall: "0x1234"}},
			wantErr: domain.ErrInvalidAddress,
		},
		{
			name:    "bad address",
			chains:  map[string]config.ChainFile{"1": {Addresses: map[string]string{"WETH": "weth"}}},
			wantErr: domain.ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := BuildChainRegistry(&config.ProjectConfig{Chains: tt.chains})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []uint64{1, 31337}, registry.ChainIDs())

			anvil, ok := registry.Lookup(31337)
			require.True(t, ok)
			assert.True(t, anvil.HasMulticall())

			mainnet, ok := registry.Lookup(1)
			require.True(t, ok)
			assert.False(t, mainnet.HasMulticall())
			assert.Equal(t, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), mainnet.Addresses["WETH"])
		})
	}
}

func TestNetworkResolver(t *testing.T) {
	ctx := context.Background()
	project := &config.ProjectConfig{Networks: map[string]config.NetworkConfig{
		"anvil":   {RPCURL: "http://localhost:8545", ChainID: 31337, PrivateKey: "0xabc"},
		"sepolia": {RPCURL: "https://sepolia.example"},
		"broken":  {RPCURL: "https://broken.example"},
	}}

	t.Run("configured chain id does not dial", func(t *testing.T) {
		resolver := NewNetworkResolver(t.TempDir(), project, func(context.Context, string) (uint64, error) {
			t.Fatal("unexpected fetch")
			return 0, nil
		})
		network, err := resolver.ResolveNetwork(ctx, "anvil")
		require.NoError(t, err)
		assert.Equal(t, uint64(31337), network.ChainID)
		assert.Equal(t, "0xabc", network.PrivateKey)
	})

	t.Run("fetched chain id is cached on disk", func(t *testing.T) {
		dataDir := t.TempDir()
		calls := 0
		fetch := func(_ context.Context, url string) (uint64, error) {
			calls++
			if url == "https://broken.example" {
				return 0, errors.New("connection refused")
			}
			return 11155111, nil
		}

		resolver := NewNetworkResolver(dataDir, project, fetch)
		network, err := resolver.ResolveNetwork(ctx, "sepolia")
		require.NoError(t, err)
		assert.Equal(t, uint64(11155111), network.ChainID)

		_, err = resolver.ResolveNetwork(ctx, "broken")
		assert.ErrorContains(t, err, "connection refused")

		reloaded := NewNetworkResolver(dataDir, project, fetch)
		network, err = reloaded.ResolveNetwork(ctx, "sepolia")
		require.NoError(t, err)
		assert.Equal(t, uint64(11155111), network.ChainID)
		assert.Equal(t, 2, calls)
		assert.FileExists(t, filepath.Join(dataDir, "cache", "chainIds.json"))
	})

	t.Run("unknown network", func(t *testing.T) {
		resolver := NewNetworkResolver(t.TempDir(), project, nil)
		_, err := resolver.ResolveNetwork(ctx, "mainnet")
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("networks are sorted", func(t *testing.T) {
		resolver := NewNetworkResolver(t.TempDir(), project, nil)
		assert.Equal(t, []string{"anvil", "broken", "sepolia"}, resolver.GetNetworks(ctx))
	})
}

func TestProvider(t *testing.T) {
	t.Setenv("DVM_TEST_RPC", "http://localhost:8545")
	t.Setenv("DVM_TEST_KEY", "0xabc")
	root := writeProject(t, map[string]string{
		ProjectFile:              projectToml,
		".dvm/config.local.json": `{"tag": "staging"}`,
	})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringP("network", "n", "", "")
	cmd.Flags().StringP("tag", "t", "", "")
	cmd.Flags().Bool("non-interactive", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--network", "anvil", "--non-interactive"}))

	v := SetupViper(root, cmd)
	cfg, err := Provider(v)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DataDirName), cfg.DataDir)
	assert.Equal(t, "staging", cfg.Tag, "local config overrides the default tag")
	assert.True(t, cfg.NonInteractive)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)

	require.NotNil(t, cfg.Network)
	assert.Equal(t, "anvil", cfg.Network.Name)
	chain, ok := cfg.ActiveChain()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x4200000000000000000000000000000000000006"), chain.Addresses["WETH"])
}
