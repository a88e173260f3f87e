package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/dvm/internal/adapters/progress"
	"github.com/trebuchet-org/dvm/internal/domain"
)

const testProject = `
[networks.anvil]
rpc_url = "http://127.0.0.1:8545"
chain_id = 31337

[chains.31337]
name = "anvil"
multicall = "0xcA11bde05977b3631167028862bE2a173976CA11"

[chains.31337.addresses]
WETH = "0x4200000000000000000000000000000000000006"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupProject creates a project with two artifacts and chdirs into it
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dvm.toml"), testProject)
	for _, name := range []string{"Authorizer", "Vault"} {
		writeFile(t, filepath.Join(root, "out", name+".sol", name+".json"), `{
			"abi": [{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"a","type":"address"}]}],
			"bytecode": {"object": "0x6080"},
			"metadata": {"settings": {"compilationTarget": {"src/`+name+`.sol": "`+name+`"}}}
		}`)
	}
	t.Chdir(root)
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]string)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = cmd.GroupID
	}
	assert.Equal(t, map[string]string{
		"deploy":    "main",
		"plan":      "main",
		"configure": "main",
		"list":      "main",
		"show":      "main",
		"networks":  "management",
		"reset":     "management",
		"version":   "",
	}, names)

	for _, flag := range []string{"network", "tag", "debug", "non-interactive"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, "default", root.PersistentFlags().Lookup("tag").DefValue)
}

func TestProgressSink(t *testing.T) {
	tests := []struct {
		name   string
		cmd    *cobra.Command
		isNoop bool
	}{
		{name: "deploy", cmd: NewDeployCmd()},
		{name: "plan", cmd: NewPlanCmd()},
		{name: "configure", cmd: NewConfigureCmd()},
		{name: "list", cmd: NewListCmd(), isNoop: true},
		{name: "networks", cmd: NewNetworksCmd(), isNoop: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := progressSink(tt.cmd)
			if tt.isNoop {
				assert.IsType(t, &progress.NopSink{}, sink)
			} else {
				assert.IsType(t, &progress.DeployProgress{}, sink)
			}
		})
	}
}

func TestComposeFlags(t *testing.T) {
	flags := &composeFlags{load: true, skipDeploy: true, selectAll: true}
	params := flags.params("protocol.yaml")

	assert.Equal(t, "protocol.yaml", params.ConfigPath)
	assert.True(t, params.Load)
	assert.True(t, params.SkipDeploy)
	assert.True(t, params.Select)
	assert.False(t, params.DryRun)
	assert.False(t, params.Overwrite)
}

func TestPlanCommand(t *testing.T) {
	t.Run("prints the plan in dependency order", func(t *testing.T) {
		root := setupProject(t)
		writeFile(t, filepath.Join(root, "protocol.yaml"), `
group: Protocol
contracts:
  - name: Vault
    args: ["@Authorizer"]
  - name: Authorizer
    args: ["@WETH"]
`)

		stdout, stderr, err := execute(t, "plan", "protocol.yaml", "--network", "anvil")
		require.NoError(t, err)

		assert.Contains(t, stdout, "Dry run: nothing was sent for Protocol")
		assert.Contains(t, stderr, "chain 31337, tag default")
		assert.Less(t, bytes.Index([]byte(stderr), []byte("Authorizer")), bytes.Index([]byte(stderr), []byte("Vault")))
		assert.Contains(t, stderr, "WETH")
	})

	t.Run("rejects cycles", func(t *testing.T) {
		root := setupProject(t)
		writeFile(t, filepath.Join(root, "cycle.yaml"), `
contracts:
  - name: Vault
    args: ["@Authorizer"]
  - name: Authorizer
    args: ["@Vault"]
`)

		_, _, err := execute(t, "plan", "cycle.yaml", "--network", "anvil")
		var cyclic domain.CyclicDependencyError
		require.ErrorAs(t, err, &cyclic)
		assert.ElementsMatch(t, []string{"Authorizer", "Vault"}, cyclic.Names)
	})

	t.Run("requires a network", func(t *testing.T) {
		root := setupProject(t)
		writeFile(t, filepath.Join(root, "protocol.yaml"), "contracts:\n  - name: Authorizer\n")

		_, _, err := execute(t, "plan", "protocol.yaml")
		var precondition domain.PreconditionError
		require.ErrorAs(t, err, &precondition)
	})
}

func TestListAndResetCommands(t *testing.T) {
	setupProject(t)

	stdout, _, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No deployments found")

	stdout, _, err = execute(t, "reset", "--network", "anvil", "--non-interactive")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Nothing to reset")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dvm version dev")
}
