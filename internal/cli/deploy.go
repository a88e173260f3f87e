package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/dvm/internal/cli/render"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

const composeExample = `Example compose file (protocol.yaml):
  group: Protocol
  contracts:
    - name: Authorizer
      args: ["?address:Admin address"]
    - name: Vault
      artifact: src/Vault.sol:Vault
      args: ["@Authorizer", "@WETH", 7776000]
    - name: Pool
      args: ["@Vault", "Balancer Pool"]
  configure:
    - name: whitelist-pool
      target: "@Registry"
      call: whitelist(address)
      args: ["@Pool"]
      skipIf:
        call: isWhitelisted(address)
        args: ["@Pool"]
        returns: [bool]
        equals: [true]

This deploys Authorizer → Vault → Pool and whitelists the pool once.`

// composeFlags are the flags shared by the commands that run a compose file
type composeFlags struct {
	load       bool
	overwrite  bool
	dryRun     bool
	skipDeploy bool
	selectAll  bool
}

func (f *composeFlags) params(path string) usecase.ComposeParams {
	return usecase.ComposeParams{
		ConfigPath: path,
		Load:       f.load,
		Overwrite:  f.overwrite,
		DryRun:     f.dryRun,
		SkipDeploy: f.skipDeploy,
		Select:     f.selectAll,
	}
}

func runCompose(cmd *cobra.Command, params usecase.ComposeParams) error {
	app, err := getApp(cmd)
	if err != nil {
		return err
	}

	result, err := app.ComposeDeployment.Execute(cmd.Context(), params)
	if err != nil {
		return err
	}

	render.NewPlanRenderer(cmd.OutOrStdout()).RenderComposeResult(result)
	return nil
}

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	flags := &composeFlags{}

	cmd := &cobra.Command{
		Use:   "deploy <compose-file>",
		Short: "Deploy contracts in dependency order and apply configuration",
		Long: `Deploy every contract of a compose file in dependency order, record the
resulting addresses under the active tag, then submit the configuration
calls that are not yet applied as one Multicall3 batch.

Arguments of the form @Name resolve to the address of another contract in
the file, an address from dvm.toml or a recorded deployment. @Name? falls
back to the zero address and ?type:Prompt asks the operator for a value.

` + composeExample,
		Example: `  # Deploy to a local anvil node
  dvm deploy protocol.yaml --network anvil

  # Reuse contracts recorded by an earlier run
  dvm deploy protocol.yaml --network sepolia --load

  # Show the plan without sending anything
  dvm deploy protocol.yaml --network sepolia --dry-run`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{progressAnnotation: "deploy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(cmd, flags.params(args[0]))
		},
	}

	cmd.Flags().BoolVar(&flags.load, "load", false, "Reuse contracts recorded under the active tag")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace recorded contracts with fresh deployments")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Resolve and print the plan without sending transactions")
	cmd.Flags().BoolVar(&flags.skipDeploy, "skip-deploy", false, "Only apply configuration (requires --load)")
	cmd.Flags().BoolVar(&flags.selectAll, "select", false, "Pick configuration calls interactively")

	return cmd
}

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "plan <compose-file>",
		Short: "Print the deployment order without sending transactions",
		Long: `Resolve the dependency graph of a compose file and print the order in
which contracts would be deployed. Nothing is sent to the network.`,
		Example:     `  dvm plan protocol.yaml --network sepolia --load`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{progressAnnotation: "deploy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(cmd, usecase.ComposeParams{
				ConfigPath: args[0],
				Load:       load,
				DryRun:     true,
			})
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "Treat contracts recorded under the active tag as deployed")

	return cmd
}

// NewConfigureCmd creates the configure command
func NewConfigureCmd() *cobra.Command {
	var selectCalls bool

	cmd := &cobra.Command{
		Use:   "configure <compose-file>",
		Short: "Apply the configuration section against recorded contracts",
		Long: `Load the contracts recorded under the active tag and submit the
configuration calls whose guards are not yet satisfied. Equivalent to
'dvm deploy --load --skip-deploy'.`,
		Example:     `  dvm configure protocol.yaml --network sepolia --select`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{progressAnnotation: "deploy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(cmd, usecase.ComposeParams{
				ConfigPath: args[0],
				Load:       true,
				SkipDeploy: true,
				Select:     selectCalls,
			})
		},
	}

	cmd.Flags().BoolVar(&selectCalls, "select", false, "Pick configuration calls interactively")

	return cmd
}
