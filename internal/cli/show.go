package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/dvm/internal/cli/render"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a recorded deployment",
		Long: `Show the details of a deployment recorded under the active tag and
network. Without a name the deployment is picked interactively.`,
		Example: `  dvm show Vault --network sepolia
  dvm show Vault --network sepolia --check`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.ShowDeploymentParams{CheckOnChain: check}
			if len(args) > 0 {
				params.Name = args[0]
			}

			result, err := app.ShowDeployment.Run(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("failed to resolve deployment: %w", err)
			}

			return render.NewDeploymentRenderer(cmd.OutOrStdout()).RenderDeployment(result)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Verify that code exists at the recorded address")

	return cmd
}
