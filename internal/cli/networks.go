package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/dvm/internal/cli/render"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List networks configured in dvm.toml",
		Long: `List every network of dvm.toml with its chain ID. Chain IDs missing from
the configuration are fetched from the RPC endpoint and cached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListNetworks.Run(cmd.Context(), usecase.ListNetworksParams{})
			if err != nil {
				return err
			}

			return render.NewNetworksRenderer(cmd.OutOrStdout()).RenderNetworksList(result)
		},
	}
}
