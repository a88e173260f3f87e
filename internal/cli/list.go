package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/dvm/internal/cli/render"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		name    string
		allTags bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded deployments",
		Long: `List the deployments recorded under the active tag, grouped by chain.

The list can be narrowed by contract name and widened to every tag.`,
		Example: `  # List deployments under the default tag
  dvm list

  # List every Vault deployment across tags
  dvm list --name vault --all-tags`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListDeployments.Run(cmd.Context(), usecase.ListDeploymentsParams{
				Name:    name,
				AllTags: allTags,
			})
			if err != nil {
				return err
			}

			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).RenderDeploymentList(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by contract name (case-insensitive substring)")
	cmd.Flags().BoolVar(&allTags, "all-tags", false, "List deployments under every tag")

	return cmd
}
