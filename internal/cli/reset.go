package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/dvm/internal/cli/render"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// NewResetCmd creates the reset command
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove recorded deployments for the current tag and network",
		Long: `Remove every deployment recorded under the active tag on the selected
network, so the next deploy starts fresh. Nothing on chain is touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			result, err := app.ResetDeployments.Run(cmd.Context(), usecase.ResetDeploymentsParams{DryRun: true})
			if err != nil {
				return err
			}

			if len(result.Deployments) == 0 {
				fmt.Fprintln(out, "Nothing to reset. No deployments recorded for the current tag and network.")
				return nil
			}

			render.NewResetRenderer(out).RenderPreview(result, app.Config.Tag, app.Config.Network.ChainID)

			if !app.Config.NonInteractive {
				fmt.Fprintf(out, "Are you sure you want to reset tag '%s' on network '%s'? This cannot be undone. [y/N]: ",
					app.Config.Tag,
					app.Config.Network.Name,
				)
				var response string
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
					fmt.Fprintln(out, "Reset cancelled.")
					return nil
				}

				if strings.ToLower(strings.TrimSpace(response)) != "y" {
					fmt.Fprintln(out, "Reset cancelled.")
					return nil
				}
			} else {
				fmt.Fprintln(out, "Running in non-interactive mode. Proceeding with reset...")
			}

			result, err = app.ResetDeployments.Run(cmd.Context(), usecase.ResetDeploymentsParams{})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s\n", render.FormatSuccess(fmt.Sprintf("Removed %d deployments.", len(result.Deployments))))
			return nil
		},
	}

	return cmd
}
