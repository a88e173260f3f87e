package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// PlanRenderer renders deployment plans and compose results
type PlanRenderer struct {
	out io.Writer
}

// NewPlanRenderer creates a new plan renderer
func NewPlanRenderer(out io.Writer) *PlanRenderer {
	return &PlanRenderer{
		out: out,
	}
}

// RenderPlan displays the deploy order with resolved and pending builds
func (r *PlanRenderer) RenderPlan(plan *usecase.DeployPlan) {
	pending := len(plan.Pending())
	fmt.Fprintf(r.out, "\n📋 Deployment plan for chain %d, tag %s: %d to deploy, %d resolved\n",
		plan.ChainID, plan.Tag, pending, len(plan.Steps)-pending)
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("─", 50))

	for i, step := range plan.Steps {
		fmt.Fprintf(r.out, "%d. ", i+1)
		if step.Skip {
			color.New(color.FgHiBlack).Fprintf(r.out, "%s", step.Build.Name)
			color.New(color.FgHiBlack).Fprintf(r.out, " (resolved at %s)", step.Existing.Hex())
		} else {
			color.New(color.FgCyan).Fprintf(r.out, "%s", step.Build.Name)
			if step.Build.Artifact != "" && step.Build.Artifact != step.Build.Name {
				fmt.Fprintf(r.out, " → ")
				color.New(color.FgGreen).Fprintf(r.out, "%s", step.Build.Artifact)
			}
		}

		if len(step.Dependencies) > 0 {
			color.New(color.FgHiBlack).Fprintf(r.out, " (depends on: %s)", strings.Join(step.Dependencies, ", "))
		}
		fmt.Fprintln(r.out)
	}

	if len(plan.External) > 0 {
		names := make([]string, 0, len(plan.External))
		for name := range plan.External {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(r.out)
		color.New(color.Bold).Fprintln(r.out, "External addresses:")
		for _, name := range names {
			ext := plan.External[name]
			color.New(color.FgYellow).Fprintf(r.out, "  %s", name)
			fmt.Fprintf(r.out, " = %s ", ext.Address.Hex())
			color.New(color.FgHiBlack).Fprintf(r.out, "(%s)\n", ext.Source)
		}
	}

	fmt.Fprintln(r.out)
}

// RenderComposeResult renders the summary of a compose run. The plan and
// per-build progress have already been shown while it ran.
func (r *PlanRenderer) RenderComposeResult(result *usecase.ComposeResult) {
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("═", 70))

	if result.DryRun {
		color.New(color.FgYellow, color.Bold).Fprintf(r.out, "Dry run: nothing was sent for %s\n", result.File.Group)
		return
	}

	color.New(color.FgGreen, color.Bold).Fprintf(r.out, "🎉 %s is deployed\n", result.File.Group)

	fmt.Fprintf(r.out, "\n📊 Summary:\n")
	if result.Execution != nil {
		fmt.Fprintf(r.out, "  • Deployed: %d\n", len(result.Execution.Deployed))
		fmt.Fprintf(r.out, "  • Already resolved: %d\n", len(result.Execution.Skipped))
		for _, d := range result.Execution.Deployed {
			fmt.Fprintf(r.out, "    • %s at %s\n", d.Name, d.Address)
		}
	}
	if result.Configure != nil {
		fmt.Fprintf(r.out, "  • Configuration calls submitted: %d\n", len(result.Configure.Submitted))
		fmt.Fprintf(r.out, "  • Configuration calls already applied: %d\n", len(result.Configure.Skipped))
		NewBatchRenderer(r.out).RenderConfigure(result.Configure)
	}
}
