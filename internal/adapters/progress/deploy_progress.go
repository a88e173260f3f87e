package progress

import (
	"context"
	"io"

	"github.com/trebuchet-org/dvm/internal/cli/render"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// DeployProgress renders the deployment plan as soon as it is created and
// hands every other event to a spinner.
type DeployProgress struct {
	plans   *render.PlanRenderer
	spinner *SpinnerSink

	planRendered bool
}

// NewDeployProgress creates a new deploy progress reporter
func NewDeployProgress(out io.Writer) *DeployProgress {
	return &DeployProgress{
		plans:   render.NewPlanRenderer(out),
		spinner: NewSpinnerSink(out),
	}
}

// OnProgress handles progress events for deploy operations
func (p *DeployProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	switch event.Stage {
	case "plan_created":
		if plan, ok := event.Metadata.(*usecase.DeployPlan); ok && !p.planRendered {
			p.spinner.Stop()
			p.plans.RenderPlan(plan)
			p.planRendered = true
		}
	case "complete":
		p.spinner.Stop()
	default:
		p.spinner.OnProgress(ctx, event)
	}
}

// Info forwards info messages to the spinner
func (p *DeployProgress) Info(message string) {
	p.spinner.Info(message)
}

// Error forwards error messages to the spinner
func (p *DeployProgress) Error(message string) {
	p.spinner.Error(message)
}

var _ usecase.ProgressSink = (*DeployProgress)(nil)
