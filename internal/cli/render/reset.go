package render

import (
	"fmt"
	"io"

	"github.com/trebuchet-org/dvm/internal/usecase"
)

// ResetRenderer renders the entries a reset removes
type ResetRenderer struct {
	out io.Writer
}

// NewResetRenderer creates a new reset renderer
func NewResetRenderer(out io.Writer) *ResetRenderer {
	return &ResetRenderer{out: out}
}

// RenderPreview lists the entries that are about to be removed
func (r *ResetRenderer) RenderPreview(result *usecase.ResetDeploymentsResult, tag string, chainID uint64) {
	fmt.Fprintf(r.out, "Found %d deployments to reset for tag '%s' on chain %d:\n\n", len(result.Deployments), tag, chainID)
	for _, d := range result.Deployments {
		fmt.Fprintf(r.out, "  %-30s %s\n", d.Name, d.Address)
	}
	fmt.Fprintln(r.out)
}
