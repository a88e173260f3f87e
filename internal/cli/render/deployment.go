package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// DeploymentRenderer renders detailed information about a single deployment
type DeploymentRenderer struct {
	out io.Writer
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer) *DeploymentRenderer {
	return &DeploymentRenderer{
		out: out,
	}
}

// RenderDeployment renders detailed deployment information
func (r *DeploymentRenderer) RenderDeployment(result *usecase.ShowDeploymentResult) error {
	d := result.Deployment

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Deployment: %s\n", d.ID)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	fmt.Fprintln(r.out, "\nBasic Information:")
	fmt.Fprintf(r.out, "  Name: %s\n", color.New(color.FgYellow).Sprint(d.Name))
	fmt.Fprintf(r.out, "  Address: %s\n", d.Address)
	fmt.Fprintf(r.out, "  Artifact: %s\n", d.Artifact)
	fmt.Fprintf(r.out, "  Tag: %s\n", d.Tag)
	fmt.Fprintf(r.out, "  Chain ID: %d\n", d.ChainID)

	if d.TxHash != "" || d.ConstructorArgs != "" {
		fmt.Fprintln(r.out, "\nTransaction:")
		if d.TxHash != "" {
			fmt.Fprintf(r.out, "  Hash: %s\n", d.TxHash)
		}
		if d.ConstructorArgs != "" {
			fmt.Fprintf(r.out, "  Constructor Args: %s\n", shortHex(d.ConstructorArgs))
		}
	}

	if len(d.Metadata) > 0 {
		fmt.Fprintln(r.out, "\nMetadata:")
		fmt.Fprintf(r.out, "  %s\n", string(d.Metadata))
	}

	if result.Checked {
		fmt.Fprintln(r.out, "\nOn-chain:")
		if result.HasCode {
			fmt.Fprintf(r.out, "  Code: %s\n", color.New(color.FgGreen).Sprintf("✓ %d bytes", result.CodeSize))
		} else {
			fmt.Fprintf(r.out, "  Code: %s\n", color.New(color.FgRed).Sprint("✗ no code at address"))
		}
	}

	fmt.Fprintln(r.out, "\nTimestamps:")
	fmt.Fprintf(r.out, "  Created: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
