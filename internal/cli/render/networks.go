package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// NetworksRenderer renders network lists
type NetworksRenderer struct {
	out io.Writer
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer) *NetworksRenderer {
	return &NetworksRenderer{
		out: out,
	}
}

// RenderNetworksList renders the list of networks
func (r *NetworksRenderer) RenderNetworksList(result *usecase.ListNetworksResult) error {
	if len(result.Networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured in dvm.toml [networks]")
		return nil
	}

	fmt.Fprintln(r.out, "🌐 Available Networks:")
	fmt.Fprintln(r.out)

	for _, network := range result.Networks {
		if network.Error != nil {
			fmt.Fprintf(r.out, "  ❌ %s - Error: %v\n", network.Name, network.Error)
			continue
		}

		fmt.Fprintf(r.out, "  ✅ %s - Chain ID: %d", network.Name, network.ChainID)
		if network.ChainName != "" {
			fmt.Fprintf(r.out, " (%s)", network.ChainName)
		}
		if !network.HasMulticall {
			color.New(color.FgYellow).Fprint(r.out, " [no multicall]")
		}
		fmt.Fprintln(r.out)
	}

	return nil
}
