package render

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// Color styles for table format
var (
	tagBg           = color.BgYellow
	chainBg         = color.BgCyan
	tagHeader       = color.New(tagBg, color.FgBlack)
	tagHeaderBold   = color.New(tagBg, color.FgBlack, color.Bold)
	chainHeader     = color.New(chainBg, color.FgBlack)
	chainHeaderBold = color.New(chainBg, color.FgBlack, color.Bold)
	nameStyle       = color.New(color.FgGreen, color.Bold)
	addressStyle    = color.New(color.FgWhite)
	artifactStyle   = color.New(color.FgCyan)
	timestampStyle  = color.New(color.Faint)
)

type TableData [][]string

// DeploymentsRenderer renders deployment lists as formatted tables with tree-style layout
type DeploymentsRenderer struct {
	out io.Writer
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer) *DeploymentsRenderer {
	return &DeploymentsRenderer{
		out: out,
	}
}

// RenderDeploymentList renders deployments grouped by tag, then chain
func (r *DeploymentsRenderer) RenderDeploymentList(result *usecase.DeploymentListResult) error {
	if len(result.Deployments) == 0 {
		fmt.Fprintln(r.out, "No deployments found")
		return nil
	}

	groups := make(map[string]map[uint64][]*models.Deployment)
	for _, dep := range result.Deployments {
		if groups[dep.Tag] == nil {
			groups[dep.Tag] = make(map[uint64][]*models.Deployment)
		}
		groups[dep.Tag][dep.ChainID] = append(groups[dep.Tag][dep.ChainID], dep)
	}

	tags := make([]string, 0, len(groups))
	for tag := range groups {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	// Build every table first so columns line up across groups
	tables := make(map[string]map[uint64]TableData)
	var allTables []TableData
	for _, tag := range tags {
		tables[tag] = make(map[uint64]TableData)
		for chainID, deps := range groups[tag] {
			data := buildDeploymentTable(deps)
			tables[tag][chainID] = data
			allTables = append(allTables, data)
		}
	}
	widths := calculateTableColumnWidths(allTables)

	for _, tag := range tags {
		tagLabel := fmt.Sprintf("%-12s", "tag:")
		tagValue := fmt.Sprintf("%-30s", strings.ToUpper(tag))
		fmt.Fprintln(r.out, tagHeader.Sprintf("   ◎ %s %s", tagLabel, tagHeaderBold.Sprint(tagValue)))

		chainIDs := make([]uint64, 0, len(groups[tag]))
		for chainID := range groups[tag] {
			chainIDs = append(chainIDs, chainID)
		}
		sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

		for idx, chainID := range chainIDs {
			isLast := idx == len(chainIDs)-1
			treePrefix, continuationPrefix := "├─", "│ "
			if isLast {
				treePrefix, continuationPrefix = "└─", "  "
			}

			chainLabel := fmt.Sprintf("%-12s", "chain:")
			chainValue := fmt.Sprintf("%-30s", fmt.Sprintf("%d", chainID))
			fmt.Fprintf(r.out, "%s%s%s\n", treePrefix, chainHeader.Sprintf(" ⛓ %s ", chainLabel), chainHeaderBold.Sprint(chainValue))
			fmt.Fprintln(r.out, continuationPrefix)

			fmt.Fprint(r.out, renderTableWithWidths(tables[tag][chainID], widths, continuationPrefix))
			fmt.Fprintln(r.out)

			if !isLast {
				fmt.Fprintln(r.out, continuationPrefix)
			} else {
				fmt.Fprintln(r.out)
			}
		}
	}

	fmt.Fprintf(r.out, "Total deployments: %d\n", result.Summary.Total)
	return nil
}

// buildDeploymentTable creates a TableData sorted by name
func buildDeploymentTable(deployments []*models.Deployment) TableData {
	sorted := make([]*models.Deployment, len(deployments))
	copy(sorted, deployments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	data := make(TableData, 0, len(sorted))
	for _, d := range sorted {
		artifact := ""
		if d.Artifact != "" && d.Artifact != d.Name {
			artifact = artifactStyle.Sprintf("(%s)", d.Artifact)
		}
		data = append(data, []string{
			nameStyle.Sprint(d.Name),
			addressStyle.Sprint(d.Address),
			artifact,
			timestampStyle.Sprint(d.CreatedAt.Format("2006-01-02 15:04:05")),
		})
	}
	return data
}

// renderTableWithWidths renders a table with specific column widths
func renderTableWithWidths(tableData TableData, columnWidths []int, continuationPrefix string) string {
	if len(tableData) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box = table.BoxStyle{
		PaddingRight: "   ",
	}

	colConfigs := make([]table.ColumnConfig, len(columnWidths))
	for i, width := range columnWidths {
		if i == 0 {
			width += 2 + len([]rune(continuationPrefix))
		}
		colConfigs[i] = table.ColumnConfig{
			Number:   i + 1,
			Align:    text.AlignLeft,
			WidthMin: width,
			WidthMax: width,
		}
	}
	t.SetColumnConfigs(colConfigs)

	for _, row := range tableData {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			if i == 0 {
				tableRow[i] = continuationPrefix + cell
			} else {
				tableRow[i] = cell
			}
		}
		t.AppendRow(tableRow)
	}

	return t.Render()
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

// stripAnsiCodes removes ANSI escape sequences from a string
func stripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// calculateTableColumnWidths calculates column widths for multiple tables
func calculateTableColumnWidths(tables []TableData) []int {
	maxCols := 0
	for _, t := range tables {
		for _, row := range t {
			maxCols = max(maxCols, len(row))
		}
	}

	widths := make([]int, maxCols)
	for _, t := range tables {
		for _, row := range t {
			for col, cell := range row {
				widths[col] = max(widths[col], len([]rune(stripAnsiCodes(cell))))
			}
		}
	}
	return widths
}
