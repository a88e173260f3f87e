package render

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	statusSubmitted  = "submitted"
	statusFailed     = "failed"
	statusSkipped    = "already applied"
	statusDeselected = "deselected"
)

// BatchRenderer renders configuration passes and their multicall batch
type BatchRenderer struct {
	out   io.Writer
	title cases.Caser
}

// NewBatchRenderer creates a new batch renderer
func NewBatchRenderer(out io.Writer) *BatchRenderer {
	return &BatchRenderer{
		out:   out,
		title: cases.Title(language.English),
	}
}

// RenderConfigure prints one row per configuration step
func (r *BatchRenderer) RenderConfigure(result *usecase.ConfigureResult) {
	total := len(result.Submitted) + len(result.Skipped) + len(result.Deselected)
	if total == 0 {
		return
	}

	outcomes := map[string]models.CallOutcome{}
	if result.Batch != nil {
		for _, o := range result.Batch.Outcomes {
			outcomes[o.Call.Label] = o
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.AppendHeader(table.Row{"Step", "Target", "Allow Failure", "Status"})

	for _, step := range result.Submitted {
		status := statusSubmitted
		if o, ok := outcomes[step.Call.Label]; ok && !o.Success {
			status = statusFailed
		}
		t.AppendRow(r.row(step, status))
	}
	for _, step := range result.Skipped {
		t.AppendRow(r.row(step, statusSkipped))
	}
	for _, step := range result.Deselected {
		t.AppendRow(r.row(step, statusDeselected))
	}

	fmt.Fprintln(r.out)
	t.Render()

	if result.Batch != nil && result.Batch.TxHash != (common.Hash{}) {
		fmt.Fprintf(r.out, "\nBatch tx: %s via %s\n", result.Batch.TxHash.Hex(), result.Batch.Multicall.Hex())
	}
}

func (r *BatchRenderer) row(step usecase.ConfigureStep, status string) table.Row {
	label := r.title.String(status)
	switch status {
	case statusSubmitted:
		label = color.New(color.FgGreen).Sprint(label)
	case statusFailed:
		label = color.New(color.FgRed).Sprint(label)
	default:
		label = color.New(color.FgHiBlack).Sprint(label)
	}
	allowFailure := ""
	if step.Call.AllowFailure {
		allowFailure = "yes"
	}
	return table.Row{step.Name, shortHex(step.Call.Target.Hex()), allowFailure, label}
}
