package progress

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// SpinnerSink reports progress on a terminal spinner and prints a line for
// every build or batch that completes.
type SpinnerSink struct {
	out     io.Writer
	spinner *spinner.Spinner

	stage      string
	stageStart time.Time
}

// NewSpinnerSink creates a new spinner based progress sink
func NewSpinnerSink(out io.Writer) *SpinnerSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false

	return &SpinnerSink{
		out:     out,
		spinner: s,
	}
}

// OnProgress handles progress events
func (r *SpinnerSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	if event.Stage != r.stage {
		r.stage = event.Stage
		r.stageStart = time.Now()
	}

	switch event.Stage {
	case "deployed":
		r.pause(func() {
			color.New(color.FgGreen).Fprintf(r.out, "✓ %s%s\n", counter(event), event.Message)
		})
		return
	case "deploy_failed":
		r.pause(func() {
			color.New(color.FgRed).Fprintf(r.out, "✗ %s failed\n", event.Message)
		})
		return
	case "batch_mined":
		r.pause(func() {
			color.New(color.FgGreen).Fprintf(r.out, "✓ %s\n", event.Message)
			if batch, ok := event.Metadata.(*models.BatchResult); ok && len(batch.Failed()) > 0 {
				color.New(color.FgYellow).Fprintf(r.out, "  %d call(s) failed inside the batch\n", len(batch.Failed()))
			}
		})
		return
	}

	if event.Spinner {
		if !r.spinner.Active() {
			r.spinner.Start()
		}
		r.spinner.Suffix = fmt.Sprintf(" %s%s", counter(event), event.Message)
	} else if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message
func (r *SpinnerSink) Info(message string) {
	r.pause(func() { color.New(color.FgCyan).Fprintln(r.out, message) })
}

// Error prints an error message
func (r *SpinnerSink) Error(message string) {
	r.pause(func() { color.New(color.FgRed).Fprintln(r.out, message) })
}

// Stop halts the spinner, if it is running
func (r *SpinnerSink) Stop() {
	if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// pause stops the spinner while fn writes, then restarts it
func (r *SpinnerSink) pause(fn func()) {
	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	fn()
	if wasActive {
		r.spinner.Start()
	}
}

func counter(event usecase.ProgressEvent) string {
	if event.Total == 0 {
		return ""
	}
	return fmt.Sprintf("[%d/%d] ", event.Current, event.Total)
}

var _ usecase.ProgressSink = (*SpinnerSink)(nil)
