package interactive

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// callSelectModel is the bubbletea model for picking calls
type callSelectModel struct {
	calls     []models.Call
	cursor    int
	selected  map[int]bool
	title     string
	done      bool
	cancelled bool
}

// newCallSelectModel starts with every call selected
func newCallSelectModel(calls []models.Call, title string) callSelectModel {
	selected := make(map[int]bool, len(calls))
	for i := range calls {
		selected[i] = true
	}
	return callSelectModel{
		calls:    calls,
		selected: selected,
		title:    title,
	}
}

func (m callSelectModel) Init() tea.Cmd {
	return nil
}

func (m callSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.calls)-1 {
				m.cursor++
			}
		case " ":
			m.selected[m.cursor] = !m.selected[m.cursor]
		case "a":
			all := len(m.chosen()) < len(m.calls)
			for i := range m.calls {
				m.selected[i] = all
			}
		case "enter":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m callSelectModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(color.New(color.FgCyan, color.Bold).Sprintf("%s\n\n", m.title))

	for i, call := range m.calls {
		cursor := " "
		if m.cursor == i {
			cursor = color.New(color.FgCyan).Sprint("▸")
		}

		checkbox := color.New(color.FgWhite).Sprint("○")
		if m.selected[i] {
			checkbox = color.New(color.FgGreen).Sprint("✓")
		}

		label := color.New(color.FgWhite).Sprint(call.Label)
		target := color.New(color.FgYellow).Sprintf("(%s)", call.Target.Hex())

		fmt.Fprintf(&b, "%s %s %s %s\n", cursor, checkbox, label, target)
	}

	b.WriteString("\n")
	b.WriteString(color.New(color.FgYellow).Sprint("↑/↓: move  Space: toggle  a: all  Enter: confirm  q: quit\n"))

	return b.String()
}

// chosen returns the selected calls in their original order
func (m callSelectModel) chosen() []models.Call {
	var calls []models.Call
	for i, call := range m.calls {
		if m.selected[i] {
			calls = append(calls, call)
		}
	}
	return calls
}

// CallSelectorAdapter lets the operator deselect configuration calls
type CallSelectorAdapter struct {
	config *config.RuntimeConfig
	run    func(tea.Model) (tea.Model, error)
}

// NewCallSelectorAdapter creates a new bubbletea backed call selector
func NewCallSelectorAdapter(cfg *config.RuntimeConfig) *CallSelectorAdapter {
	return &CallSelectorAdapter{
		config: cfg,
		run: func(m tea.Model) (tea.Model, error) {
			return tea.NewProgram(m).Run()
		},
	}
}

// SelectCalls shows the pending calls and returns the ones left selected.
// In non-interactive mode every call is kept.
func (s *CallSelectorAdapter) SelectCalls(ctx context.Context, calls []models.Call) ([]models.Call, error) {
	if s.config.NonInteractive || len(calls) == 0 {
		return calls, nil
	}

	final, err := s.run(newCallSelectModel(calls, fmt.Sprintf("Select calls to submit (%d pending)", len(calls))))
	if err != nil {
		return nil, fmt.Errorf("call selection failed: %w", err)
	}

	m := final.(callSelectModel)
	if m.cancelled {
		return nil, fmt.Errorf("selection cancelled")
	}
	return m.chosen(), nil
}

var _ usecase.CallSelector = (*CallSelectorAdapter)(nil)
