package interactive

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// PromptAdapter asks the operator for values on the terminal
type PromptAdapter struct {
	config *config.RuntimeConfig
}

// NewPromptAdapter creates a new prompt adapter
func NewPromptAdapter(cfg *config.RuntimeConfig) *PromptAdapter {
	return &PromptAdapter{config: cfg}
}

// Prompt reads one line, re-asking until validate accepts it
func (p *PromptAdapter) Prompt(ctx context.Context, label string, validate func(string) error) (string, error) {
	if p.config.NonInteractive {
		return "", fmt.Errorf("cannot prompt for %q in non-interactive mode", label)
	}

	prompt := promptui.Prompt{
		Label:    label,
		Validate: promptui.ValidateFunc(validate),
	}

	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return value, nil
}

var _ usecase.Prompter = (*PromptAdapter)(nil)
