package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// Guard is a read-only check that tells whether a configuration call has
// already taken effect: the step is satisfied when calling Target with Data
// returns exactly Expect.
type Guard struct {
	Target common.Address
	Data   []byte
	Expect []byte
}

// ConfigureStep is an on-chain configuration call with an optional guard
type ConfigureStep struct {
	Name  string
	Call  models.Call
	Guard *Guard
}

// ConfigureOptions controls a configuration pass
type ConfigureOptions struct {
	// Select asks the CallSelector which of the remaining calls to submit
	Select bool
}

// ConfigureResult reports what a configuration pass did
type ConfigureResult struct {
	Submitted  []ConfigureStep
	Skipped    []ConfigureStep // guard already satisfied
	Deselected []ConfigureStep
	Batch      *models.BatchResult
}

// ConfigureCalls filters configuration steps against on-chain state and
// submits the survivors as a single batch, so repeated runs converge.
type ConfigureCalls struct {
	chain    ChainClient
	executor *ExecuteMulticall
	selector CallSelector
	progress ProgressSink
	log      *slog.Logger
}

// NewConfigureCalls creates a new ConfigureCalls use case
func NewConfigureCalls(
	chain ChainClient,
	executor *ExecuteMulticall,
	selector CallSelector,
	progress ProgressSink,
	log *slog.Logger,
) *ConfigureCalls {
	return &ConfigureCalls{
		chain:    chain,
		executor: executor,
		selector: selector,
		progress: progress,
		log:      log.With("component", "ConfigureCalls"),
	}
}

// Apply evaluates every guard, then submits the steps that still need to run
func (uc *ConfigureCalls) Apply(ctx context.Context, steps []ConfigureStep, opts ConfigureOptions) (*ConfigureResult, error) {
	result := &ConfigureResult{}

	var remaining []ConfigureStep
	for i, step := range steps {
		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "checking",
			Current: i + 1,
			Total:   len(steps),
			Message: fmt.Sprintf("Checking %s", step.Name),
			Spinner: true,
		})

		satisfied, err := uc.satisfied(ctx, step)
		if err != nil {
			return nil, err
		}
		if satisfied {
			uc.log.Info("configuration already applied, skipping", "step", step.Name, "target", step.Call.Target.Hex())
			result.Skipped = append(result.Skipped, step)
			continue
		}
		remaining = append(remaining, step)
	}

	if opts.Select && len(remaining) > 0 && uc.selector != nil {
		chosen, err := uc.selector.SelectCalls(ctx, lo.Map(remaining, func(s ConfigureStep, _ int) models.Call { return s.Call }))
		if err != nil {
			return nil, fmt.Errorf("call selection failed: %w", err)
		}
		keep := make(map[string]bool, len(chosen))
		for _, c := range chosen {
			keep[c.Label] = true
		}
		selected, deselected := lo.FilterReject(remaining, func(s ConfigureStep, _ int) bool {
			return keep[s.Call.Label]
		})
		remaining = selected
		result.Deselected = deselected
	}

	if len(remaining) == 0 {
		uc.log.Info("nothing to configure", "skipped", len(result.Skipped))
		return result, nil
	}

	batch, err := uc.executor.Execute(ctx, lo.Map(remaining, func(s ConfigureStep, _ int) models.Call { return s.Call }))
	if err != nil {
		return nil, err
	}
	result.Submitted = remaining
	result.Batch = batch
	return result, nil
}

func (uc *ConfigureCalls) satisfied(ctx context.Context, step ConfigureStep) (bool, error) {
	if step.Guard == nil {
		return false, nil
	}
	ret, err := uc.chain.Call(ctx, step.Guard.Target, step.Guard.Data)
	if err != nil {
		var revert domain.RevertError
		if errors.As(err, &revert) {
			return false, fmt.Errorf("guard of %s reverted: %w", step.Name, err)
		}
		return false, fmt.Errorf("failed to check %s: %w", step.Name, err)
	}
	return bytes.Equal(ret, step.Guard.Expect), nil
}
