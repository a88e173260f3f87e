package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/bindings"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// ExecuteMulticall submits a list of calls as one Multicall3 aggregate3
// transaction. It performs no idempotency checks of its own.
type ExecuteMulticall struct {
	config    *config.RuntimeConfig
	chain     ChainClient
	progress  ProgressSink
	log       *slog.Logger
	multicall *bindings.Multicall3
}

// NewExecuteMulticall creates a new ExecuteMulticall use case
func NewExecuteMulticall(
	cfg *config.RuntimeConfig,
	chain ChainClient,
	progress ProgressSink,
	log *slog.Logger,
) *ExecuteMulticall {
	return &ExecuteMulticall{
		config:    cfg,
		chain:     chain,
		progress:  progress,
		log:       log.With("component", "ExecuteMulticall"),
		multicall: bindings.NewMulticall3(),
	}
}

// Execute simulates the batch, then sends it. Per-call outcomes come from the
// simulation and are returned whether or not individual calls failed.
//
// When a call without AllowFailure fails the simulation reverts, nothing is
// sent and a domain.RevertError is returned.
func (uc *ExecuteMulticall) Execute(ctx context.Context, calls []models.Call) (*models.BatchResult, error) {
	if len(calls) == 0 {
		return &models.BatchResult{}, nil
	}

	chain, ok := uc.config.ActiveChain()
	if !ok || !chain.HasMulticall() {
		chainID := uint64(0)
		if uc.config.Network != nil {
			chainID = uc.config.Network.ChainID
		}
		return nil, fmt.Errorf("%w %d", domain.ErrNoMulticall, chainID)
	}

	data, err := uc.multicall.TryPackAggregate3(lo.Map(calls, func(c models.Call, _ int) bindings.Multicall3Call3 {
		return bindings.Multicall3Call3{
			Target:       c.Target,
			AllowFailure: c.AllowFailure,
			CallData:     c.Data,
		}
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to encode multicall batch: %w", err)
	}

	targets := lo.Map(calls, func(c models.Call, _ int) string { return c.Target.Hex() })
	uc.log.Info("submitting multicall batch",
		"multicall", chain.Multicall.Hex(),
		"calls", len(calls),
		"targets", targets,
	)

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "simulating",
		Message: fmt.Sprintf("Simulating batch of %d calls", len(calls)),
		Spinner: true,
	})
	ret, err := uc.chain.Call(ctx, chain.Multicall, data)
	if err != nil {
		var revert domain.RevertError
		if errors.As(err, &revert) {
			revert.Operation = "multicall batch"
			return nil, revert
		}
		return nil, fmt.Errorf("failed to simulate multicall batch: %w", err)
	}

	results, err := uc.multicall.UnpackAggregate3(ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode multicall results: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(results), len(calls))
	}

	batch := &models.BatchResult{Multicall: chain.Multicall}
	for i, r := range results {
		batch.Outcomes = append(batch.Outcomes, models.CallOutcome{
			Call:       calls[i],
			Success:    r.Success,
			ReturnData: r.ReturnData,
		})
	}
	for _, failed := range batch.Failed() {
		uc.log.Warn("call failed inside batch", "target", failed.Call.Target.Hex(), "label", failed.Call.Label)
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "submitting",
		Message: fmt.Sprintf("Submitting batch of %d calls", len(calls)),
		Spinner: true,
	})
	tx, err := uc.chain.SendTransaction(ctx, chain.Multicall, data)
	if err != nil {
		var revert domain.RevertError
		if errors.As(err, &revert) {
			revert.Operation = "multicall batch"
			return nil, revert
		}
		return nil, fmt.Errorf("failed to submit multicall batch: %w", err)
	}
	if tx.Reverted() {
		return nil, domain.RevertError{Operation: "multicall batch", TxHash: tx.Hash.Hex()}
	}

	batch.TxHash = tx.Hash
	uc.log.Info("multicall batch mined",
		"tx", tx.Hash.Hex(),
		"block", tx.BlockNumber,
		"failed", len(batch.Failed()),
	)
	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    "batch_mined",
		Message:  fmt.Sprintf("Batch mined in %s", tx.Hash.Hex()),
		Metadata: batch,
	})
	return batch, nil
}
