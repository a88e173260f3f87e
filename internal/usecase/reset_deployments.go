package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// ResetDeploymentsParams contains parameters for resetting deployments
type ResetDeploymentsParams struct {
	DryRun bool // If true, only collect entries without removing them
}

// ResetDeploymentsResult contains the result of resetting deployments
type ResetDeploymentsResult struct {
	Deployments []*models.Deployment
	Removed     bool
}

// ResetDeployments removes every entry of the active tag and chain, e.g. after
// restarting a local node.
type ResetDeployments struct {
	config *config.RuntimeConfig
	repo   DeploymentRepository
	log    *slog.Logger
}

// NewResetDeployments creates a new ResetDeployments use case
func NewResetDeployments(cfg *config.RuntimeConfig, repo DeploymentRepository, log *slog.Logger) *ResetDeployments {
	return &ResetDeployments{
		config: cfg,
		repo:   repo,
		log:    log,
	}
}

// Run executes the reset deployments use case
func (uc *ResetDeployments) Run(ctx context.Context, params ResetDeploymentsParams) (*ResetDeploymentsResult, error) {
	if uc.config.Network == nil {
		return nil, domain.PreconditionError{Operation: "reset", Reason: "no network selected, pass --network"}
	}

	deployments, err := uc.repo.ListDeployments(ctx, domain.DeploymentFilter{
		Tag:     uc.config.Tag,
		ChainID: uc.config.Network.ChainID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	sortDeployments(deployments)

	result := &ResetDeploymentsResult{Deployments: deployments}
	if len(deployments) == 0 || params.DryRun {
		return result, nil
	}

	for _, dep := range deployments {
		if err := uc.repo.DeleteDeployment(ctx, dep.ID); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", dep.ID, err)
		}
	}
	uc.log.Info("deployments removed", "tag", uc.config.Tag, "chain", uc.config.Network.ChainID, "count", len(deployments))

	result.Removed = true
	return result, nil
}
