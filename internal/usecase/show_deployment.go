package usecase

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// ShowDeploymentParams contains parameters for showing a deployment
type ShowDeploymentParams struct {
	// Name of the deployment under the active chain and tag. When empty the
	// operator picks one interactively.
	Name string

	// CheckOnChain verifies that code exists at the recorded address
	CheckOnChain bool
}

// ShowDeploymentResult contains a deployment and the optional on-chain check
type ShowDeploymentResult struct {
	Deployment *models.Deployment
	Checked    bool
	HasCode    bool
	CodeSize   int
}

// ShowDeployment is the use case for showing deployment details
type ShowDeployment struct {
	config   *config.RuntimeConfig
	repo     DeploymentRepository
	chain    ChainClient
	selector DeploymentSelector
	sink     ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(
	cfg *config.RuntimeConfig,
	repo DeploymentRepository,
	chain ChainClient,
	selector DeploymentSelector,
	sink ProgressSink,
) *ShowDeployment {
	return &ShowDeployment{
		config:   cfg,
		repo:     repo,
		chain:    chain,
		selector: selector,
		sink:     sink,
	}
}

// Run executes the show deployment use case
func (uc *ShowDeployment) Run(ctx context.Context, params ShowDeploymentParams) (*ShowDeploymentResult, error) {
	if uc.config.Network == nil {
		return nil, domain.PreconditionError{Operation: "show deployment", Reason: "no network selected, pass --network"}
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})

	deployment, err := uc.find(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	result := &ShowDeploymentResult{Deployment: deployment}

	if params.CheckOnChain {
		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:   "checking",
			Message: "Checking contract code on chain",
			Spinner: true,
		})
		code, err := uc.chain.CodeAt(ctx, common.HexToAddress(deployment.Address))
		if err != nil {
			return nil, fmt.Errorf("failed to check %s on chain: %w", deployment.Name, err)
		}
		result.Checked = true
		result.HasCode = len(code) > 0
		result.CodeSize = len(code)
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: "Deployment loaded",
	})
	return result, nil
}

func (uc *ShowDeployment) find(ctx context.Context, name string) (*models.Deployment, error) {
	chainID := uc.config.Network.ChainID
	if name != "" {
		return uc.repo.GetDeployment(ctx, models.DeploymentID(uc.config.Tag, chainID, name))
	}

	candidates, err := uc.repo.ListDeployments(ctx, domain.DeploymentFilter{Tag: uc.config.Tag, ChainID: chainID})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no deployments under tag %q on chain %d: %w", uc.config.Tag, chainID, domain.ErrNotFound)
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if uc.config.NonInteractive {
		return nil, domain.PreconditionError{
			Operation: "show deployment",
			Reason:    fmt.Sprintf("%d deployments match, pass a name", len(candidates)),
		}
	}

	sortDeployments(candidates)
	return uc.selector.SelectDeployment(ctx, candidates, "Select deployment")
}
