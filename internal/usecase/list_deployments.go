package usecase

import (
	"context"
	"sort"

	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// ListDeploymentsParams contains parameters for listing deployments
type ListDeploymentsParams struct {
	// Name filters by a case-insensitive substring of the deployment name
	Name string
	// AllTags lists every tag instead of only the active one
	AllTags bool
}

// ListDeployments is the use case for listing deployments
type ListDeployments struct {
	config *config.RuntimeConfig
	repo   DeploymentRepository
	sink   ProgressSink
}

// NewListDeployments creates a new ListDeployments use case
func NewListDeployments(cfg *config.RuntimeConfig, repo DeploymentRepository, sink ProgressSink) *ListDeployments {
	return &ListDeployments{
		config: cfg,
		repo:   repo,
		sink:   sink,
	}
}

// Run executes the list deployments use case
func (uc *ListDeployments) Run(ctx context.Context, params ListDeploymentsParams) (*DeploymentListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployments from registry",
		Spinner: true,
	})

	filter := domain.DeploymentFilter{Name: params.Name}
	if !params.AllTags {
		filter.Tag = uc.config.Tag
	}
	if uc.config.Network != nil {
		filter.ChainID = uc.config.Network.ChainID
	}

	deployments, err := uc.repo.ListDeployments(ctx, filter)
	if err != nil {
		return nil, err
	}

	sortDeployments(deployments)

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: len(deployments),
		Total:   len(deployments),
		Message: "Deployments loaded",
	})

	return &DeploymentListResult{
		Deployments: deployments,
		Summary:     calculateSummary(deployments),
	}, nil
}

// sortDeployments sorts deployments by tag, chain and name
func sortDeployments(deployments []*models.Deployment) {
	sort.Slice(deployments, func(i, j int) bool {
		if deployments[i].Tag != deployments[j].Tag {
			return deployments[i].Tag < deployments[j].Tag
		}
		if deployments[i].ChainID != deployments[j].ChainID {
			return deployments[i].ChainID < deployments[j].ChainID
		}
		return deployments[i].Name < deployments[j].Name
	})
}

// calculateSummary calculates summary statistics for deployments
func calculateSummary(deployments []*models.Deployment) DeploymentSummary {
	summary := DeploymentSummary{
		Total:   len(deployments),
		ByTag:   make(map[string]int),
		ByChain: make(map[uint64]int),
	}

	for _, dep := range deployments {
		summary.ByTag[dep.Tag]++
		summary.ByChain[dep.ChainID]++
	}

	return summary
}
