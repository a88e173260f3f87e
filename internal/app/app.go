package app

import (
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	Config *config.RuntimeConfig

	ComposeDeployment *usecase.ComposeDeployment
	ListDeployments   *usecase.ListDeployments
	ShowDeployment    *usecase.ShowDeployment
	ListNetworks      *usecase.ListNetworks
	ResetDeployments  *usecase.ResetDeployments
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	composeDeployment *usecase.ComposeDeployment,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
	listNetworks *usecase.ListNetworks,
	resetDeployments *usecase.ResetDeployments,
) (*App, error) {
	return &App{
		Config:            cfg,
		ComposeDeployment: composeDeployment,
		ListDeployments:   listDeployments,
		ShowDeployment:    showDeployment,
		ListNetworks:      listNetworks,
		ResetDeployments:  resetDeployments,
	}, nil
}
