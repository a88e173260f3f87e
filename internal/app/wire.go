//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/dvm/internal/adapters"
	"github.com/trebuchet-org/dvm/internal/config"
	"github.com/trebuchet-org/dvm/internal/logging"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewExecuteMulticall,
		usecase.NewConfigureCalls,
		usecase.NewComposeDeployment,
		usecase.NewListDeployments,
		usecase.NewShowDeployment,
		usecase.NewListNetworks,
		usecase.NewResetDeployments,

		// App
		NewApp,
	)
	return nil, nil
}
