package adapters

import (
	"github.com/google/wire"
	"github.com/trebuchet-org/dvm/internal/adapters/blockchain"
	"github.com/trebuchet-org/dvm/internal/adapters/interactive"
	"github.com/trebuchet-org/dvm/internal/adapters/repository/contracts"
	"github.com/trebuchet-org/dvm/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/dvm/internal/config"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// RepositorySet provides file-based implementations
var RepositorySet = wire.NewSet(
	deployments.NewFileRepository,
	wire.Bind(new(usecase.DeploymentRepository), new(*deployments.FileRepository)),

	contracts.NewRepository,
	wire.Bind(new(usecase.ArtifactProvider), new(*contracts.Repository)),
)

// BlockchainSet provides blockchain-based implementations
var BlockchainSet = wire.NewSet(
	blockchain.NewClient,
	wire.Bind(new(usecase.ChainClient), new(*blockchain.Client)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.DeploymentSelector), new(*interactive.SelectorAdapter)),

	interactive.NewPromptAdapter,
	wire.Bind(new(usecase.Prompter), new(*interactive.PromptAdapter)),

	interactive.NewCallSelectorAdapter,
	wire.Bind(new(usecase.CallSelector), new(*interactive.CallSelectorAdapter)),
)

// ConfigSet provides configuration-based implementations
var ConfigSet = wire.NewSet(
	config.ProvideNetworkResolver,
	wire.Bind(new(usecase.NetworkResolver), new(*config.NetworkResolver)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	RepositorySet,
	BlockchainSet,
	InteractiveSet,
	ConfigSet,
)
