package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// DeploymentRepository handles persistence of deployment entries
type DeploymentRepository interface {
	GetDeployment(ctx context.Context, id string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error)
	// SaveDeployment fails with domain.ErrAlreadyExists when the entry exists
	// and overwrite is false.
	SaveDeployment(ctx context.Context, deployment *models.Deployment, overwrite bool) error
	DeleteDeployment(ctx context.Context, id string) error
}

// ArtifactProvider looks up compiled contracts by name or "path:Name"
type ArtifactProvider interface {
	GetArtifact(ctx context.Context, ref string) (*models.Artifact, error)
}

// TxResult is the mined outcome of a transaction
type TxResult struct {
	Hash            common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	Status          uint64
	ContractAddress common.Address
}

// Reverted reports whether the transaction was mined with a failure status
func (r *TxResult) Reverted() bool {
	return r.Status == 0
}

// ChainClient is the RPC + signer capability set the deployer works against.
// Transactions from the client's signer are submitted one at a time and each
// call blocks until the receipt is available.
type ChainClient interface {
	// Deploy submits a contract creation with the given init code
	Deploy(ctx context.Context, initCode []byte) (*TxResult, error)
	// Call executes a read-only call. A revert is reported as domain.RevertError.
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, to common.Address, data []byte) (*TxResult, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// Interactive ports

// Prompter collects a missing value from the operator
type Prompter interface {
	Prompt(ctx context.Context, label string, validate func(string) error) (string, error)
}

// CallSelector lets the operator pick which configuration calls to submit
type CallSelector interface {
	SelectCalls(ctx context.Context, calls []models.Call) ([]models.Call, error)
}

// DeploymentSelector handles interactive selection of deployments
type DeploymentSelector interface {
	SelectDeployment(ctx context.Context, deployments []*models.Deployment, prompt string) (*models.Deployment, error)
}

// NetworkResolver handles network configuration resolution
type NetworkResolver interface {
	GetNetworks(ctx context.Context) []string
	ResolveNetwork(ctx context.Context, networkName string) (*config.Network, error)
}

// Use case result types

// DeploymentListResult contains the result of listing deployments
type DeploymentListResult struct {
	Deployments []*models.Deployment
	Summary     DeploymentSummary
}

// DeploymentSummary provides summary statistics
type DeploymentSummary struct {
	Total   int
	ByTag   map[string]int
	ByChain map[uint64]int
}
