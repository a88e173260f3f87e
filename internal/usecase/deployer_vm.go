package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/calldata"
	"github.com/trebuchet-org/dvm/internal/domain/models"
)

// Resolution sources of an address known to the VM
const (
	SourceProvided = "provided"
	SourceLoaded   = "loaded"
	SourceStore    = "store"
	SourceDeployed = "deployed"
	SourceMissing  = "missing" // optional link without a resolution
)

// VMOptions scopes a DeployerVM to one chain and tag
type VMOptions struct {
	ChainID   uint64
	Tag       string
	Overwrite bool
}

// ResolvedAddress is an address the VM can substitute for a dependency name
type ResolvedAddress struct {
	Address common.Address
	Source  string
}

// DeployPlan is the validated, ordered form of the queued builds
type DeployPlan struct {
	ChainID uint64
	Tag     string
	Steps   []*PlanStep
	// External holds dependencies that are not pending builds, by name
	External map[string]ResolvedAddress
}

// PlanStep is one build in deploy order
type PlanStep struct {
	Build        *models.PendingBuild
	Dependencies []string
	// Skip is set when the build's name is already resolved (loaded or provided)
	Skip     bool
	Existing common.Address
}

// Pending returns the steps that will send a transaction
func (p *DeployPlan) Pending() []*PlanStep {
	return lo.Filter(p.Steps, func(s *PlanStep, _ int) bool { return !s.Skip })
}

// ExecuteResult reports what an execution pass did. It is returned on failure
// too, describing the work completed before the error.
type ExecuteResult struct {
	Plan     *DeployPlan
	Deployed []*models.Deployment
	Skipped  []string
}

// DeployerVM sequences contract deployments whose constructor arguments
// reference other deployments. Builds are queued with Add, then Execute deploys
// them in dependency order, substituting addresses as they become known.
//
// A DeployerVM is used for a single planning/execution pass and is not safe
// for concurrent use.
type DeployerVM struct {
	repo      DeploymentRepository
	artifacts ArtifactProvider
	chain     ChainClient
	progress  ProgressSink
	log       *slog.Logger
	opts      VMOptions

	pending  []*models.PendingBuild
	byName   map[string]*models.PendingBuild
	resolved map[string]ResolvedAddress
}

// NewDeployerVM creates an empty VM
func NewDeployerVM(
	repo DeploymentRepository,
	artifacts ArtifactProvider,
	chain ChainClient,
	progress ProgressSink,
	log *slog.Logger,
	opts VMOptions,
) *DeployerVM {
	if progress == nil {
		progress = NopProgress{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Tag == "" {
		opts.Tag = "default"
	}
	return &DeployerVM{
		repo:      repo,
		artifacts: artifacts,
		chain:     chain,
		progress:  progress,
		log:       log.With("component", "DeployerVM", "chain", opts.ChainID, "tag", opts.Tag),
		opts:      opts,
		byName:    make(map[string]*models.PendingBuild),
		resolved:  make(map[string]ResolvedAddress),
	}
}

// Add queues a build. Structural problems are reported immediately.
func (vm *DeployerVM) Add(build *models.PendingBuild) error {
	if build == nil || build.Name == "" {
		return fmt.Errorf("build must have a name")
	}
	if build.Artifact == "" {
		return fmt.Errorf("build %s must specify an artifact", build.Name)
	}
	if _, exists := vm.byName[build.Name]; exists {
		return fmt.Errorf("build %s: %w", build.Name, domain.ErrAlreadyExists)
	}

	positions := make(map[int]bool, len(build.Links))
	for _, link := range build.Links {
		if link.Dependency == "" {
			return fmt.Errorf("build %s: argument %d links to an empty name", build.Name, link.Position)
		}
		if link.Position < 0 || link.Position >= len(build.Args) {
			return fmt.Errorf("build %s: argument position %d out of range (%d arguments)",
				build.Name, link.Position, len(build.Args))
		}
		if positions[link.Position] {
			return fmt.Errorf("build %s: argument %d is linked more than once", build.Name, link.Position)
		}
		positions[link.Position] = true
	}
	for _, dep := range build.Dependencies() {
		if dep == build.Name {
			return fmt.Errorf("build %s cannot depend on itself", build.Name)
		}
	}

	vm.pending = append(vm.pending, build)
	vm.byName[build.Name] = build
	vm.log.Debug("build queued", "build", build.Name, "artifact", build.Artifact, "deps", build.Dependencies())
	return nil
}

// Provide registers an externally known address, e.g. a chain-config address
func (vm *DeployerVM) Provide(name string, address common.Address) {
	vm.resolved[name] = ResolvedAddress{Address: address, Source: SourceProvided}
}

// Load reads persisted entries under the active chain and tag into the
// resolved set. Without names every entry is loaded; a named entry that
// doesn't exist is domain.ErrNotFound.
func (vm *DeployerVM) Load(ctx context.Context, names ...string) ([]*models.Deployment, error) {
	var loaded []*models.Deployment
	if len(names) == 0 {
		deployments, err := vm.repo.ListDeployments(ctx, domain.DeploymentFilter{
			Tag:     vm.opts.Tag,
			ChainID: vm.opts.ChainID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list deployments: %w", err)
		}
		loaded = deployments
	} else {
		for _, name := range names {
			dep, err := vm.repo.GetDeployment(ctx, models.DeploymentID(vm.opts.Tag, vm.opts.ChainID, name))
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", name, err)
			}
			loaded = append(loaded, dep)
		}
	}

	for _, dep := range loaded {
		vm.resolved[dep.Name] = ResolvedAddress{Address: common.HexToAddress(dep.Address), Source: SourceLoaded}
	}
	vm.log.Info("deployments loaded", "count", len(loaded))
	return loaded, nil
}

// Address returns the resolved address of name, if the VM knows it
func (vm *DeployerVM) Address(name string) (common.Address, bool) {
	r, ok := vm.resolved[name]
	return r.Address, ok
}

// Resolve returns the address of name, falling back to the store under the
// active tag for names the VM hasn't seen.
func (vm *DeployerVM) Resolve(ctx context.Context, name string) (common.Address, error) {
	if addr, ok := vm.Address(name); ok {
		return addr, nil
	}
	dep, err := vm.repo.GetDeployment(ctx, models.DeploymentID(vm.opts.Tag, vm.opts.ChainID, name))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return common.Address{}, fmt.Errorf("%s has no deployment under tag %q: %w", name, vm.opts.Tag, domain.ErrNotFound)
		}
		return common.Address{}, err
	}
	addr := common.HexToAddress(dep.Address)
	vm.resolved[name] = ResolvedAddress{Address: addr, Source: SourceStore}
	return addr, nil
}

// Plan validates the queued builds and orders them without sending any
// transaction.
func (vm *DeployerVM) Plan(ctx context.Context) (*DeployPlan, error) {
	plan := &DeployPlan{
		ChainID:  vm.opts.ChainID,
		Tag:      vm.opts.Tag,
		External: make(map[string]ResolvedAddress),
	}

	graph := NewDependencyGraph()
	for _, build := range vm.pending {
		graph.AddNode(build.Name)
	}

	for _, build := range vm.pending {
		if vm.isResolved(build.Name) {
			continue
		}

		for _, dep := range build.Dependencies() {
			if _, isPending := vm.byName[dep]; isPending {
				if !vm.isResolved(dep) {
					graph.AddEdge(build.Name, dep)
				}
				continue
			}
			if vm.isResolved(dep) {
				plan.External[dep] = vm.resolved[dep]
				continue
			}
			if r, seen := plan.External[dep]; seen {
				if r.Source == SourceMissing && !build.IsOptional(dep) {
					return nil, domain.MissingDependencyError{Build: build.Name, Dependency: dep, Tag: vm.opts.Tag}
				}
				continue
			}

			existing, err := vm.repo.GetDeployment(ctx, models.DeploymentID(vm.opts.Tag, vm.opts.ChainID, dep))
			switch {
			case err == nil:
				plan.External[dep] = ResolvedAddress{Address: common.HexToAddress(existing.Address), Source: SourceStore}
			case errors.Is(err, domain.ErrNotFound):
				if !build.IsOptional(dep) {
					return nil, domain.MissingDependencyError{Build: build.Name, Dependency: dep, Tag: vm.opts.Tag}
				}
				plan.External[dep] = ResolvedAddress{Source: SourceMissing}
				vm.log.Warn("optional dependency not found, using zero address", "build", build.Name, "dependency", dep)
			default:
				return nil, fmt.Errorf("failed to look up dependency %s: %w", dep, err)
			}
		}

		if !vm.opts.Overwrite {
			existing, err := vm.repo.GetDeployment(ctx, models.DeploymentID(vm.opts.Tag, vm.opts.ChainID, build.Name))
			if err == nil {
				return nil, domain.PreconditionError{
					Operation: "deploy " + build.Name,
					Reason: fmt.Sprintf("a deployment already exists at %s under tag %q; load it to reuse it or enable overwrite",
						existing.Address, vm.opts.Tag),
				}
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("failed to look up %s: %w", build.Name, err)
			}
		}
	}

	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	for _, name := range order {
		build := vm.byName[name]
		step := &PlanStep{
			Build:        build,
			Dependencies: build.Dependencies(),
		}
		if r, ok := vm.resolved[name]; ok {
			step.Skip = true
			step.Existing = r.Address
		}
		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

// Execute plans the queued builds and deploys the ones not yet resolved, in
// order. The first failure aborts the remaining builds; entries persisted
// before it stay recorded.
func (vm *DeployerVM) Execute(ctx context.Context) (*ExecuteResult, error) {
	plan, err := vm.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := &ExecuteResult{Plan: plan}
	total := len(plan.Pending())
	current := 0

	for _, step := range plan.Steps {
		name := step.Build.Name
		if step.Skip {
			vm.log.Info("build already resolved, skipping", "build", name, "address", step.Existing.Hex())
			result.Skipped = append(result.Skipped, name)
			continue
		}

		current++
		vm.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "deploying",
			Current: current,
			Total:   total,
			Message: fmt.Sprintf("Deploying %s", name),
			Spinner: true,
		})

		deployment, err := vm.deploy(ctx, step.Build, plan)
		if err != nil {
			vm.progress.OnProgress(ctx, ProgressEvent{Stage: "deploy_failed", Message: name})
			return result, err
		}

		vm.resolved[name] = ResolvedAddress{Address: common.HexToAddress(deployment.Address), Source: SourceDeployed}
		result.Deployed = append(result.Deployed, deployment)
		vm.progress.OnProgress(ctx, ProgressEvent{
			Stage:    "deployed",
			Current:  current,
			Total:    total,
			Message:  fmt.Sprintf("%s deployed at %s", name, deployment.Address),
			Metadata: deployment,
		})
	}

	vm.pending = nil
	vm.byName = make(map[string]*models.PendingBuild)
	return result, nil
}

func (vm *DeployerVM) deploy(ctx context.Context, build *models.PendingBuild, plan *DeployPlan) (*models.Deployment, error) {
	args, err := vm.substitute(build, plan)
	if err != nil {
		return nil, err
	}

	artifact, err := vm.artifacts.GetArtifact(ctx, build.Artifact)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", build.Name, err)
	}
	if len(artifact.Bytecode) == 0 {
		return nil, fmt.Errorf("build %s: artifact %s has no bytecode", build.Name, artifact.Name)
	}

	values, err := calldata.CoerceArguments(artifact.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("build %s: constructor %w", build.Name, err)
	}
	encodedArgs, err := artifact.ABI.Pack("", values...)
	if err != nil {
		return nil, fmt.Errorf("build %s: failed to pack constructor arguments: %w", build.Name, err)
	}

	initCode := make([]byte, 0, len(artifact.Bytecode)+len(encodedArgs))
	initCode = append(initCode, artifact.Bytecode...)
	initCode = append(initCode, encodedArgs...)

	vm.log.Debug("submitting deployment", "build", build.Name, "artifact", artifact.Name, "initCodeSize", len(initCode))
	tx, err := vm.chain.Deploy(ctx, initCode)
	if err != nil {
		var revert domain.RevertError
		if errors.As(err, &revert) {
			revert.Operation = "deploy " + build.Name
			return nil, revert
		}
		return nil, fmt.Errorf("failed to deploy %s: %w", build.Name, err)
	}
	if tx.Reverted() {
		return nil, domain.RevertError{Operation: "deploy " + build.Name, TxHash: tx.Hash.Hex()}
	}

	deployment := &models.Deployment{
		ID:              models.DeploymentID(vm.opts.Tag, vm.opts.ChainID, build.Name),
		Tag:             vm.opts.Tag,
		ChainID:         vm.opts.ChainID,
		Name:            build.Name,
		Address:         tx.ContractAddress.Hex(),
		Artifact:        build.Artifact,
		TxHash:          tx.Hash.Hex(),
		ConstructorArgs: hexutil.Encode(encodedArgs),
		Metadata:        build.Metadata,
		CreatedAt:       time.Now().UTC(),
	}
	if err := vm.repo.SaveDeployment(ctx, deployment, vm.opts.Overwrite); err != nil {
		return nil, fmt.Errorf("%s deployed at %s but could not be recorded: %w", build.Name, deployment.Address, err)
	}

	vm.log.Info("contract deployed",
		"build", build.Name,
		"address", deployment.Address,
		"tx", deployment.TxHash,
		"gasUsed", tx.GasUsed,
	)
	return deployment, nil
}

// substitute fills every linked argument position with its dependency's
// address in a single pass over a copy of the raw arguments.
func (vm *DeployerVM) substitute(build *models.PendingBuild, plan *DeployPlan) ([]any, error) {
	args := make([]any, len(build.Args))
	copy(args, build.Args)

	for _, link := range build.Links {
		if r, ok := vm.resolved[link.Dependency]; ok {
			args[link.Position] = r.Address
			continue
		}
		if r, ok := plan.External[link.Dependency]; ok && (r.Source != SourceMissing || link.Optional) {
			args[link.Position] = r.Address
			continue
		}
		if link.Optional {
			args[link.Position] = common.Address{}
			continue
		}
		return nil, domain.MissingDependencyError{Build: build.Name, Dependency: link.Dependency, Tag: vm.opts.Tag}
	}
	return args, nil
}

func (vm *DeployerVM) isResolved(name string) bool {
	_, ok := vm.resolved[name]
	return ok
}
