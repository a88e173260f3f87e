package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/dvm/internal/domain"
	"github.com/trebuchet-org/dvm/internal/domain/calldata"
	"github.com/trebuchet-org/dvm/internal/domain/config"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// ComposeDeployment handles orchestrated deployments from YAML configuration
type ComposeDeployment struct {
	config    *config.RuntimeConfig
	repo      DeploymentRepository
	artifacts ArtifactProvider
	chain     ChainClient
	configure *ConfigureCalls
	prompter  Prompter
	progress  ProgressSink
	log       *slog.Logger
}

// NewComposeDeployment creates a new compose deployment use case
func NewComposeDeployment(
	cfg *config.RuntimeConfig,
	repo DeploymentRepository,
	artifacts ArtifactProvider,
	chain ChainClient,
	configure *ConfigureCalls,
	prompter Prompter,
	progress ProgressSink,
	log *slog.Logger,
) *ComposeDeployment {
	return &ComposeDeployment{
		config:    cfg,
		repo:      repo,
		artifacts: artifacts,
		chain:     chain,
		configure: configure,
		prompter:  prompter,
		progress:  progress,
		log:       log,
	}
}

// ComposeParams contains parameters for a compose run
type ComposeParams struct {
	ConfigPath string
	Load       bool // reuse persisted entries under the active tag
	Overwrite  bool // replace persisted entries
	DryRun     bool // plan only
	SkipDeploy bool // only run the configure section, requires Load
	Select     bool // interactively pick configuration calls
}

// ComposeResult contains the result of a compose run
type ComposeResult struct {
	File      *ComposeFile
	Plan      *DeployPlan
	Execution *ExecuteResult
	Configure *ConfigureResult
	DryRun    bool
}

// Execute runs the compose file: deploy contracts, then apply configuration
func (uc *ComposeDeployment) Execute(ctx context.Context, params ComposeParams) (*ComposeResult, error) {
	if uc.config.Network == nil {
		return nil, domain.PreconditionError{Operation: "deploy", Reason: "no network selected, pass --network"}
	}
	if params.SkipDeploy && !params.Load {
		return nil, domain.PreconditionError{
			Operation: "skip deployment",
			Reason:    "contracts must be loaded with --load to configure them",
		}
	}

	file, err := ParseComposeFile(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	result := &ComposeResult{File: file, DryRun: params.DryRun}

	vm := NewDeployerVM(uc.repo, uc.artifacts, uc.chain, uc.progress, uc.log, VMOptions{
		ChainID:   uc.config.Network.ChainID,
		Tag:       uc.config.Tag,
		Overwrite: params.Overwrite,
	})
	if chain, ok := uc.config.ActiveChain(); ok {
		for _, name := range chain.AddressNames() {
			vm.Provide(name, chain.Addresses[name])
		}
	}
	if params.Load {
		if _, err := vm.Load(ctx); err != nil {
			return nil, err
		}
	}

	args := &argResolver{
		prompter:       uc.prompter,
		nonInteractive: uc.config.NonInteractive,
		dryRun:         params.DryRun,
		answers:        make(map[string]string),
	}

	if !params.SkipDeploy {
		for _, spec := range file.Contracts {
			// Loaded contracts are skipped, so their prompts are not asked
			_, resolved := vm.Address(spec.Name)
			build, err := args.build(ctx, spec, resolved)
			if err != nil {
				return nil, err
			}
			if err := vm.Add(build); err != nil {
				return nil, err
			}
		}

		plan, err := vm.Plan(ctx)
		if err != nil {
			return nil, err
		}
		result.Plan = plan
		uc.progress.OnProgress(ctx, ProgressEvent{Stage: "plan_created", Metadata: plan})

		if params.DryRun {
			return result, nil
		}

		execution, err := vm.Execute(ctx)
		result.Execution = execution
		if err != nil {
			return result, err
		}
	} else if params.DryRun {
		return result, nil
	}

	if len(file.Configure) == 0 {
		return result, nil
	}

	steps := make([]ConfigureStep, 0, len(file.Configure))
	for _, spec := range file.Configure {
		step, err := args.configureStep(ctx, vm, spec)
		if err != nil {
			return result, err
		}
		steps = append(steps, step)
	}

	configured, err := uc.configure.Apply(ctx, steps, ConfigureOptions{Select: params.Select})
	if err != nil {
		return result, err
	}
	result.Configure = configured
	return result, nil
}

// Compose configuration types

// ComposeFile is the top-level structure of a compose YAML file
type ComposeFile struct {
	Group     string          `yaml:"group"`
	Contracts []ContractSpec  `yaml:"contracts"`
	Configure []ConfigureSpec `yaml:"configure,omitempty"`
}

// ContractSpec describes one contract to deploy.
//
// Arguments are literal values except for strings of the forms
// "@Name" (address of Name), "@Name?" (same, zero address if Name is unknown)
// and "?type:Prompt" (asked interactively). A leading "@@" or "??" escapes
// the marker.
type ContractSpec struct {
	Name     string         `yaml:"name"`
	Artifact string         `yaml:"artifact,omitempty"` // defaults to Name
	Args     []any          `yaml:"args,omitempty"`
	Deps     []string       `yaml:"deps,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// ConfigureSpec describes one configuration call
type ConfigureSpec struct {
	Name         string     `yaml:"name"`
	Target       string     `yaml:"target"`
	Call         string     `yaml:"call"`
	Args         []any      `yaml:"args,omitempty"`
	AllowFailure bool       `yaml:"allowFailure,omitempty"`
	SkipIf       *GuardSpec `yaml:"skipIf,omitempty"`
}

// GuardSpec is the read-only call that makes a configuration call a no-op
type GuardSpec struct {
	Target  string   `yaml:"target,omitempty"` // defaults to the step target
	Call    string   `yaml:"call"`
	Args    []any    `yaml:"args,omitempty"`
	Returns []string `yaml:"returns"`
	Equals  []any    `yaml:"equals"`
}

// ParseComposeFile reads and validates a compose YAML file
func ParseComposeFile(path string) (*ComposeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	var file ComposeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse compose file %s: %w", path, err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compose file %s: %w", path, err)
	}
	return &file, nil
}

// Validate checks the compose file for structural errors
func (f *ComposeFile) Validate() error {
	if len(f.Contracts) == 0 && len(f.Configure) == 0 {
		return fmt.Errorf("at least one contract or configure step is required")
	}

	names := make(map[string]bool, len(f.Contracts))
	for i, c := range f.Contracts {
		if c.Name == "" {
			return fmt.Errorf("contract %d must have a name", i)
		}
		if names[c.Name] {
			return fmt.Errorf("contract '%s' is declared more than once", c.Name)
		}
		names[c.Name] = true
		for _, dep := range c.Deps {
			if dep == c.Name {
				return fmt.Errorf("contract '%s' cannot depend on itself", c.Name)
			}
		}
	}

	steps := make(map[string]bool, len(f.Configure))
	for i, s := range f.Configure {
		if s.Name == "" {
			return fmt.Errorf("configure step %d must have a name", i)
		}
		if steps[s.Name] {
			return fmt.Errorf("configure step '%s' is declared more than once", s.Name)
		}
		steps[s.Name] = true
		if s.Target == "" || s.Call == "" {
			return fmt.Errorf("configure step '%s' must specify a target and a call", s.Name)
		}
		if s.SkipIf != nil {
			if s.SkipIf.Call == "" {
				return fmt.Errorf("skipIf of '%s' must specify a call", s.Name)
			}
			if len(s.SkipIf.Returns) != len(s.SkipIf.Equals) {
				return fmt.Errorf("skipIf of '%s' has %d return types but %d expected values",
					s.Name, len(s.SkipIf.Returns), len(s.SkipIf.Equals))
			}
		}
	}
	return nil
}

// argResolver turns compose arguments into build arguments and calls,
// asking each distinct prompt once.
type argResolver struct {
	prompter       Prompter
	nonInteractive bool
	dryRun         bool
	answers        map[string]string
}

func (r *argResolver) build(ctx context.Context, spec ContractSpec, resolved bool) (*models.PendingBuild, error) {
	build := &models.PendingBuild{
		Name:      spec.Name,
		Artifact:  spec.Artifact,
		Args:      make([]any, len(spec.Args)),
		DependsOn: spec.Deps,
	}
	if build.Artifact == "" {
		build.Artifact = spec.Name
	}
	if len(spec.Metadata) > 0 {
		meta, err := json.Marshal(spec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("contract %s: invalid metadata: %w", spec.Name, err)
		}
		build.Metadata = meta
	}

	for i, raw := range spec.Args {
		if name, optional, ok := parseRef(raw); ok {
			build.Links = append(build.Links, models.ArgLink{Position: i, Dependency: name, Optional: optional})
			continue
		}
		if containsRef(raw) {
			return nil, fmt.Errorf("contract %s: argument %d: placeholders are only supported as top-level arguments", spec.Name, i)
		}
		if resolved {
			build.Args[i] = raw
			continue
		}
		value, err := r.literal(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("contract %s: argument %d: %w", spec.Name, i, err)
		}
		build.Args[i] = value
	}
	return build, nil
}

func (r *argResolver) configureStep(ctx context.Context, vm *DeployerVM, spec ConfigureSpec) (ConfigureStep, error) {
	target, err := r.address(ctx, vm, spec.Target)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: target: %w", spec.Name, err)
	}
	callArgs, err := r.values(ctx, vm, spec.Args)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: %w", spec.Name, err)
	}
	data, err := calldata.Encode(spec.Call, callArgs)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: %w", spec.Name, err)
	}

	step := ConfigureStep{
		Name: spec.Name,
		Call: models.Call{
			Target:       target,
			Data:         data,
			AllowFailure: spec.AllowFailure,
			Label:        spec.Name,
		},
	}
	if spec.SkipIf == nil {
		return step, nil
	}

	guardTarget := target
	if spec.SkipIf.Target != "" {
		if guardTarget, err = r.address(ctx, vm, spec.SkipIf.Target); err != nil {
			return ConfigureStep{}, fmt.Errorf("configure %s: skipIf target: %w", spec.Name, err)
		}
	}
	guardArgs, err := r.values(ctx, vm, spec.SkipIf.Args)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: skipIf: %w", spec.Name, err)
	}
	guardData, err := calldata.Encode(spec.SkipIf.Call, guardArgs)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: skipIf: %w", spec.Name, err)
	}
	expectArgs, err := r.values(ctx, vm, spec.SkipIf.Equals)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: skipIf: %w", spec.Name, err)
	}
	expect, err := calldata.EncodeReturn(spec.SkipIf.Returns, expectArgs)
	if err != nil {
		return ConfigureStep{}, fmt.Errorf("configure %s: skipIf: expected values: %w", spec.Name, err)
	}
	step.Guard = &Guard{Target: guardTarget, Data: guardData, Expect: expect}
	return step, nil
}

func (r *argResolver) address(ctx context.Context, vm *DeployerVM, raw string) (common.Address, error) {
	if name, optional, ok := parseRef(raw); ok {
		addr, err := vm.Resolve(ctx, name)
		if optional && errors.Is(err, domain.ErrNotFound) {
			return common.Address{}, nil
		}
		return addr, err
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, raw)
	}
	return common.HexToAddress(raw), nil
}

// values resolves references anywhere in a (possibly nested) argument list
func (r *argResolver) values(ctx context.Context, vm *DeployerVM, raw []any) ([]any, error) {
	out := make([]any, len(raw))
	for i, v := range raw {
		resolved, err := r.value(ctx, vm, v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = resolved
	}
	return out, nil
}

func (r *argResolver) value(ctx context.Context, vm *DeployerVM, raw any) (any, error) {
	if name, optional, ok := parseRef(raw); ok {
		addr, err := vm.Resolve(ctx, name)
		if err != nil && !(optional && errors.Is(err, domain.ErrNotFound)) {
			return nil, err
		}
		return addr, nil
	}
	if list, ok := raw.([]any); ok {
		return r.values(ctx, vm, list)
	}
	return r.literal(ctx, raw)
}

func (r *argResolver) literal(ctx context.Context, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	if strings.HasPrefix(s, "@@") || strings.HasPrefix(s, "??") {
		return s[1:], nil
	}
	typ, label, isPrompt := parsePrompt(s)
	if !isPrompt {
		return s, nil
	}
	return r.ask(ctx, typ, label)
}

func (r *argResolver) ask(ctx context.Context, typ, label string) (any, error) {
	if answer, ok := r.answers[label]; ok {
		return answer, nil
	}
	if r.dryRun {
		return fmt.Sprintf("<%s>", label), nil
	}
	if r.nonInteractive || r.prompter == nil {
		return nil, domain.PreconditionError{
			Operation: "resolve " + label,
			Reason:    "the value must be entered interactively, run without --non-interactive",
		}
	}

	abiType, err := abi.NewType(typ, "", nil)
	if err != nil {
		return nil, fmt.Errorf("prompt %q: unknown type %q: %w", label, typ, err)
	}
	answer, err := r.prompter.Prompt(ctx, fmt.Sprintf("%s (%s)", label, typ), func(input string) error {
		_, err := calldata.Coerce(input, abiType)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("prompt %q: %w", label, err)
	}
	r.answers[label] = answer
	return answer, nil
}

// parseRef recognizes "@Name" and "@Name?"
func parseRef(raw any) (name string, optional bool, ok bool) {
	s, isString := raw.(string)
	if !isString || !strings.HasPrefix(s, "@") || strings.HasPrefix(s, "@@") {
		return "", false, false
	}
	name = strings.TrimPrefix(s, "@")
	if strings.HasSuffix(name, "?") {
		name = strings.TrimSuffix(name, "?")
		optional = true
	}
	return name, optional, name != ""
}

// parsePrompt recognizes "?type:Label"
func parsePrompt(s string) (typ, label string, ok bool) {
	if !strings.HasPrefix(s, "?") || strings.HasPrefix(s, "??") {
		return "", "", false
	}
	typ, label, found := strings.Cut(s[1:], ":")
	if !found || typ == "" || label == "" {
		return "", "", false
	}
	return strings.TrimSpace(typ), strings.TrimSpace(label), true
}

func containsRef(raw any) bool {
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if _, _, isRef := parseRef(v); isRef || containsRef(v) {
			return true
		}
	}
	return false
}
