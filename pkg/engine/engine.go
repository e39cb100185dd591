// Package engine implements the Engine facade (spec §4.10): the public
// install/uninstall/list surface, catalog mutation passthrough, listener
// registration, and the orchestration of Catalog → Resolver →
// ConditionalExpander → DeploymentPlanner → DeploymentExecutor →
// StateStore → event Bus described in spec §2 and §5.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/catalog"
	"github.com/operator-framework/feature-engine/pkg/deploy"
	"github.com/operator-framework/feature-engine/pkg/errs"
	"github.com/operator-framework/feature-engine/pkg/events"
	"github.com/operator-framework/feature-engine/pkg/exec"
	"github.com/operator-framework/feature-engine/pkg/host"
	"github.com/operator-framework/feature-engine/pkg/resolver"
	"github.com/operator-framework/feature-engine/pkg/state"
)

// Engine is the process-wide facade. Its mutex guards EngineState (the
// catalog guards its own cache and feature index with its own mutex); it
// is released around I/O, so deployment work operates on a snapshot of
// requiredFeatures and managedModules taken under the lock.
type Engine struct {
	log logrus.FieldLogger
	cfg Config

	catalog  *catalog.Catalog
	matcher  catalog.FeatureMatcher
	resolve  resolver.Resolver
	expander resolver.ConditionalExpander
	planner  deploy.Planner
	executor *exec.Executor
	host     host.ModuleHost
	store    *state.Store
	bus      *events.Bus
	configs  ConfigInstaller // optional

	mu sync.Mutex
	st api.EngineState
}

// New constructs an Engine, loading persisted state from cfg.StatePath and,
// if boot has not yet run, installing cfg.BootFeatures once (spec §5
// "Boot features").
func New(
	ctx context.Context,
	cfg Config,
	log logrus.FieldLogger,
	cat *catalog.Catalog,
	r resolver.Resolver,
	h host.ModuleHost,
	configs ConfigInstaller,
) (*Engine, error) {
	store := state.New(cfg.StatePath)
	st, err := store.Load()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		log:     log,
		cfg:     cfg,
		catalog: cat,
		matcher: catalog.NewFeatureMatcher(cat),
		resolve: r,
		planner: deploy.NewPlanner(),
		executor: exec.New(log, exec.Options{
			NoRefreshUnmanaged: cfg.NoRefreshUnmanaged,
			NoRefreshManaged:   cfg.NoRefreshManaged,
			NoRefresh:          cfg.NoRefresh,
			UpdateSnapshots:    cfg.UpdateSnapshots,
		}),
		host:    h,
		store:   store,
		bus:     events.NewBus(),
		configs: configs,
		st:      st,
	}

	if !st.BootDone && len(cfg.BootFeatures) > 0 {
		if err := e.installBoot(ctx, cfg.BootFeatures); err != nil {
			return nil, fmt.Errorf("installing boot features: %w", err)
		}
	}
	return e, nil
}

// AddRepositoryListener registers l for repository events, replaying past
// events to it immediately (spec §6 "Events").
func (e *Engine) AddRepositoryListener(l events.RepositoryListener) {
	e.bus.AddRepositoryListener(l)
}

// AddFeatureListener registers l for feature install/uninstall events.
func (e *Engine) AddFeatureListener(l events.FeatureListener) {
	e.bus.AddFeatureListener(l)
}

// AddRepository delegates to the Catalog.
func (e *Engine) AddRepository(ctx context.Context, uri string) error {
	return e.catalog.AddRepository(ctx, uri)
}

// RemoveRepository delegates to the Catalog.
func (e *Engine) RemoveRepository(ctx context.Context, uri string) error {
	return e.catalog.RemoveRepository(ctx, uri)
}

// Repositories returns the loaded repositories, for diagnostics.
func (e *Engine) Repositories() []api.Repository {
	return e.catalog.Repositories()
}

// ListRequired returns the feature ids the caller has explicitly requested.
func (e *Engine) ListRequired() []api.FeatureId {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedIds(e.st.RequiredFeatures)
}

// ListInstalled returns the feature ids actually resolved and installed.
func (e *Engine) ListInstalled() []api.FeatureId {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedIds(e.st.InstalledFeatures)
}

func sortedIds(set map[api.FeatureId]struct{}) []api.FeatureId {
	out := make([]api.FeatureId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Install resolves each of featureSpecs ("<name>(/<version>)?") against the
// catalog, adds them to the required set, and deploys the resulting
// target. Idempotent: if the required set is unchanged, no module
// operations occur (the planner's diff against already-matching live
// modules is empty).
func (e *Engine) Install(ctx context.Context, featureSpecs ...string) error {
	e.mu.Lock()
	snapshot := e.st.Clone()
	e.mu.Unlock()

	required := cloneIdSet(snapshot.RequiredFeatures)
	for _, spec := range featureSpecs {
		id, err := e.canonicalFeatureId(ctx, spec)
		if err != nil {
			return err
		}
		required[id] = struct{}{}
	}

	return e.deploy(ctx, snapshot, required, false)
}

// Uninstall removes a single feature from the required set. If spec omits
// a version and more than one version of the named feature is currently
// required, it fails with errs.Ambiguous and leaves state unchanged (spec
// §8 scenario 4).
func (e *Engine) Uninstall(ctx context.Context, spec string) error {
	id, err := api.ParseFeatureId(spec)
	if err != nil {
		return errs.Newf(errs.NotFound, "invalid feature id %q: %v", spec, err)
	}

	e.mu.Lock()
	snapshot := e.st.Clone()
	e.mu.Unlock()

	matches := matchingRequired(snapshot.RequiredFeatures, id)
	if len(matches) == 0 {
		return errs.Newf(errs.NotFound, "feature %q is not installed", spec)
	}
	if len(matches) > 1 {
		return errs.Newf(errs.Ambiguous, "%q matches multiple installed versions: %v", id.Name, versionStrings(matches))
	}

	required := cloneIdSet(snapshot.RequiredFeatures)
	delete(required, matches[0])

	return e.deploy(ctx, snapshot, required, false)
}

// Plan runs catalog resolution and the deployment diff for featureSpecs
// without invoking the executor — a dry run surfacing the same deploy.Plan
// a real install would use (spec §5 "Dry-run planning").
func (e *Engine) Plan(ctx context.Context, featureSpecs ...string) (deploy.Plan, error) {
	e.mu.Lock()
	snapshot := e.st.Clone()
	e.mu.Unlock()

	required := cloneIdSet(snapshot.RequiredFeatures)
	for _, spec := range featureSpecs {
		id, err := e.canonicalFeatureId(ctx, spec)
		if err != nil {
			return deploy.Plan{}, err
		}
		required[id] = struct{}{}
	}

	result, err := e.resolveTarget(ctx, required)
	if err != nil {
		return deploy.Plan{}, err
	}
	return e.planner.Plan(ctx, deploy.Input{
		ResolvedResources: result.AllResources,
		LiveModules:       e.host.Modules(),
		ManagedModules:    snapshot.ManagedModules,
		OldChecksums:      snapshot.ModuleChecksums,
		UpdateSnapshots:   e.cfg.UpdateSnapshots,
		BundleUpdateRange: e.cfg.BundleUpdateRange,
		Streams:           result.StreamProviders,
	})
}

func (e *Engine) installBoot(ctx context.Context, specs []string) error {
	e.mu.Lock()
	snapshot := e.st.Clone()
	e.mu.Unlock()

	required := cloneIdSet(snapshot.RequiredFeatures)
	for _, spec := range specs {
		id, err := e.canonicalFeatureId(ctx, spec)
		if err != nil {
			return err
		}
		required[id] = struct{}{}
	}
	return e.deploy(ctx, snapshot, required, true)
}

// deploy runs the full Catalog → Resolver → ConditionalExpander →
// DeploymentPlanner → DeploymentExecutor → StateStore → Bus pipeline for
// the given target required set, against the given pre-deployment
// snapshot. bootDone, when true, is stamped into the committed state
// (first successful boot-feature install).
func (e *Engine) deploy(ctx context.Context, snapshot api.EngineState, required map[api.FeatureId]struct{}, bootDone bool) error {
	detach := withVerbose(e.log, e.cfg.Verbose)
	defer detach()

	result, err := e.resolveTarget(ctx, required)
	if err != nil {
		return err
	}
	nowInstalled := result.InstalledFeatures()

	plan, err := e.planner.Plan(ctx, deploy.Input{
		ResolvedResources: result.AllResources,
		LiveModules:       e.host.Modules(),
		ManagedModules:    snapshot.ManagedModules,
		OldChecksums:      snapshot.ModuleChecksums,
		UpdateSnapshots:   e.cfg.UpdateSnapshots,
		BundleUpdateRange: e.cfg.BundleUpdateRange,
		Streams:           result.StreamProviders,
	})
	if err != nil {
		return err
	}

	commit := func(ctx context.Context, outcome exec.Outcome) error {
		return e.commit(ctx, snapshot, required, nowInstalled, outcome, bootDone || snapshot.BootDone)
	}
	return e.executor.Execute(ctx, plan, e.host, result.StreamProviders, snapshot.ManagedModules, commit)
}

// resolveTarget runs the resolver once, expands conditionals via the
// ConditionalExpander, and if the expansion added anything, runs the
// resolver a second time with the expanded target set and the synthetic
// feature declarations merged in (spec §4.2, §4.3).
func (e *Engine) resolveTarget(ctx context.Context, required map[api.FeatureId]struct{}) (resolver.Result, error) {
	req := resolver.Request{
		TargetFeatureIDs:       required,
		FeatureResolutionRange: e.cfg.FeatureResolutionRange,
	}
	result, err := e.resolve.Resolve(ctx, req)
	if err != nil {
		return resolver.Result{}, err
	}

	index, err := e.catalog.Features(ctx)
	if err != nil {
		return resolver.Result{}, err
	}
	lookup := func(id api.FeatureId) (api.Feature, bool) {
		byVersion, ok := index[id.Name]
		if !ok {
			return api.Feature{}, false
		}
		f, ok := byVersion[id.Version.String()]
		return f, ok
	}

	additions, synthetic := e.expander.Expand(result.InstalledFeatures(), lookup)
	if len(additions) == 0 {
		return result, nil
	}

	expanded := cloneIdSet(required)
	for id := range additions {
		expanded[id] = struct{}{}
	}
	req2 := resolver.Request{
		TargetFeatureIDs:       expanded,
		FeatureResolutionRange: e.cfg.FeatureResolutionRange,
		ExtraFeatures:          synthetic,
	}
	result2, err := e.resolve.Resolve(ctx, req2)
	if err != nil {
		return resolver.Result{}, err
	}
	return result2, nil
}

// commit performs spec §4.5 steps 5 (state commit) and 6 (configuration
// installation) under the engine lock, between the module-host mutation
// phases and the refresh/start phases.
func (e *Engine) commit(
	ctx context.Context,
	snapshot api.EngineState,
	required map[api.FeatureId]struct{},
	nowInstalled map[api.FeatureId]struct{},
	outcome exec.Outcome,
	bootDone bool,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newState := api.NewEngineState()
	newState.BootDone = bootDone
	for id := range required {
		newState.RequiredFeatures[id] = struct{}{}
	}
	for id := range nowInstalled {
		newState.InstalledFeatures[id] = struct{}{}
	}
	for id := range snapshot.ManagedModules {
		newState.ManagedModules[id] = struct{}{}
	}
	for id := range outcome.NewManaged {
		newState.ManagedModules[id] = struct{}{}
	}
	for id := range outcome.Unmanaged {
		delete(newState.ManagedModules, id)
	}
	for loc, sum := range snapshot.ModuleChecksums {
		newState.ModuleChecksums[loc] = sum
	}
	for loc, sum := range outcome.Checksums {
		newState.ModuleChecksums[loc] = sum
	}

	if err := e.store.Save(newState); err != nil {
		// IO on state save is logged but not propagated (spec §7): the
		// next save attempt corrects it.
		e.log.WithError(err).Warn("failed to persist engine state")
	}
	e.st = newState

	added := idSetDiff(nowInstalled, snapshot.InstalledFeatures)
	removed := idSetDiff(snapshot.InstalledFeatures, nowInstalled)

	if e.configs != nil {
		index, err := e.catalog.Features(ctx)
		if err == nil {
			for id := range added {
				byVersion, ok := index[id.Name]
				if !ok {
					continue
				}
				f, ok := byVersion[id.Version.String()]
				if !ok {
					continue
				}
				if err := e.configs.InstallFeatureConfigs(ctx, f.Name, f.Version.String(), toEngineConfigRefs(f.Configurations)); err != nil {
					return errs.Newf(errs.IO, "installing configs for %s: %v", id, err)
				}
			}
		}
	}

	for id := range added {
		e.bus.PublishFeature(events.FeatureInstalled, id, false)
	}
	for id := range removed {
		e.bus.PublishFeature(events.FeatureUninstalled, id, false)
	}
	return nil
}

func toEngineConfigRefs(refs []api.ConfigRef) []ConfigRef {
	out := make([]ConfigRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, ConfigRef{PID: r.PID, Data: r.Data})
	}
	return out
}

func (e *Engine) canonicalFeatureId(ctx context.Context, spec string) (api.FeatureId, error) {
	name, versionSpec, _ := splitFeatureSpec(spec)
	feature, err := e.matcher.Match(ctx, name, versionSpec)
	if err != nil {
		return api.FeatureId{}, err
	}
	return feature.Id(), nil
}

func splitFeatureSpec(spec string) (name, versionSpec string, hasVersion bool) {
	id, err := api.ParseFeatureId(spec)
	if err != nil {
		return spec, "", false
	}
	return id.Name, id.Version.String(), !id.IsWildcard()
}

func matchingRequired(required map[api.FeatureId]struct{}, id api.FeatureId) []api.FeatureId {
	var out []api.FeatureId
	for candidate := range required {
		if candidate.Name != id.Name {
			continue
		}
		if id.IsWildcard() || candidate.Version.Compare(id.Version) == 0 {
			out = append(out, candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func versionStrings(ids []api.FeatureId) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Version.String()
	}
	return out
}

func cloneIdSet(in map[api.FeatureId]struct{}) map[api.FeatureId]struct{} {
	out := make(map[api.FeatureId]struct{}, len(in))
	for id := range in {
		out[id] = struct{}{}
	}
	return out
}

func idSetDiff(a, b map[api.FeatureId]struct{}) map[api.FeatureId]struct{} {
	out := map[api.FeatureId]struct{}{}
	for id := range a {
		if _, ok := b[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}
