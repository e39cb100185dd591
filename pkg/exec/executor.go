// Package exec implements the DeploymentExecutor: it enacts a
// deploy.Plan against a host.ModuleHost in the mandatory phase order of
// spec §4.5.
package exec

import (
	"context"
	"hash/fnv"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/deploy"
	"github.com/operator-framework/feature-engine/pkg/errs"
	"github.com/operator-framework/feature-engine/pkg/host"
)

// Options are the tunables of spec §6 relevant to execution.
type Options struct {
	NoRefreshUnmanaged bool
	NoRefreshManaged   bool
	NoRefresh          bool
	UpdateSnapshots    bool
}

// Outcome is handed to the caller's Commit callback between phase 4
// (install) and phase 7 (refresh expansion), and returned from Execute —
// it is everything the engine needs to commit EngineState (spec §4.5
// phase 5) before configuration installation (phase 6) and before any
// refresh/start happens.
type Outcome struct {
	ResourceToModule map[api.Resource]host.Module
	NewManaged       map[api.ModuleId]struct{} // modules installed this deployment
	Unmanaged        map[api.ModuleId]struct{} // modules uninstalled this deployment
	Checksums        map[string]uint64         // new/updated checksums, merge into state
}

// CommitFunc performs spec §4.5 steps 5 (state commit) and 6
// (configuration installation) for the feature set newly installed this
// deployment. It runs under the engine's lock, between the module-host
// mutation phases and the refresh/start phases, so configs never precede
// the modules they configure and refresh/start never race a concurrent
// required-set change.
type CommitFunc func(ctx context.Context, outcome Outcome) error

// Executor enacts deployment plans against a ModuleHost.
type Executor struct {
	log logrus.FieldLogger
	opt Options
}

// New returns an Executor.
func New(log logrus.FieldLogger, opt Options) *Executor {
	return &Executor{log: log, opt: opt}
}

// Execute runs the plan's phases 1–9 against h. Per spec §4.5's closing
// paragraph, every module-host operation runs on a dedicated worker
// goroutine distinct from the caller — Execute blocks on that worker via
// errgroup's Wait and returns the worker's error, but nothing about the
// caller's own goroutine state (e.g. a refresh interrupting it) can strand
// modules unstarted.
func (e *Executor) Execute(ctx context.Context, plan deploy.Plan, h host.ModuleHost, streams map[string]api.StreamProvider, managed map[api.ModuleId]struct{}, commit CommitFunc) error {
	var g errgroup.Group
	g.Go(func() error {
		return e.run(ctx, plan, h, streams, managed, commit)
	})
	return g.Wait()
}

func (e *Executor) run(ctx context.Context, plan deploy.Plan, h host.ModuleHost, streams map[string]api.StreamProvider, managed map[api.ModuleId]struct{}, commit CommitFunc) error {
	// Phase 1: stop.
	toStop := make([]host.Module, 0, len(plan.ToUpdate)+len(plan.ToDelete))
	for _, u := range plan.ToUpdate {
		toStop = append(toStop, u.Module)
	}
	toStop = append(toStop, plan.ToDelete...)
	toStop = excludeTerminalAndFragments(toStop)
	for _, m := range stopOrder(toStop) {
		if err := h.Stop(ctx, m.ID()); err != nil {
			return errs.Newf(errs.ModuleOperation, "stopping module %s: %v", m.SymbolicName(), err)
		}
	}

	// Phase 2: uninstall.
	outcome := Outcome{
		ResourceToModule: map[api.Resource]host.Module{},
		NewManaged:       map[api.ModuleId]struct{}{},
		Unmanaged:        map[api.ModuleId]struct{}{},
		Checksums:        map[string]uint64{},
	}
	var toRefresh []api.ModuleId
	for _, m := range plan.ToDelete {
		if err := h.Uninstall(ctx, m.ID()); err != nil {
			return errs.Newf(errs.ModuleOperation, "uninstalling module %s: %v", m.SymbolicName(), err)
		}
		outcome.Unmanaged[m.ID()] = struct{}{}
		toRefresh = append(toRefresh, m.ID())
	}

	// Phase 3: update.
	var toStart []api.ModuleId
	for _, u := range plan.ToUpdate {
		if u.Resource.URI == "" {
			return errs.Newf(errs.InvariantViolation, "resource %s in update set has no URI", u.Resource.SymbolicName)
		}
		sp, ok := streams[u.Resource.URI]
		if !ok {
			return errs.Newf(errs.IO, "no stream provider for %s", u.Resource.URI)
		}
		stream, err := sp.Open(ctx, u.Resource.URI)
		if err != nil {
			return errs.Newf(errs.IO, "opening stream for %s: %v", u.Resource.URI, err)
		}
		updateErr := h.Update(ctx, u.Module.ID(), stream)
		stream.Close()
		if updateErr != nil {
			return errs.Newf(errs.ModuleOperation, "updating module %s: %v", u.Module.SymbolicName(), updateErr)
		}
		toRefresh = append(toRefresh, u.Module.ID())
		toStart = append(toStart, u.Module.ID())
		if u.Resource.HasStartLevel {
			if err := h.SetStartLevel(ctx, u.Module.ID(), u.Resource.StartLevel); err != nil {
				return errs.Newf(errs.ModuleOperation, "setting start level for %s: %v", u.Module.SymbolicName(), err)
			}
		}
		outcome.ResourceToModule[u.Resource] = u.Module
		if sum, ok := plan.NewChecksums[u.Resource.URI]; ok {
			outcome.Checksums[u.Resource.URI] = sum
		}
	}

	// Phase 4: install.
	for _, resource := range plan.ToInstall {
		if resource.URI == "" {
			return errs.Newf(errs.InvariantViolation, "resource %s in install set has no URI", resource.SymbolicName)
		}
		sp, ok := streams[resource.URI]
		if !ok {
			return errs.Newf(errs.IO, "no stream provider for %s", resource.URI)
		}
		stream, err := sp.Open(ctx, resource.URI)
		if err != nil {
			return errs.Newf(errs.IO, "opening stream for %s: %v", resource.URI, err)
		}
		id, installErr := h.Install(ctx, resource.SymbolicName, resource.Version, stream, resource.StartLevel, resource.HasStartLevel)
		stream.Close()
		if installErr != nil {
			return errs.Newf(errs.ModuleOperation, "installing %s: %v", resource.SymbolicName, installErr)
		}
		outcome.NewManaged[id] = struct{}{}
		toStart = append(toStart, id)
		outcome.ResourceToModule[resource] = mustModule(h, id)
		if isUpdateableResource(resource) {
			sum, err := streamChecksumVia(ctx, sp, resource.URI)
			if err != nil {
				return errs.Newf(errs.IO, "computing checksum for %s: %v", resource.URI, err)
			}
			outcome.Checksums[resource.URI] = sum
		}
	}
	for k, v := range plan.NewChecksums {
		if _, ok := outcome.Checksums[k]; !ok {
			outcome.Checksums[k] = v
		}
	}

	// Phase 5 + 6: state commit, then configuration installation.
	if commit != nil {
		if err := commit(ctx, outcome); err != nil {
			return err
		}
	}

	// Phase 7: refresh expansion. The managed set reflects this deployment's
	// mutations (newly installed modules join it, uninstalled ones leave it)
	// so the managed/unmanaged widening filter sees accurate classifications
	// even for modules that were already managed before this deployment ran.
	nowManaged := map[api.ModuleId]struct{}{}
	for id := range managed {
		nowManaged[id] = struct{}{}
	}
	for id := range outcome.NewManaged {
		nowManaged[id] = struct{}{}
	}
	for id := range outcome.Unmanaged {
		delete(nowManaged, id)
	}
	toRefresh = expandRefresh(h, toRefresh, e.opt.NoRefreshUnmanaged, e.opt.NoRefreshManaged, nowManaged)

	// Phase 8: refresh.
	if !e.opt.NoRefresh && len(toRefresh) > 0 {
		var refreshModules []host.Module
		for _, id := range toRefresh {
			if m, ok := h.Module(id); ok {
				refreshModules = append(refreshModules, m)
			}
		}
		refreshModules = excludeTerminalAndFragments(refreshModules)
		for _, m := range stopOrder(refreshModules) {
			if err := h.Stop(ctx, m.ID()); err != nil {
				return errs.Newf(errs.ModuleOperation, "stopping module %s for refresh: %v", m.SymbolicName(), err)
			}
			toStart = append(toStart, m.ID())
		}
		handle, err := h.Refresh(ctx, toRefresh)
		if err != nil {
			return errs.Newf(errs.ModuleOperation, "refreshing modules: %v", err)
		}
		if err := handle.Wait(ctx); err != nil {
			return errs.Newf(errs.ModuleOperation, "waiting for refresh: %v", err)
		}
	}

	// Phase 9: start.
	return e.startPhase(ctx, h, toStart)
}

func (e *Executor) startPhase(ctx context.Context, h host.ModuleHost, toStart []api.ModuleId) error {
	seen := map[api.ModuleId]struct{}{}
	var candidates []host.Module
	for _, id := range toStart {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if m, ok := h.Module(id); ok {
			candidates = append(candidates, m)
		}
	}
	candidates = excludeStartSkip(candidates)

	engineID, hasEngine := h.EngineModuleID()
	ordered := startOrder(candidates, engineID, hasEngine)

	var agg errs.MultiError
	for _, m := range ordered {
		if err := h.Start(ctx, m.ID()); err != nil {
			agg.Add(errs.Newf(errs.ModuleOperation, "starting module %s: %v", m.SymbolicName(), err))
			e.log.WithField("module", m.SymbolicName()).WithError(err).Warn("module failed to start")
		}
	}
	return agg.ErrOrNil()
}

// expandRefresh widens toRefresh per spec §4.5 phase 7: (a) modules whose
// unresolved optional imports are now satisfiable by a refreshed provider,
// and (b) modules whose fragment-host matches a host being refreshed.
// Whether the runtime exposes unresolved-optional-import data is
// host-specific; this engine widens only via (b), the edge our ModuleHost
// contract can express (FragmentHost), and documents (a) as unimplemented —
// see DESIGN.md.
//
// noRefreshManaged/noRefreshUnmanaged restrict only this widening step: a
// module explicitly updated or uninstalled this deployment is always
// refreshed regardless of the flags (that module is already in toRefresh
// before widening runs), since otherwise the default tunables — both flags
// true, spec §6 — would silently skip phase 8 for every ordinary update.
// The flags instead decide whether a *fragment-host match discovered by
// widening* is worth an extra refresh when that match happens to be
// managed (noRefreshManaged) or unmanaged (noRefreshUnmanaged).
func expandRefresh(h host.ModuleHost, toRefresh []api.ModuleId, noRefreshUnmanaged, noRefreshManaged bool, managed map[api.ModuleId]struct{}) []api.ModuleId {
	refreshingHosts := map[string]struct{}{}
	for _, id := range toRefresh {
		if m, ok := h.Module(id); ok {
			refreshingHosts[m.SymbolicName()] = struct{}{}
		}
	}

	out := append([]api.ModuleId{}, toRefresh...)
	seen := map[api.ModuleId]struct{}{}
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, m := range h.Modules() {
		if !m.IsFragment() {
			continue
		}
		if _, ok := refreshingHosts[m.FragmentHost()]; !ok {
			continue
		}
		if _, dup := seen[m.ID()]; dup {
			continue
		}
		_, isManaged := managed[m.ID()]
		if isManaged && noRefreshManaged {
			continue
		}
		if !isManaged && noRefreshUnmanaged {
			continue
		}
		seen[m.ID()] = struct{}{}
		out = append(out, m.ID())
	}
	return out
}

func mustModule(h host.ModuleHost, id api.ModuleId) host.Module {
	m, _ := h.Module(id)
	return m
}

// isUpdateableResource mirrors deploy's snapshot predicate (spec §4.4): a
// snapshot qualifier, a SNAPSHOT marker in the URI, or a non-Maven-scheme
// URI. Only updateable, freshly installed resources need a checksum seeded
// so later redeployments can detect in-place content changes.
func isUpdateableResource(r api.Resource) bool {
	if r.URI == "" {
		return false
	}
	if strings.HasSuffix(r.Version, "SNAPSHOT") {
		return true
	}
	if strings.Contains(r.URI, "SNAPSHOT") {
		return true
	}
	return !strings.Contains(r.URI, "mvn:")
}

func streamChecksumVia(ctx context.Context, sp api.StreamProvider, uri string) (uint64, error) {
	rc, err := sp.Open(ctx, uri)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	h := fnv.New64a()
	if _, err := io.Copy(h, rc); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
