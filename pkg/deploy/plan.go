// Package deploy implements the DeploymentPlanner: the diff between a
// resolved target resource set and the live modules on the ModuleHost
// (spec §4.4).
package deploy

import (
	"context"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/errs"
	"github.com/operator-framework/feature-engine/pkg/host"
	"github.com/operator-framework/feature-engine/pkg/version"
)

// Update pairs a resource with the live module it will update.
type Update struct {
	Module   host.Module
	Resource api.Resource
}

// Plan is the DeploymentPlanner's output (spec §4.4).
type Plan struct {
	ToInstall       []api.Resource
	ToUpdate        []Update
	ToDelete        []host.Module
	ResourceToModule map[api.Resource]host.Module
	NewChecksums    map[string]uint64 // keyed by module/resource location
}

// Input bundles the DeploymentPlanner's arguments (spec §4.4).
type Input struct {
	ResolvedResources []api.Resource
	LiveModules       []host.Module
	ManagedModules    map[api.ModuleId]struct{}
	OldChecksums      map[string]uint64
	UpdateSnapshots   bool
	BundleUpdateRange string
	Streams           map[string]api.StreamProvider // keyed by resource URI
}

// Planner computes deployment diffs.
type Planner struct{}

// NewPlanner returns a Planner. It is stateless; all inputs are provided
// per call.
func NewPlanner() Planner { return Planner{} }

// Plan runs the two-pass algorithm of spec §4.4.
func (Planner) Plan(ctx context.Context, in Input) (Plan, error) {
	plan := Plan{
		ResourceToModule: map[api.Resource]host.Module{},
		NewChecksums:     map[string]uint64{},
	}

	toDeploy := make([]api.Resource, len(in.ResolvedResources))
	copy(toDeploy, in.ResolvedResources)

	// Pass 1 — match by identity.
	for _, m := range in.LiveModules {
		if m.SymbolicName() == "" || m.ID() == 0 {
			continue // the system/engine module is immune
		}
		idx, resource, found := findByIdentity(toDeploy, m)
		managed := isManaged(in.ManagedModules, m.ID())
		if found {
			if isUpdateable(resource) && in.UpdateSnapshots && managed {
				newSum, err := checksumOf(ctx, resource, in.Streams)
				if err != nil {
					return Plan{}, err
				}
				oldSum := in.OldChecksums[resource.URI]
				if newSum != oldSum {
					plan.ToUpdate = append(plan.ToUpdate, Update{Module: m, Resource: resource})
					plan.NewChecksums[resource.URI] = newSum
				} else {
					plan.NewChecksums[resource.URI] = oldSum
				}
			}
			plan.ResourceToModule[resource] = m
			toDeploy = removeAt(toDeploy, idx)
			continue
		}
		if managed {
			plan.ToDelete = append(plan.ToDelete, m)
		}
	}

	// Pass 2 — version-range rehoming.
	for _, resource := range toDeploy {
		if resource.IsFeatureNamespaced() {
			continue // a resolved-feature placeholder has no module to install
		}
		macro := in.BundleUpdateRange
		if macro == "" {
			macro = "[==,=+)"
		}
		rv, err := version.Parse(resource.Version)
		if err != nil {
			plan.ToInstall = append(plan.ToInstall, resource)
			continue
		}
		rng, err := version.ApplyMacro(macro, rv)
		if err != nil {
			return Plan{}, errs.Newf(errs.InvariantViolation, "invalid bundle update range %q: %v", macro, err)
		}

		idx := -1
		for i, m := range plan.ToDelete {
			if m.SymbolicName() != resource.SymbolicName {
				continue
			}
			mv, err := version.Parse(m.Version())
			if err != nil || !rng.Contains(mv) {
				continue
			}
			if idx == -1 {
				idx = i
				continue
			}
			cur, _ := version.Parse(plan.ToDelete[idx].Version())
			if mv.GT(cur) {
				idx = i
			}
		}
		if idx == -1 {
			plan.ToInstall = append(plan.ToInstall, resource)
			continue
		}
		reclaimed := plan.ToDelete[idx]
		plan.ToDelete = append(plan.ToDelete[:idx], plan.ToDelete[idx+1:]...)
		plan.ToUpdate = append(plan.ToUpdate, Update{Module: reclaimed, Resource: resource})
		if isUpdateable(resource) {
			sum, err := checksumOf(ctx, resource, in.Streams)
			if err != nil {
				return Plan{}, err
			}
			plan.NewChecksums[resource.URI] = sum
		}
	}

	sortPlan(&plan)
	return plan, nil
}

func isManaged(managed map[api.ModuleId]struct{}, id api.ModuleId) bool {
	_, ok := managed[id]
	return ok
}

func findByIdentity(candidates []api.Resource, m host.Module) (int, api.Resource, bool) {
	for i, r := range candidates {
		if r.SymbolicName == m.SymbolicName() && r.Version == m.Version() {
			return i, r, true
		}
	}
	return -1, api.Resource{}, false
}

func removeAt(resources []api.Resource, idx int) []api.Resource {
	out := make([]api.Resource, 0, len(resources)-1)
	out = append(out, resources[:idx]...)
	out = append(out, resources[idx+1:]...)
	return out
}

// isUpdateable implements the predicate of spec §4.4: a snapshot
// qualifier, a SNAPSHOT marker in the URI, or a non-Maven-scheme URI (an
// unpinned source assumed mutable).
func isUpdateable(r api.Resource) bool {
	if strings.HasSuffix(r.Version, "SNAPSHOT") {
		return true
	}
	if strings.Contains(r.URI, "SNAPSHOT") {
		return true
	}
	return !strings.Contains(r.URI, "mvn:")
}

// checksumOf computes a content fingerprint for r: from its stream when
// one is available, or a structural hash of its identifying fields
// otherwise (e.g. a feature-namespaced resource with no backing URI).
func checksumOf(ctx context.Context, r api.Resource, streams map[string]api.StreamProvider) (uint64, error) {
	if r.URI != "" {
		if sp, ok := streams[r.URI]; ok {
			sum, err := streamChecksum(ctx, sp, r.URI)
			if err != nil {
				return 0, errs.Newf(errs.IO, "computing checksum for %s: %v", r.URI, err)
			}
			return sum, nil
		}
	}
	sum, err := hashstructure.Hash(r, nil)
	if err != nil {
		return 0, errs.Newf(errs.IO, "hashing resource %s: %v", r.SymbolicName, err)
	}
	return sum, nil
}

func sortPlan(p *Plan) {
	sort.Slice(p.ToInstall, func(i, j int) bool { return p.ToInstall[i].SymbolicName < p.ToInstall[j].SymbolicName })
	sort.Slice(p.ToUpdate, func(i, j int) bool {
		return p.ToUpdate[i].Resource.SymbolicName < p.ToUpdate[j].Resource.SymbolicName
	})
	sort.Slice(p.ToDelete, func(i, j int) bool { return p.ToDelete[i].SymbolicName() < p.ToDelete[j].SymbolicName() })
}
