// Package resolver declares the Resolver contract (an external
// collaborator per spec §4.2) and implements the ConditionalExpander
// fixpoint described in spec §4.3.
package resolver

import (
	"context"

	"github.com/operator-framework/feature-engine/pkg/api"
)

// Resolver produces the concrete resource set satisfying a feature set
// given system capabilities. Implementations are external collaborators;
// the resolver backend that picks concrete modules from capability and
// requirement constraints is out of scope (spec §1). Resolver is invoked
// twice when conditionals exist (spec §4.2); implementations may memoize
// between calls keyed on the sorted feature-id set.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Result, error)
}

// Request is the Resolver's input (spec §4.2). ExtraFeatures supplements
// the catalog with feature definitions that are not catalog entries — the
// synthetic conditional features the ConditionalExpander produces between
// the resolver's first and second pass (spec §4.3) — so the second pass
// can resolve a target id the catalog itself does not define.
type Request struct {
	TargetFeatureIDs       map[api.FeatureId]struct{}
	Overrides              map[string]struct{} // override URIs
	SystemCapabilities     []api.Resource
	FeatureResolutionRange string
	ExtraFeatures          map[api.FeatureId]api.Feature
}

// Result is the Resolver's output (spec §4.2).
type Result struct {
	AllResources    []api.Resource
	StreamProviders map[string]api.StreamProvider // keyed by URI
}

// InstalledFeatures returns the set of feature ids represented among
// result's feature-namespaced resources.
func (r Result) InstalledFeatures() map[api.FeatureId]struct{} {
	out := map[api.FeatureId]struct{}{}
	for _, res := range r.AllResources {
		if !res.IsFeatureNamespaced() {
			continue
		}
		id, err := api.ParseFeatureId(res.FeatureName + "/" + res.FeatureVersion)
		if err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
