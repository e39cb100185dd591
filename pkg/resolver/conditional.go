package resolver

import "github.com/operator-framework/feature-engine/pkg/api"

// FeatureLookup resolves a feature id to its declaration, backed by the
// catalog.
type FeatureLookup func(id api.FeatureId) (api.Feature, bool)

// ConditionalExpander computes the single-pass fixpoint expansion of spec
// §4.3/§4.4: for each installed feature F, for each conditional C in F, if
// every trigger in C is satisfied by some installed feature in the
// current set, the synthetic conditional id is added to the feature set.
//
// This intentionally performs only one pass: if the resolver's second
// invocation (with the expanded set) produces additional installed
// features whose own conditionals would now trigger, those are not
// expanded further. This is the documented limitation of spec §9(a) —
// nested conditional triggering is not supported, and must not be "fixed"
// by looping here.
type ConditionalExpander struct{}

// Expand returns the synthetic ids to add to the feature set, and the
// synthetic api.Feature declarations to pass as the next Request's
// ExtraFeatures (each a stand-in feature whose bundles/configurations are
// the conditional's).
func (ConditionalExpander) Expand(installed map[api.FeatureId]struct{}, lookup FeatureLookup) (additions map[api.FeatureId]struct{}, synthetic map[api.FeatureId]api.Feature) {
	additions = map[api.FeatureId]struct{}{}
	synthetic = map[api.FeatureId]api.Feature{}

	for id := range installed {
		feature, ok := lookup(id)
		if !ok {
			continue
		}
		for i, cond := range feature.Conditionals {
			syntheticID := cond.SyntheticId(id, i)
			if !triggersSatisfied(cond, installed) {
				continue
			}
			additions[syntheticID] = struct{}{}
			synthetic[syntheticID] = api.Feature{
				Name:           syntheticID.Name,
				Version:        syntheticID.Version,
				Bundles:        cond.Bundles,
				Configurations: cond.Configurations,
			}
		}
	}
	return additions, synthetic
}

func triggersSatisfied(cond api.Conditional, installed map[api.FeatureId]struct{}) bool {
	for _, trigger := range cond.Triggers {
		if !anyInstalledSatisfies(trigger, installed) {
			return false
		}
	}
	return true
}

func anyInstalledSatisfies(trigger api.FeatureRef, installed map[api.FeatureId]struct{}) bool {
	for id := range installed {
		if id.Name == trigger.Name && trigger.Range.Contains(id.Version) {
			return true
		}
	}
	return false
}
