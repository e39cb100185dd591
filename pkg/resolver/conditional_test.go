package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/version"
)

func featureId(t *testing.T, s string) api.FeatureId {
	id, err := api.ParseFeatureId(s)
	require.NoError(t, err)
	return id
}

func TestConditionalExpansionFixpoint(t *testing.T) {
	// Scenario 3: f/1.0 has a conditional triggered by g in range
	// (1.0,2.0]... here modeled via TriggerRange(1.0.0), contributing
	// bundle h. Installing {f, g/1.5} must produce the synthetic id.
	fID := featureId(t, "f/1.0.0")
	gTriggerVersion, err := version.Parse("1.0.0")
	require.NoError(t, err)

	fFeature := api.Feature{
		Name:    "f",
		Version: fID.Version,
		Conditionals: []api.Conditional{
			{
				Triggers: []api.FeatureRef{{Name: "g", Range: version.TriggerRange(gTriggerVersion)}},
				Bundles:  []api.BundleRef{{Location: "mvn:x/h/1.0.0"}},
			},
		},
	}

	lookup := FeatureLookup(func(id api.FeatureId) (api.Feature, bool) {
		if id == fID {
			return fFeature, true
		}
		return api.Feature{}, false
	})

	gID := featureId(t, "g/1.5.0")
	installed := map[api.FeatureId]struct{}{fID: {}, gID: {}}

	additions, synthetic := (ConditionalExpander{}).Expand(installed, lookup)

	require.Len(t, additions, 1)
	var syntheticID api.FeatureId
	for id := range additions {
		syntheticID = id
	}
	assert.Equal(t, "f-condition-0", syntheticID.Name)
	assert.Equal(t, fID.Version, syntheticID.Version)

	synFeature, ok := synthetic[syntheticID]
	require.True(t, ok)
	require.Len(t, synFeature.Bundles, 1)
	assert.Equal(t, "mvn:x/h/1.0.0", synFeature.Bundles[0].Location)
}

func TestConditionalNotTriggeredWhenTriggerAbsent(t *testing.T) {
	fID := featureId(t, "f/1.0.0")
	triggerVersion, _ := version.Parse("1.0.0")
	fFeature := api.Feature{
		Name:    "f",
		Version: fID.Version,
		Conditionals: []api.Conditional{
			{Triggers: []api.FeatureRef{{Name: "g", Range: version.TriggerRange(triggerVersion)}}},
		},
	}
	lookup := FeatureLookup(func(id api.FeatureId) (api.Feature, bool) {
		if id == fID {
			return fFeature, true
		}
		return api.Feature{}, false
	})

	installed := map[api.FeatureId]struct{}{fID: {}}
	additions, _ := (ConditionalExpander{}).Expand(installed, lookup)
	assert.Empty(t, additions)
}

func TestConditionalTriggerIsLowerExclusive(t *testing.T) {
	fID := featureId(t, "f/1.0.0")
	triggerVersion, _ := version.Parse("1.0.0")
	fFeature := api.Feature{
		Name:    "f",
		Version: fID.Version,
		Conditionals: []api.Conditional{
			{Triggers: []api.FeatureRef{{Name: "g", Range: version.TriggerRange(triggerVersion)}}},
		},
	}
	lookup := FeatureLookup(func(id api.FeatureId) (api.Feature, bool) {
		if id == fID {
			return fFeature, true
		}
		return api.Feature{}, false
	})

	// g installed at exactly the trigger version must NOT satisfy it.
	gID := featureId(t, "g/1.0.0")
	installed := map[api.FeatureId]struct{}{fID: {}, gID: {}}
	additions, _ := (ConditionalExpander{}).Expand(installed, lookup)
	assert.Empty(t, additions)
}
