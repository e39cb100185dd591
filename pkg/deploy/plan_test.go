package deploy

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/host"
	fakehost "github.com/operator-framework/feature-engine/pkg/host/fake"
)

type constStream string

func (c constStream) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(c))), nil
}

func TestPlanFreshInstall(t *testing.T) {
	// Scenario 1: empty host, one resource b/1.0.0 at mvn:x/b/1.0.0.
	resource := api.Resource{SymbolicName: "b", Version: "1.0.0", URI: "mvn:x/b/1.0.0"}
	in := Input{
		ResolvedResources: []api.Resource{resource},
		UpdateSnapshots:   true,
		BundleUpdateRange: "[==,=+)",
	}
	plan, err := NewPlanner().Plan(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []api.Resource{resource}, plan.ToInstall)
	assert.Empty(t, plan.ToUpdate)
	assert.Empty(t, plan.ToDelete)
}

func TestPlanSnapshotUpdate(t *testing.T) {
	// Scenario 2: b/1.0.0.SNAPSHOT already installed and managed; redeploy
	// with different content must classify it as an update.
	h := fakehost.NewHost()
	id := h.Seed("b", "1.0.0-SNAPSHOT", host.Active, nil, nil)
	m, _ := h.Module(id)

	resource := api.Resource{SymbolicName: "b", Version: "1.0.0-SNAPSHOT", URI: "mvn:x/b/1.0.0-SNAPSHOT"}
	in := Input{
		ResolvedResources: []api.Resource{resource},
		LiveModules:       []host.Module{m},
		ManagedModules:    map[api.ModuleId]struct{}{id: {}},
		OldChecksums:      map[string]uint64{resource.URI: 111},
		UpdateSnapshots:   true,
		BundleUpdateRange: "[==,=+)",
		Streams:           map[string]api.StreamProvider{resource.URI: constStream("new content")},
	}
	plan, err := NewPlanner().Plan(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, plan.ToUpdate, 1)
	assert.Equal(t, resource, plan.ToUpdate[0].Resource)
	assert.Empty(t, plan.ToInstall)
	assert.Empty(t, plan.ToDelete)
	assert.NotEqual(t, uint64(111), plan.NewChecksums[resource.URI])
}

func TestPlanChecksumRoundTripLeavesModuleAlone(t *testing.T) {
	h := fakehost.NewHost()
	id := h.Seed("b", "1.0.0-SNAPSHOT", host.Active, nil, nil)
	m, _ := h.Module(id)

	resource := api.Resource{SymbolicName: "b", Version: "1.0.0-SNAPSHOT", URI: "mvn:x/b/1.0.0-SNAPSHOT"}
	stream := constStream("unchanged content")
	oldSum, err := streamChecksum(context.Background(), stream, resource.URI)
	require.NoError(t, err)

	in := Input{
		ResolvedResources: []api.Resource{resource},
		LiveModules:       []host.Module{m},
		ManagedModules:    map[api.ModuleId]struct{}{id: {}},
		OldChecksums:      map[string]uint64{resource.URI: oldSum},
		UpdateSnapshots:   true,
		BundleUpdateRange: "[==,=+)",
		Streams:           map[string]api.StreamProvider{resource.URI: stream},
	}
	plan, err := NewPlanner().Plan(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, plan.ToUpdate)
	assert.Empty(t, plan.ToDelete)
}

func TestPlanUnmanagedModuleNeverDeletedOrUpdated(t *testing.T) {
	h := fakehost.NewHost()
	id := h.Seed("unmanaged", "1.0.0", host.Active, nil, nil)
	m, _ := h.Module(id)

	in := Input{
		ResolvedResources: nil, // nothing resolved, so the live module has no match
		LiveModules:       []host.Module{m},
		ManagedModules:    map[api.ModuleId]struct{}{}, // not managed
	}
	plan, err := NewPlanner().Plan(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, plan.ToDelete)
	assert.Empty(t, plan.ToUpdate)
}

func TestPlanVersionRangeRehoming(t *testing.T) {
	h := fakehost.NewHost()
	id := h.Seed("b", "1.2.5", host.Active, nil, nil)
	m, _ := h.Module(id)

	// No resource matches 1.2.5 by identity, so it becomes a delete
	// candidate; the resolved 1.2.9 resource should reclaim it as an
	// update via the bundle-update-range macro instead of installing
	// fresh and deleting the old module.
	resource := api.Resource{SymbolicName: "b", Version: "1.2.9", URI: "mvn:x/b/1.2.9"}
	in := Input{
		ResolvedResources: []api.Resource{resource},
		LiveModules:       []host.Module{m},
		ManagedModules:    map[api.ModuleId]struct{}{id: {}},
		BundleUpdateRange: "[==,=+)",
	}
	plan, err := NewPlanner().Plan(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, plan.ToUpdate, 1)
	assert.Equal(t, "b", plan.ToUpdate[0].Module.SymbolicName())
	assert.Empty(t, plan.ToDelete)
	assert.Empty(t, plan.ToInstall)
}
