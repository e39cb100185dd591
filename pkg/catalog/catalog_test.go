package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/events"
)

// memLoader is a fixed in-memory RepositoryLoader for tests, avoiding disk
// fixtures for the repository-graph traversal tests.
type memLoader map[string]api.Repository

func (m memLoader) Load(ctx context.Context, uri string) (api.Repository, error) {
	repo, ok := m[uri]
	if !ok {
		return api.Repository{}, fmt.Errorf("not found: %s", uri)
	}
	return repo, nil
}

func mustVersion(t *testing.T, s string) api.FeatureId {
	id, err := api.ParseFeatureId(s)
	require.NoError(t, err)
	return id
}

func TestCrossRepositoryDependency(t *testing.T) {
	// Scenario 5: root R1 references R2; R2 defines "f". AddRepository(R1)
	// alone must make "f" resolvable.
	fFeature := api.Feature{Name: "f", Version: mustVersion(t, "f/1.0.0").Version}
	loader := memLoader{
		"r1": {URI: "r1", ReferencedRepositories: []string{"r2"}},
		"r2": {URI: "r2", Features: []api.Feature{fFeature}},
	}
	cat := New(loader, events.NewBus(), logrus.New())
	require.NoError(t, cat.AddRepository(context.Background(), "r1"))

	matcher := NewFeatureMatcher(cat)
	f, err := matcher.Match(context.Background(), "f", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", f.Version.String())
}

func TestFeatureMatcherPrefersHighestVersion(t *testing.T) {
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{Name: "f", Version: mustVersion(t, "f/1.0.0").Version},
				{Name: "f", Version: mustVersion(t, "f/2.0.0").Version},
			},
		},
	}
	cat := New(loader, events.NewBus(), logrus.New())
	require.NoError(t, cat.AddRepository(context.Background(), "r1"))

	matcher := NewFeatureMatcher(cat)
	f, err := matcher.Match(context.Background(), "f", "")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", f.Version.String())
}

func TestFeatureMatcherLiteralVersion(t *testing.T) {
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{Name: "f", Version: mustVersion(t, "f/1.0.0").Version},
				{Name: "f", Version: mustVersion(t, "f/2.0.0").Version},
			},
		},
	}
	cat := New(loader, events.NewBus(), logrus.New())
	require.NoError(t, cat.AddRepository(context.Background(), "r1"))

	matcher := NewFeatureMatcher(cat)
	f, err := matcher.Match(context.Background(), "f", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", f.Version.String())
}

func TestRemoveRepositoryEvictsUnreachable(t *testing.T) {
	loader := memLoader{
		"r1": {URI: "r1", ReferencedRepositories: []string{"shared"}},
		"r2": {URI: "r2", ReferencedRepositories: []string{"shared"}},
		"shared": {URI: "shared", Features: []api.Feature{
			{Name: "g", Version: mustVersion(t, "g/1.0.0").Version},
		}},
	}
	cat := New(loader, events.NewBus(), logrus.New())
	ctx := context.Background()
	require.NoError(t, cat.AddRepository(ctx, "r1"))
	require.NoError(t, cat.AddRepository(ctx, "r2"))

	require.NoError(t, cat.RemoveRepository(ctx, "r1"))
	// shared is still reachable via r2, so "g" must still resolve.
	matcher := NewFeatureMatcher(cat)
	_, err := matcher.Match(ctx, "g", "")
	require.NoError(t, err)

	require.NoError(t, cat.RemoveRepository(ctx, "r2"))
	_, err = matcher.Match(ctx, "g", "")
	assert.Error(t, err)
}

func TestAddRepositoryIsNoopWhenAlreadyPresent(t *testing.T) {
	loader := memLoader{"r1": {URI: "r1"}}
	cat := New(loader, events.NewBus(), logrus.New())
	ctx := context.Background()
	require.NoError(t, cat.AddRepository(ctx, "r1"))
	require.NoError(t, cat.AddRepository(ctx, "r1"))
	assert.Len(t, cat.roots, 1)
}
