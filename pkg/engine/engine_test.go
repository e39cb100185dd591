package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/catalog"
	"github.com/operator-framework/feature-engine/pkg/errs"
	"github.com/operator-framework/feature-engine/pkg/events"
	fakehost "github.com/operator-framework/feature-engine/pkg/host/fake"
	"github.com/operator-framework/feature-engine/pkg/resolver"
)

// memLoader is a fixed in-memory RepositoryLoader, avoiding disk fixtures.
type memLoader map[string]api.Repository

func (m memLoader) Load(ctx context.Context, uri string) (api.Repository, error) {
	repo, ok := m[uri]
	if !ok {
		return api.Repository{}, fmt.Errorf("not found: %s", uri)
	}
	return repo, nil
}

// constStream always serves the same content, for tests that don't care
// about bundle bytes.
type constStream string

func (c constStream) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(c))), nil
}

func mustFeatureId(t *testing.T, s string) api.FeatureId {
	id, err := api.ParseFeatureId(s)
	require.NoError(t, err)
	return id
}

func newTestEngine(t *testing.T, loader memLoader) (*Engine, *fakehost.Host) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	bus := events.NewBus()
	cat := catalog.New(loader, bus, log)
	matcher := catalog.NewFeatureMatcher(cat)
	r := resolver.NewCatalogResolver(matcher, constStream("content"))
	h := fakehost.NewHost()

	cfg := NewConfig(WithStatePath(t.TempDir() + "/state.yaml"))
	e, err := New(context.Background(), cfg, log, cat, r, h, nil)
	require.NoError(t, err)
	require.NoError(t, e.AddRepository(context.Background(), "r1"))
	return e, h
}

func TestFreshInstall(t *testing.T) {
	// Scenario 1: feature f/1.0 requires one bundle b/1.0.0.
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{
					Name:    "f",
					Version: mustFeatureId(t, "f/1.0.0").Version,
					Bundles: []api.BundleRef{{Location: "mvn:x/b/1.0.0"}},
				},
			},
		},
	}
	e, h := newTestEngine(t, loader)

	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))

	installed := e.ListInstalled()
	require.Len(t, installed, 1)
	assert.Equal(t, "f/1.0.0", installed[0].String())

	modules := h.Modules()
	require.Len(t, modules, 1)
	assert.Equal(t, "mvn:x/b/1.0.0", modules[0].SymbolicName())
}

func TestInstallIsIdempotent(t *testing.T) {
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{
					Name:    "f",
					Version: mustFeatureId(t, "f/1.0.0").Version,
					Bundles: []api.BundleRef{{Location: "mvn:x/b/1.0.0"}},
				},
			},
		},
	}
	e, h := newTestEngine(t, loader)

	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))
	callsAfterFirst := len(h.Calls)

	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))
	assert.Equal(t, callsAfterFirst, len(h.Calls), "second install of the same feature must perform zero module operations")
}

func TestInstallThenUninstallReturnsToEmptyState(t *testing.T) {
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{
					Name:    "f",
					Version: mustFeatureId(t, "f/1.0.0").Version,
					Bundles: []api.BundleRef{{Location: "mvn:x/b/1.0.0"}},
				},
			},
		},
	}
	e, _ := newTestEngine(t, loader)

	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))
	require.NoError(t, e.Uninstall(context.Background(), "f/1.0.0"))

	assert.Empty(t, e.ListInstalled())
	assert.Empty(t, e.ListRequired())
}

func TestUninstallAmbiguousWithoutVersion(t *testing.T) {
	// Scenario 4: f/1.0 and f/2.0 both required; uninstall("f") must fail
	// with Ambiguous and leave state unchanged.
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{Name: "f", Version: mustFeatureId(t, "f/1.0.0").Version},
				{Name: "f", Version: mustFeatureId(t, "f/2.0.0").Version},
			},
		},
	}
	e, _ := newTestEngine(t, loader)

	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))
	require.NoError(t, e.Install(context.Background(), "f/2.0.0"))

	err := e.Uninstall(context.Background(), "f")
	require.Error(t, err)
	assert.Equal(t, errs.Ambiguous, errs.KindOf(err))
	assert.Len(t, e.ListRequired(), 2)
}

func TestCrossRepositoryDependencyInstallsWithoutExplicitAdd(t *testing.T) {
	// Scenario 5: root R1 references R2; R2 defines f. AddRepository(R1)
	// alone must make f installable.
	loader := memLoader{
		"r1": {URI: "r1", ReferencedRepositories: []string{"r2"}},
		"r2": {
			URI: "r2",
			Features: []api.Feature{
				{
					Name:    "f",
					Version: mustFeatureId(t, "f/1.0.0").Version,
					Bundles: []api.BundleRef{{Location: "mvn:x/b/1.0.0"}},
				},
			},
		},
	}
	e, _ := newTestEngine(t, loader)
	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))
	assert.Len(t, e.ListInstalled(), 1)
}

func TestInstallWithMultipleBundles(t *testing.T) {
	// Supporting case for scenario 6 (aggregate start-error reporting,
	// exercised directly in pkg/exec/executor_test.go): the engine must
	// install and start every bundle a feature declares in one call.
	loader := memLoader{
		"r1": {
			URI: "r1",
			Features: []api.Feature{
				{
					Name:    "f",
					Version: mustFeatureId(t, "f/1.0.0").Version,
					Bundles: []api.BundleRef{
						{Location: "mvn:x/b1/1.0.0"},
						{Location: "mvn:x/b2/1.0.0"},
						{Location: "mvn:x/b3/1.0.0"},
					},
				},
			},
		},
	}
	e, h := newTestEngine(t, loader)

	require.NoError(t, e.Install(context.Background(), "f/1.0.0"))
	assert.Len(t, h.Modules(), 3)
	for _, m := range h.Modules() {
		assert.Equal(t, "ACTIVE", m.State().String())
	}
}
