package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/feature-engine/pkg/api"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.yaml")
	store := New(path)

	f1, err := api.ParseFeatureId("f/1.0.0")
	require.NoError(t, err)

	st := api.NewEngineState()
	st.RequiredFeatures[f1] = struct{}{}
	st.InstalledFeatures[f1] = struct{}{}
	st.ManagedModules[api.ModuleId(7)] = struct{}{}
	st.ModuleChecksums["mvn:x/b/1.0.0"] = 42
	st.BootDone = true

	require.NoError(t, store.Save(st))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, st.RequiredFeatures, loaded.RequiredFeatures)
	assert.Equal(t, st.InstalledFeatures, loaded.InstalledFeatures)
	assert.Equal(t, st.ManagedModules, loaded.ManagedModules)
	assert.Equal(t, st.ModuleChecksums, loaded.ModuleChecksums)
	assert.True(t, loaded.BootDone)
}

func TestSaveIsStableAcrossRepeatedCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	store := New(path)

	fa, err := api.ParseFeatureId("a/1.0.0")
	require.NoError(t, err)
	fb, err := api.ParseFeatureId("b/1.0.0")
	require.NoError(t, err)

	st := api.NewEngineState()
	st.RequiredFeatures[fa] = struct{}{}
	st.RequiredFeatures[fb] = struct{}{}
	st.ManagedModules[api.ModuleId(3)] = struct{}{}
	st.ManagedModules[api.ModuleId(1)] = struct{}{}
	st.ManagedModules[api.ModuleId(2)] = struct{}{}

	require.NoError(t, store.Save(st))
	raw1, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(st))
	raw2, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(raw1), string(raw2), "identical state must marshal to byte-identical output across saves")
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "absent.yaml"))
	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.RequiredFeatures)
	assert.False(t, st.BootDone)
}
