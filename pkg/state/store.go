// Package state persists api.EngineState across restarts. The on-disk
// layout is an implementation-defined YAML document (spec §6: "format is
// implementation-defined but must round-trip the five fields losslessly"),
// following the teacher's use of gopkg.in/yaml.v2 for on-disk documents.
package state

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/errs"
)

// document is the YAML-serializable projection of api.EngineState. Sets
// are represented as sorted string slices so the file is stable across
// saves with the same content.
type document struct {
	RequiredFeatures  []string         `yaml:"requiredFeatures"`
	InstalledFeatures []string         `yaml:"installedFeatures"`
	ManagedModules    []uint64         `yaml:"managedModules"`
	ModuleChecksums   map[string]uint64 `yaml:"moduleChecksums"`
	BootDone          bool             `yaml:"bootDone"`
}

// Store loads and saves EngineState to a single path on disk.
type Store struct {
	path string
}

// New returns a Store backed by path. No file I/O happens until Load/Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns a zero-value EngineState, not an error, when the backing
// file does not exist yet — a fresh engine must boot cleanly.
func (s *Store) Load() (api.EngineState, error) {
	st := api.NewEngineState()
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, errs.Newf(errs.IO, "reading state file %s: %v", s.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return st, errs.Newf(errs.IO, "parsing state file %s: %v", s.path, err)
	}
	for _, fs := range doc.RequiredFeatures {
		id, err := api.ParseFeatureId(fs)
		if err != nil {
			return st, errs.Newf(errs.IO, "state file %s: %v", fs, err)
		}
		st.RequiredFeatures[id] = struct{}{}
	}
	for _, fs := range doc.InstalledFeatures {
		id, err := api.ParseFeatureId(fs)
		if err != nil {
			return st, errs.Newf(errs.IO, "state file %s: %v", fs, err)
		}
		st.InstalledFeatures[id] = struct{}{}
	}
	for _, id := range doc.ManagedModules {
		st.ManagedModules[api.ModuleId(id)] = struct{}{}
	}
	for loc, sum := range doc.ModuleChecksums {
		st.ModuleChecksums[loc] = sum
	}
	st.BootDone = doc.BootDone
	return st, nil
}

// Save atomically rewrites the state file: write to a temp file in the
// same directory, then rename over the target, so a crash mid-write never
// leaves a truncated or partially-written file in place (spec §3: "a
// deployment ... is undone by a future reconciliation — there is no
// partial commit").
func (s *Store) Save(st api.EngineState) error {
	doc := document{
		ManagedModules:  make([]uint64, 0, len(st.ManagedModules)),
		ModuleChecksums: make(map[string]uint64, len(st.ModuleChecksums)),
	}
	for id := range st.RequiredFeatures {
		doc.RequiredFeatures = append(doc.RequiredFeatures, id.String())
	}
	for id := range st.InstalledFeatures {
		doc.InstalledFeatures = append(doc.InstalledFeatures, id.String())
	}
	for id := range st.ManagedModules {
		doc.ManagedModules = append(doc.ManagedModules, uint64(id))
	}
	for loc, sum := range st.ModuleChecksums {
		doc.ModuleChecksums[loc] = sum
	}
	doc.BootDone = st.BootDone

	sort.Strings(doc.RequiredFeatures)
	sort.Strings(doc.InstalledFeatures)
	sort.Slice(doc.ManagedModules, func(i, j int) bool { return doc.ManagedModules[i] < doc.ManagedModules[j] })

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return errs.Newf(errs.IO, "marshaling state: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Newf(errs.IO, "creating state directory %s: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return errs.Newf(errs.IO, "creating temp state file: %v", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Newf(errs.IO, "writing temp state file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Newf(errs.IO, "closing temp state file: %v", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errs.Newf(errs.IO, "renaming temp state file into place: %v", err)
	}
	return nil
}
