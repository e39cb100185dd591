package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/errs"
	"github.com/operator-framework/feature-engine/pkg/version"
)

// yamlRepository is the on-disk document shape for a repository. The wire
// format is implementation-defined (spec §6); YAML is used here since the
// engine already carries gopkg.in/yaml.v2 for StateStore and the teacher's
// own fixture documents follow the same library.
type yamlRepository struct {
	Name                   string              `yaml:"name"`
	ReferencedRepositories []string            `yaml:"referencedRepositories"`
	Features               []yamlFeature       `yaml:"features"`
}

type yamlFeature struct {
	Name           string            `yaml:"name"`
	Version        string            `yaml:"version"`
	Bundles        []yamlBundle      `yaml:"bundles"`
	Dependencies   []yamlFeatureRef  `yaml:"dependencies"`
	Conditionals   []yamlConditional `yaml:"conditionals"`
	Configurations []yamlConfig      `yaml:"configurations"`
}

type yamlBundle struct {
	Location   string `yaml:"location"`
	StartLevel *uint32 `yaml:"startLevel"`
	Dependency bool   `yaml:"dependency"`
}

type yamlFeatureRef struct {
	Name  string `yaml:"name"`
	Range string `yaml:"range"`
}

type yamlConditional struct {
	Triggers       []yamlFeatureRef `yaml:"triggers"`
	Bundles        []yamlBundle     `yaml:"bundles"`
	Configurations []yamlConfig     `yaml:"configurations"`
}

type yamlConfig struct {
	PID  string            `yaml:"pid"`
	Data map[string]string `yaml:"data"`
}

// FileLoader is a RepositoryLoader that reads a repository document from a
// local YAML file; uri is interpreted as a filesystem path.
type FileLoader struct{}

// NewFileLoader returns a FileLoader.
func NewFileLoader() FileLoader { return FileLoader{} }

func (FileLoader) Load(ctx context.Context, uri string) (api.Repository, error) {
	raw, err := os.ReadFile(uri)
	if err != nil {
		return api.Repository{}, errs.Newf(errs.IO, "reading repository %s: %v", uri, err)
	}
	var doc yamlRepository
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return api.Repository{}, errs.Newf(errs.IO, "parsing repository %s: %v", uri, err)
	}
	repo := api.Repository{
		URI:                    uri,
		Name:                   doc.Name,
		ReferencedRepositories: doc.ReferencedRepositories,
	}
	for _, f := range doc.Features {
		feat, err := convertFeature(f)
		if err != nil {
			return api.Repository{}, errs.Newf(errs.IO, "repository %s, feature %s: %v", uri, f.Name, err)
		}
		repo.Features = append(repo.Features, feat)
	}
	return repo, nil
}

func convertFeature(f yamlFeature) (api.Feature, error) {
	v, err := version.Parse(f.Version)
	if err != nil {
		return api.Feature{}, fmt.Errorf("version: %w", err)
	}
	feat := api.Feature{Name: f.Name, Version: v}
	for _, b := range f.Bundles {
		feat.Bundles = append(feat.Bundles, convertBundle(b))
	}
	for _, d := range f.Dependencies {
		ref, err := convertFeatureRef(d)
		if err != nil {
			return api.Feature{}, fmt.Errorf("dependency %s: %w", d.Name, err)
		}
		feat.Dependencies = append(feat.Dependencies, ref)
	}
	for _, c := range f.Conditionals {
		cond, err := convertConditional(c)
		if err != nil {
			return api.Feature{}, err
		}
		feat.Conditionals = append(feat.Conditionals, cond)
	}
	for _, c := range f.Configurations {
		feat.Configurations = append(feat.Configurations, api.ConfigRef{PID: c.PID, Data: c.Data})
	}
	return feat, nil
}

func convertBundle(b yamlBundle) api.BundleRef {
	ref := api.BundleRef{Location: b.Location, Dependency: b.Dependency}
	if b.StartLevel != nil {
		ref.StartLevel = *b.StartLevel
		ref.HasStart = true
	}
	return ref
}

func convertFeatureRef(r yamlFeatureRef) (api.FeatureRef, error) {
	rng, err := version.ParseRange(r.Range)
	if err != nil {
		return api.FeatureRef{}, err
	}
	return api.FeatureRef{Name: r.Name, Range: rng}, nil
}

// convertConditional builds a Conditional whose triggers use the
// lower-exclusive/upper-inclusive semantics of spec §4.3: a trigger's
// declared version is the floor of version.TriggerRange, not a literal
// range string.
func convertConditional(c yamlConditional) (api.Conditional, error) {
	cond := api.Conditional{}
	for _, t := range c.Triggers {
		v, err := version.Parse(t.Range)
		if err != nil {
			return api.Conditional{}, fmt.Errorf("conditional trigger %s: %w", t.Name, err)
		}
		cond.Triggers = append(cond.Triggers, api.FeatureRef{Name: t.Name, Range: version.TriggerRange(v)})
	}
	for _, b := range c.Bundles {
		cond.Bundles = append(cond.Bundles, convertBundle(b))
	}
	for _, cf := range c.Configurations {
		cond.Configurations = append(cond.Configurations, api.ConfigRef{PID: cf.PID, Data: cf.Data})
	}
	return cond, nil
}
