package catalog

import (
	"context"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/version"
)

// FeatureMatcher resolves a "name[/version-or-range]" request to a
// concrete feature in the catalog, per spec §4.1.
type FeatureMatcher struct {
	catalog *Catalog
}

// NewFeatureMatcher returns a FeatureMatcher backed by c.
func NewFeatureMatcher(c *Catalog) FeatureMatcher {
	return FeatureMatcher{catalog: c}
}

// Match resolves name and versionSpec to a feature. If versionSpec is
// empty or "0.0.0" it matches any version; if it is a literal existing
// version key it is returned directly; otherwise versionSpec is parsed as
// a range and the highest matching version is returned.
func (m FeatureMatcher) Match(ctx context.Context, name, versionSpec string) (api.Feature, error) {
	index, err := m.catalog.Features(ctx)
	if err != nil {
		return api.Feature{}, err
	}
	byVersion, ok := index[name]
	if !ok || len(byVersion) == 0 {
		return api.Feature{}, featureNotFound(name, versionSpec)
	}

	if versionSpec == "" || versionSpec == "0.0.0" {
		return highestVersion(byVersion)
	}
	if f, ok := byVersion[versionSpec]; ok {
		return f, nil
	}

	rng, err := version.ParseRange(versionSpec)
	if err != nil {
		return api.Feature{}, featureNotFound(name, versionSpec)
	}
	var best *api.Feature
	for _, f := range byVersion {
		f := f
		if !rng.Contains(f.Version) {
			continue
		}
		if best == nil || f.Version.GT(best.Version) {
			best = &f
		}
	}
	if best == nil {
		return api.Feature{}, featureNotFound(name, versionSpec)
	}
	return *best, nil
}

// MatchAllVersions returns every version of name present in the catalog
// index, in no particular order.
func (m FeatureMatcher) MatchAllVersions(ctx context.Context, name string) ([]api.Feature, error) {
	index, err := m.catalog.Features(ctx)
	if err != nil {
		return nil, err
	}
	byVersion, ok := index[name]
	if !ok {
		return nil, featureNotFound(name, "0.0.0")
	}
	out := make([]api.Feature, 0, len(byVersion))
	for _, f := range byVersion {
		out = append(out, f)
	}
	return out, nil
}

func highestVersion(byVersion map[string]api.Feature) (api.Feature, error) {
	var best *api.Feature
	for _, f := range byVersion {
		f := f
		if best == nil || f.Version.GT(best.Version) {
			best = &f
		}
	}
	return *best, nil
}
