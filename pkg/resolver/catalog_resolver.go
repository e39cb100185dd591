package resolver

import (
	"context"
	"strings"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/catalog"
	"github.com/operator-framework/feature-engine/pkg/errs"
)

// CatalogResolver is a reference Resolver implementation driven directly
// by the Catalog: it walks each target feature's dependency graph
// (FeatureRef edges) and flattens every reached feature's bundles into the
// output resource set. It stands in for the real capability/requirement
// SAT resolver, which spec §1 treats as an out-of-scope external
// collaborator — this implementation lets the engine run end to end
// without one.
type CatalogResolver struct {
	matcher catalog.FeatureMatcher
	stream  api.StreamProvider
}

// NewCatalogResolver returns a CatalogResolver backed by matcher. sp opens
// the content stream for any bundle URI this resolver surfaces; it is the
// concrete stand-in for the module download/stream provider spec §1
// treats as an external collaborator (see stream.go).
func NewCatalogResolver(matcher catalog.FeatureMatcher, sp api.StreamProvider) *CatalogResolver {
	return &CatalogResolver{matcher: matcher, stream: sp}
}

var _ Resolver = (*CatalogResolver)(nil)

// Resolve implements Resolver.
func (r *CatalogResolver) Resolve(ctx context.Context, req Request) (Result, error) {
	visited := map[api.FeatureId]struct{}{}
	var resources []api.Resource
	streams := map[string]api.StreamProvider{}

	var visit func(id api.FeatureId) error
	visit = func(id api.FeatureId) error {
		if _, ok := visited[id]; ok {
			return nil
		}
		visited[id] = struct{}{}

		feature, ok := req.ExtraFeatures[id]
		if !ok {
			matched, err := r.matcher.Match(ctx, id.Name, id.Version.String())
			if err != nil {
				return err
			}
			feature = matched
		}

		resources = append(resources, api.Resource{
			SymbolicName:   feature.Name,
			Version:        feature.Version.String(),
			FeatureName:    feature.Name,
			FeatureVersion: feature.Version.String(),
		})

		for _, b := range feature.Bundles {
			resources = append(resources, api.Resource{
				SymbolicName:  bundleSymbolicName(b.Location),
				Version:       bundleVersion(b.Location, feature.Version.String()),
				URI:           b.Location,
				StartLevel:    b.StartLevel,
				HasStartLevel: b.HasStart,
			})
			if r.stream != nil {
				streams[b.Location] = r.stream
			}
		}

		for _, dep := range feature.Dependencies {
			depFeature, err := r.matcher.Match(ctx, dep.Name, dep.Range.String())
			if err != nil {
				return errs.Newf(errs.Unresolvable, "resolving dependency %s of %s: %v", dep.Name, id, err)
			}
			if err := visit(depFeature.Id()); err != nil {
				return err
			}
		}
		return nil
	}

	for id := range req.TargetFeatureIDs {
		if err := visit(id); err != nil {
			return Result{}, err
		}
	}

	return Result{AllResources: resources, StreamProviders: streams}, nil
}

// bundleSymbolicName derives a stable symbolic name from a bundle
// location, since the resolver contract only carries locations for
// bundles, not separately declared names.
func bundleSymbolicName(location string) string {
	return location
}

// bundleVersion extracts the trailing version segment of a "mvn:"-scheme
// location (group/artifact/version), falling back to the owning feature's
// version for non-Maven locations.
func bundleVersion(location, fallback string) string {
	if !strings.HasPrefix(location, "mvn:") {
		return fallback
	}
	parts := strings.Split(strings.TrimPrefix(location, "mvn:"), "/")
	if len(parts) < 3 || parts[2] == "" {
		return fallback
	}
	return parts[2]
}
