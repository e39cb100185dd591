package catalog

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/errs"
	"github.com/operator-framework/feature-engine/pkg/events"
)

// FeatureIndex is the lazily computed name→version→feature projection of
// every loaded repository.
type FeatureIndex map[string]map[string]api.Feature

// Catalog holds the set of root repository URIs and the repositories
// reachable from them, and serves the derived feature index. The index is
// a "compute under lock, return snapshot" cache (DESIGN NOTES §9):
// invalidated by any repository mutation, rebuilt on next read.
type Catalog struct {
	log    logrus.FieldLogger
	loader RepositoryLoader
	bus    *events.Bus

	mu    sync.Mutex
	roots []string
	repos map[string]api.Repository // every loaded repository, root or referenced
	index FeatureIndex              // nil when stale
}

// New returns an empty Catalog backed by loader.
func New(loader RepositoryLoader, bus *events.Bus, log logrus.FieldLogger) *Catalog {
	return &Catalog{
		log:    log,
		loader: loader,
		bus:    bus,
		repos:  map[string]api.Repository{},
	}
}

// AddRepository parses, validates (via the loader) and inserts uri as a
// root repository. It is a no-op if uri is already a root. Invalidates the
// feature index.
func (c *Catalog) AddRepository(ctx context.Context, uri string) error {
	c.mu.Lock()
	for _, r := range c.roots {
		if r == uri {
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	repo, err := c.loader.Load(ctx, uri)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.roots = append(c.roots, uri)
	c.repos[uri] = repo
	c.index = nil
	c.mu.Unlock()

	c.log.WithField("repository", uri).Info("added repository")
	c.bus.PublishRepository(events.RepositoryAdded, repo, false)
	return nil
}

// RemoveRepository removes uri as a root and evicts from the cache every
// repository reachable from it that is not reachable from another
// remaining root (spec §4.1).
func (c *Catalog) RemoveRepository(ctx context.Context, uri string) error {
	c.mu.Lock()
	var kept []string
	found := false
	for _, r := range c.roots {
		if r == uri {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		c.mu.Unlock()
		return nil
	}
	removedRepo, hadRepo := c.repos[uri]
	c.roots = kept

	reachable := c.reachableFromLocked(ctx, c.roots)
	for r := range c.repos {
		if _, ok := reachable[r]; !ok {
			delete(c.repos, r)
		}
	}
	c.index = nil
	c.mu.Unlock()

	c.log.WithField("repository", uri).Info("removed repository")
	if hadRepo {
		c.bus.PublishRepository(events.RepositoryRemoved, removedRepo, false)
	}
	return nil
}

// reachableFromLocked walks referencedRepositories from roots, loading any
// URI not already cached, and returns the set of reachable URIs. Must be
// called with mu held.
func (c *Catalog) reachableFromLocked(ctx context.Context, roots []string) map[string]struct{} {
	visited := map[string]struct{}{}
	worklist := append([]string{}, roots...)
	for len(worklist) > 0 {
		uri := worklist[0]
		worklist = worklist[1:]
		if _, ok := visited[uri]; ok {
			continue
		}
		visited[uri] = struct{}{}
		repo, ok := c.repos[uri]
		if !ok {
			loaded, err := c.loader.Load(ctx, uri)
			if err != nil {
				c.log.WithField("repository", uri).WithError(err).Warn("failed to load referenced repository")
				continue
			}
			repo = loaded
			c.repos[uri] = repo
		}
		worklist = append(worklist, repo.ReferencedRepositories...)
	}
	return visited
}

// Features returns the feature index, computing it if stale. Repositories
// are visited at most once per build, seeded from the repository cache
// where available (spec §4.1).
func (c *Catalog) Features(ctx context.Context) (FeatureIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil {
		return c.index, nil
	}

	reachable := c.reachableFromLocked(ctx, c.roots)
	index := FeatureIndex{}
	// Iterate roots first, in insertion order, then the rest of the
	// reachable set; a later repository overwrites an earlier one's
	// (name, version) entry ("last writer wins", spec §9(c)). A collision
	// between two roots resolves deterministically; the non-root
	// repositories follow map iteration order, so a collision involving
	// them has no defined winner.
	ordered := append([]string{}, c.roots...)
	for uri := range reachable {
		already := false
		for _, r := range c.roots {
			if r == uri {
				already = true
				break
			}
		}
		if !already {
			ordered = append(ordered, uri)
		}
	}
	for _, uri := range ordered {
		repo, ok := c.repos[uri]
		if !ok {
			continue
		}
		for _, f := range repo.Features {
			byVersion, ok := index[f.Name]
			if !ok {
				byVersion = map[string]api.Feature{}
				index[f.Name] = byVersion
			}
			byVersion[f.Version.String()] = f
		}
	}
	c.index = index
	return index, nil
}

// Repositories returns the loaded repositories reachable from the current
// roots, for diagnostics.
func (c *Catalog) Repositories() []api.Repository {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.Repository, 0, len(c.repos))
	for _, r := range c.repos {
		out = append(out, r)
	}
	return out
}

// featureNotFound is a convenience constructor shared by Catalog and
// FeatureMatcher callers.
func featureNotFound(name, spec string) error {
	return errs.Newf(errs.NotFound, "no feature %q matching %q in catalog", name, spec)
}
