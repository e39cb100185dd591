package api

import (
	"context"
	"io"
)

// Resource is the resolver's output: a candidate module or feature-level
// placeholder. It is opaque beyond the attributes the planner needs.
type Resource struct {
	SymbolicName   string
	Version        string // raw qualifier-bearing version string, e.g. "1.0.0.SNAPSHOT"
	URI            string // set for modules whose content is downloadable
	FeatureName    string // set for feature-namespaced resources
	FeatureVersion string
	StartLevel     uint32
	HasStartLevel  bool
}

// IsFeatureNamespaced reports whether the resource represents a resolved
// feature rather than a downloadable module.
func (r Resource) IsFeatureNamespaced() bool {
	return r.FeatureName != ""
}

// StreamProvider opens the content stream backing a Resource's URI.
// Implementations are external collaborators (the module download/stream
// provider named out of scope by spec §1); the executor and planner only
// depend on this interface.
type StreamProvider interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}
