// Package catalog implements the repository/feature catalog: transitive
// repository loading, the lazily-computed name→version→feature index, and
// name/version-or-range feature matching.
package catalog

import (
	"context"

	"github.com/operator-framework/feature-engine/pkg/api"
)

// RepositoryLoader parses a repository document addressed by uri into an
// api.Repository. The actual catalog document parser/validator is an
// external collaborator per spec §1; this is its narrow contract.
type RepositoryLoader interface {
	Load(ctx context.Context, uri string) (api.Repository, error)
}
