package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/operator-framework/feature-engine/pkg/api"
)

// URIStreamProvider is a minimal stand-in for the module download/stream
// provider spec §1 names as an external collaborator. It resolves a
// bundle location to a local file: a "file:" URI is opened directly, and
// an "mvn:group/artifact/version" coordinate is joined under Root as
// "group/artifact/version.jar", mirroring the on-disk layout a Maven-style
// local repository would have.
type URIStreamProvider struct {
	Root string
}

var _ api.StreamProvider = URIStreamProvider{}

// NewURIStreamProvider returns a URIStreamProvider rooted at dir.
func NewURIStreamProvider(dir string) URIStreamProvider {
	return URIStreamProvider{Root: dir}
}

// Open implements api.StreamProvider.
func (p URIStreamProvider) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	path, err := p.resolvePath(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	return f, nil
}

func (p URIStreamProvider) resolvePath(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "file:"):
		return strings.TrimPrefix(uri, "file:"), nil
	case strings.HasPrefix(uri, "mvn:"):
		parts := strings.Split(strings.TrimPrefix(uri, "mvn:"), "/")
		if len(parts) < 3 {
			return "", fmt.Errorf("malformed mvn uri %q", uri)
		}
		group, artifact, version := parts[0], parts[1], parts[2]
		return fmt.Sprintf("%s/%s/%s/%s-%s.jar", p.Root, group, artifact, artifact, version), nil
	default:
		return uri, nil
	}
}
