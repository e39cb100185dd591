package deploy

import (
	"context"
	"hash/fnv"
	"io"

	"github.com/operator-framework/feature-engine/pkg/api"
)

// streamChecksum opens uri via sp and hashes its content. The stream is
// guaranteed closed on every exit path (spec §5 resource discipline).
func streamChecksum(ctx context.Context, sp api.StreamProvider, uri string) (uint64, error) {
	rc, err := sp.Open(ctx, uri)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	h := fnv.New64a()
	if _, err := io.Copy(h, rc); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
