package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/operator-framework/feature-engine/pkg/catalog"
	"github.com/operator-framework/feature-engine/pkg/engine"
	"github.com/operator-framework/feature-engine/pkg/events"
	fakehost "github.com/operator-framework/feature-engine/pkg/host/fake"
	"github.com/operator-framework/feature-engine/pkg/resolver"
)

// buildEngine constructs an Engine from the command's persistent flags.
// The ModuleHost is genuinely out of scope for this engine (spec §1): in
// a real deployment it is the runtime's live module host, so this CLI
// wires pkg/host/fake as its stand-in, the same in-memory implementation
// the test suite uses — see DESIGN.md. A real integration swaps this one
// constructor call for a client of the actual runtime.
func buildEngine(cmd *cobra.Command) (*engine.Engine, error) {
	statePath, _ := cmd.Flags().GetString("state")
	repoRoot, _ := cmd.Flags().GetString("repo-root")
	catalogURIs, _ := cmd.Flags().GetStringSlice("catalog")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := engine.NewConfig(engine.WithStatePath(statePath), engine.WithVerbose(verbose))

	cat := catalog.New(catalog.NewFileLoader(), events.NewBus(), log.StandardLogger())
	matcher := catalog.NewFeatureMatcher(cat)
	stream := resolver.NewURIStreamProvider(repoRoot)
	r := resolver.NewCatalogResolver(matcher, stream)
	h := fakehost.NewHost()

	ctx := context.Background()
	e, err := engine.New(ctx, cfg, log.StandardLogger(), cat, r, h, nil)
	if err != nil {
		return nil, err
	}
	for _, uri := range catalogURIs {
		if err := e.AddRepository(ctx, uri); err != nil {
			return nil, err
		}
	}
	return e, nil
}
