package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/feature-engine/pkg/host"
	fakehost "github.com/operator-framework/feature-engine/pkg/host/fake"
)

func indexOf(modules []host.Module, name string) int {
	for i, m := range modules {
		if m.SymbolicName() == name {
			return i
		}
	}
	return -1
}

func TestStopOrderConsumerBeforeProvider(t *testing.T) {
	h := fakehost.NewHost()
	providerID := h.Seed("provider", "1.0.0", host.Active, nil, []host.ServiceRef{{Name: "svc", Ranking: 0}})
	consumerID := h.Seed("consumer", "1.0.0", host.Active, []host.ServiceRef{{Name: "svc", Ranking: 0}}, nil)
	provider, _ := h.Module(providerID)
	consumer, _ := h.Module(consumerID)

	ordered := stopOrder([]host.Module{provider, consumer})
	require.Len(t, ordered, 2)
	assert.Less(t, indexOf(ordered, "consumer"), indexOf(ordered, "provider"))
}

func TestStopOrderDeadlockTieBreak(t *testing.T) {
	h := fakehost.NewHost()
	// a uses b's service, b uses a's service: a cycle, no module is "ready".
	aID := h.Seed("a", "1.0.0", host.Active,
		[]host.ServiceRef{{Name: "b-svc", Ranking: 5}},
		[]host.ServiceRef{{Name: "a-svc", Ranking: 1}})
	bID := h.Seed("b", "1.0.0", host.Active,
		[]host.ServiceRef{{Name: "a-svc", Ranking: 1}},
		[]host.ServiceRef{{Name: "b-svc", Ranking: 5}})
	a, _ := h.Module(aID)
	b, _ := h.Module(bID)

	ordered := stopOrder([]host.Module{a, b})
	require.Len(t, ordered, 2)
	// a publishes the lowest-ranked service (a-svc, ranking 1), so it is
	// the deadlock tie-break victim and stops first.
	assert.Equal(t, "a", ordered[0].SymbolicName())
	assert.Equal(t, "b", ordered[1].SymbolicName())
}

func TestExcludeTerminalAndFragmentsDropsStoppedModules(t *testing.T) {
	h := fakehost.NewHost()
	activeID := h.Seed("active", "1.0.0", host.Active, nil, nil)
	uninstalledID := h.Seed("gone", "1.0.0", host.Uninstalled, nil, nil)
	resolvedID := h.Seed("resolved", "1.0.0", host.Resolved, nil, nil)

	active, _ := h.Module(activeID)
	uninstalled, _ := h.Module(uninstalledID)
	resolved, _ := h.Module(resolvedID)

	out := excludeTerminalAndFragments([]host.Module{active, uninstalled, resolved})
	assert.Len(t, out, 1)
	assert.Equal(t, "active", out[0].SymbolicName())
}
