package exec

import (
	"sort"

	"github.com/operator-framework/feature-engine/pkg/host"
)

// stopOrder computes the service-usage stop order of spec §4.5 phase 1:
// repeatedly stop the subset of candidates whose published services are
// not consumed by any other remaining candidate, until none remain. If a
// round finds no such subset (every remaining module has nonzero internal
// usage — a cycle), the module providing the lowest-ranked registered
// service is stopped to break the deadlock. The result places consumers
// before the providers they depend on.
func stopOrder(candidates []host.Module) []host.Module {
	remaining := append([]host.Module{}, candidates...)
	var ordered []host.Module

	for len(remaining) > 0 {
		consumed := consumedServiceNames(remaining)
		var ready, rest []host.Module
		for _, m := range remaining {
			if providesConsumedService(m, consumed) {
				rest = append(rest, m)
			} else {
				ready = append(ready, m)
			}
		}
		if len(ready) == 0 {
			// Deadlock tie-breaker: stop the module publishing the
			// lowest-ranked service.
			victim := lowestRankedProvider(remaining)
			ordered = append(ordered, victim)
			remaining = removeModule(remaining, victim)
			continue
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].SymbolicName() < ready[j].SymbolicName() })
		ordered = append(ordered, ready...)
		remaining = rest
	}
	return ordered
}

func consumedServiceNames(candidates []host.Module) map[string]struct{} {
	out := map[string]struct{}{}
	for _, m := range candidates {
		for _, svc := range m.ServicesUsed() {
			out[svc.Name] = struct{}{}
		}
	}
	return out
}

func providesConsumedService(m host.Module, consumed map[string]struct{}) bool {
	for _, pub := range m.ServicesPublished() {
		if _, ok := consumed[pub.Name]; ok {
			return true
		}
	}
	return false
}

func lowestRankedProvider(candidates []host.Module) host.Module {
	var best host.Module
	bestRank := 0
	first := true
	for _, m := range candidates {
		for _, pub := range m.ServicesPublished() {
			if first || pub.Ranking < bestRank {
				best = m
				bestRank = pub.Ranking
				first = false
			}
		}
	}
	if first {
		// No module publishes anything, yet none were "ready" — shouldn't
		// happen given providesConsumedService's guard, but stop the
		// first candidate rather than looping forever.
		return candidates[0]
	}
	return best
}

func removeModule(modules []host.Module, victim host.Module) []host.Module {
	out := make([]host.Module, 0, len(modules)-1)
	for _, m := range modules {
		if m.ID() != victim.ID() {
			out = append(out, m)
		}
	}
	return out
}

// excludeTerminalAndFragments drops modules already stopped (terminal
// state) and fragments, which follow their host rather than being stopped
// independently (spec §4.5 phase 1).
func excludeTerminalAndFragments(modules []host.Module) []host.Module {
	var out []host.Module
	for _, m := range modules {
		if m.State().Terminal() || m.State() == host.Stopping {
			continue
		}
		if m.IsFragment() {
			continue
		}
		out = append(out, m)
	}
	return out
}
