package exec

import (
	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/host"
)

// startOrder sorts candidates for the start phase (spec §4.5 phase 9,
// §4.6). True requirement/capability topology is resolver-internal and
// out of scope (spec §1); this engine approximates it with the same
// runtime service-consumer edges the stop phase already walks, since
// §4.6 defines stop order as "the inverse of start order" driven by those
// very edges. Concretely: start order is the reverse of the service-usage
// stop order, so a module starts only after the modules whose services it
// will consume.
func startOrder(candidates []host.Module, engineID api.ModuleId, hasEngine bool) []host.Module {
	stopped := stopOrder(candidates)
	out := make([]host.Module, 0, len(stopped))
	var engineModule host.Module
	for i := len(stopped) - 1; i >= 0; i-- {
		m := stopped[i]
		if hasEngine && m.ID() == engineID {
			engineModule = m
			continue
		}
		out = append(out, m)
	}
	if hasEngine && engineModule != nil {
		out = append(out, engineModule)
	}
	return out
}

// excludeStartSkip drops modules in UNINSTALLED/ACTIVE/STARTING and any
// fragment from the start set (spec §4.5 phase 9).
func excludeStartSkip(modules []host.Module) []host.Module {
	var out []host.Module
	for _, m := range modules {
		switch m.State() {
		case host.Uninstalled, host.Active, host.Starting:
			continue
		}
		if m.IsFragment() {
			continue
		}
		out = append(out, m)
	}
	return out
}
