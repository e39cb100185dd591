// Package host declares the ModuleHost contract: the underlying modular
// runtime's install/update/stop/start/refresh primitives. ModuleHost
// itself, and the Module it returns, are external collaborators per spec
// §1 — this package only defines the interface the executor programs
// against.
package host

import (
	"context"
	"io"

	"github.com/operator-framework/feature-engine/pkg/api"
)

// State is a module's lifecycle state.
type State int

const (
	Installed State = iota
	Resolved
	Starting
	Active
	Stopping
	Uninstalled
)

func (s State) String() string {
	switch s {
	case Installed:
		return "INSTALLED"
	case Resolved:
		return "RESOLVED"
	case Starting:
		return "STARTING"
	case Active:
		return "ACTIVE"
	case Stopping:
		return "STOPPING"
	case Uninstalled:
		return "UNINSTALLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is one of the states the stop phase (spec
// §4.5 phase 1) treats as already stopped: UNINSTALLED or RESOLVED.
func (s State) Terminal() bool {
	return s == Uninstalled || s == Resolved
}

// ServiceRef identifies a registered service by its ranking, for the
// lowest-ranked-service deadlock tie-breaker of spec §4.5 phase 1.
type ServiceRef struct {
	Name    string
	Ranking int
}

// Module is a live module on the ModuleHost.
type Module interface {
	ID() api.ModuleId
	SymbolicName() string
	Version() string
	State() State

	IsFragment() bool
	FragmentHost() string // host symbolic name, set only when IsFragment()

	// ServicesUsed lists services this module currently consumes, and
	// ServicesPublished lists services it currently provides — the edges
	// the stop-phase ordering of spec §4.5 phase 1 walks.
	ServicesUsed() []ServiceRef
	ServicesPublished() []ServiceRef
}

// RefreshHandle is returned by Refresh and resolved once the runtime's
// refresh-complete event fires (spec §4.5 phase 8, §5 "single-shot wait").
type RefreshHandle interface {
	Wait(ctx context.Context) error
}

// ModuleHost is the live modular runtime the executor drives.
type ModuleHost interface {
	Modules() []Module
	Module(id api.ModuleId) (Module, bool)

	Install(ctx context.Context, symbolicName, version string, content io.Reader, startLevel uint32, hasStartLevel bool) (api.ModuleId, error)
	Update(ctx context.Context, id api.ModuleId, content io.Reader) error
	Uninstall(ctx context.Context, id api.ModuleId) error

	// Stop performs a transient stop, preserving the module's persisted
	// start state so a later Start resumes it.
	Stop(ctx context.Context, id api.ModuleId) error
	Start(ctx context.Context, id api.ModuleId) error
	SetStartLevel(ctx context.Context, id api.ModuleId, level uint32) error

	Refresh(ctx context.Context, ids []api.ModuleId) (RefreshHandle, error)

	// EngineModuleID returns the id of the engine's own module, if it is
	// installed on this host, so the start phase can always schedule it
	// last (spec §4.5 phase 9).
	EngineModuleID() (api.ModuleId, bool)
}
