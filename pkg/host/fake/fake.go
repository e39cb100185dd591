// Package fake is an in-memory ModuleHost used by engine, planner and
// executor tests, playing the role the teacher fills with a
// counterfeiter-generated fake for its single-interface StepResolver. A
// hand-written fake is used here instead of a generator since there is
// exactly one interface to stand in for.
package fake

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/operator-framework/feature-engine/pkg/api"
	"github.com/operator-framework/feature-engine/pkg/host"
)

type module struct {
	id           api.ModuleId
	symbolicName string
	version      string
	state        host.State
	fragmentHost string
	uses         []host.ServiceRef
	publishes    []host.ServiceRef
	startLevel   uint32

	// StartErr, when set, is returned by the next Start call and then
	// cleared — lets tests exercise the aggregate start-error path of
	// spec §8 scenario 6.
	StartErr error
}

func (m *module) ID() api.ModuleId                   { return m.id }
func (m *module) SymbolicName() string                { return m.symbolicName }
func (m *module) Version() string                     { return m.version }
func (m *module) State() host.State                   { return m.state }
func (m *module) IsFragment() bool                    { return m.fragmentHost != "" }
func (m *module) FragmentHost() string                { return m.fragmentHost }
func (m *module) ServicesUsed() []host.ServiceRef      { return m.uses }
func (m *module) ServicesPublished() []host.ServiceRef { return m.publishes }

type refreshHandle struct{ err error }

func (r refreshHandle) Wait(ctx context.Context) error { return r.err }

// Host is an in-memory ModuleHost.
type Host struct {
	mu       sync.Mutex
	modules  map[api.ModuleId]*module
	nextID   api.ModuleId
	engineID api.ModuleId
	hasEngine bool

	// RefreshErr, when set, is returned by the handle from the next Refresh call.
	RefreshErr error

	// Calls records operation names in invocation order, for ordering assertions.
	Calls []string
}

// NewHost returns an empty fake host.
func NewHost() *Host {
	return &Host{modules: map[api.ModuleId]*module{}, nextID: 1}
}

// Seed installs a module directly (bypassing Install) with the given
// state and service edges, for test setup.
func (h *Host) Seed(symbolicName, version string, state host.State, uses, publishes []host.ServiceRef) api.ModuleId {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.modules[id] = &module{
		id: id, symbolicName: symbolicName, version: version,
		state: state, uses: uses, publishes: publishes,
	}
	return id
}

// SetEngineModule marks id as the engine's own module.
func (h *Host) SetEngineModule(id api.ModuleId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.engineID = id
	h.hasEngine = true
}

func (h *Host) Modules() []host.Module {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]host.Module, 0, len(h.modules))
	ids := make([]api.ModuleId, 0, len(h.modules))
	for id := range h.modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out = append(out, h.modules[id])
	}
	return out
}

func (h *Host) Module(id api.ModuleId) (host.Module, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[id]
	if !ok {
		return nil, false
	}
	return m, true
}

func (h *Host) Install(ctx context.Context, symbolicName, version string, content io.Reader, startLevel uint32, hasStartLevel bool) (api.ModuleId, error) {
	if content != nil {
		_, _ = io.Copy(io.Discard, content)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.modules[id] = &module{id: id, symbolicName: symbolicName, version: version, state: host.Installed, startLevel: startLevel}
	h.Calls = append(h.Calls, fmt.Sprintf("install(%s/%s)", symbolicName, version))
	return id, nil
}

func (h *Host) Update(ctx context.Context, id api.ModuleId, content io.Reader) error {
	if content != nil {
		_, _ = io.Copy(io.Discard, content)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[id]
	if !ok {
		return fmt.Errorf("update: module %d not found", id)
	}
	h.Calls = append(h.Calls, fmt.Sprintf("update(%s)", m.symbolicName))
	return nil
}

func (h *Host) Uninstall(ctx context.Context, id api.ModuleId) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[id]
	if !ok {
		return fmt.Errorf("uninstall: module %d not found", id)
	}
	m.state = host.Uninstalled
	h.Calls = append(h.Calls, fmt.Sprintf("uninstall(%s)", m.symbolicName))
	return nil
}

func (h *Host) Stop(ctx context.Context, id api.ModuleId) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[id]
	if !ok {
		return fmt.Errorf("stop: module %d not found", id)
	}
	m.state = host.Resolved
	h.Calls = append(h.Calls, fmt.Sprintf("stop(%s)", m.symbolicName))
	return nil
}

func (h *Host) Start(ctx context.Context, id api.ModuleId) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[id]
	if !ok {
		return fmt.Errorf("start: module %d not found", id)
	}
	h.Calls = append(h.Calls, fmt.Sprintf("start(%s)", m.symbolicName))
	if m.StartErr != nil {
		err := m.StartErr
		m.StartErr = nil
		return err
	}
	m.state = host.Active
	return nil
}

func (h *Host) SetStartLevel(ctx context.Context, id api.ModuleId, level uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[id]
	if !ok {
		return fmt.Errorf("set start level: module %d not found", id)
	}
	m.startLevel = level
	return nil
}

func (h *Host) Refresh(ctx context.Context, ids []api.ModuleId) (host.RefreshHandle, error) {
	h.mu.Lock()
	h.Calls = append(h.Calls, fmt.Sprintf("refresh(%d modules)", len(ids)))
	err := h.RefreshErr
	h.mu.Unlock()
	return refreshHandle{err: err}, nil
}

func (h *Host) EngineModuleID() (api.ModuleId, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engineID, h.hasEngine
}

// FailNextStart arranges for the named module's next Start call to fail,
// for exercising the aggregate start-error path (spec §8 scenario 6).
func (h *Host) FailNextStart(id api.ModuleId, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.modules[id]; ok {
		m.StartErr = err
	}
}
