// Package events implements the engine's listener model: a tagged event
// type plus two narrow listener interfaces (DESIGN NOTES §9,
// "polymorphism over Listener"), fanned out by a Bus in registration
// order, matching the ordering guarantee of spec §5.
package events

import (
	"sync"

	"github.com/operator-framework/feature-engine/pkg/api"
)

// Kind tags an Event as one of the four kinds named in spec §6.
type Kind int

const (
	RepositoryAdded Kind = iota
	RepositoryRemoved
	FeatureInstalled
	FeatureUninstalled
)

// Event carries either a repository or a feature id, never both, selected
// by Kind.
type Event struct {
	Kind       Kind
	Repository api.Repository
	FeatureID  api.FeatureId
	Replayed   bool
}

// RepositoryListener receives repository lifecycle events.
type RepositoryListener interface {
	RepositoryEvent(e Event)
}

// FeatureListener receives feature install/uninstall events.
type FeatureListener interface {
	FeatureEvent(e Event)
}

// Bus fans out events to registered listeners in insertion order. A
// single publish call delivers to every listener before returning.
// Delivery happens outside the Bus's lock, so publishes made concurrently
// from different goroutines are not serialized against each other and
// their deliveries may interleave.
type Bus struct {
	mu        sync.Mutex
	repoLs    []RepositoryListener
	featureLs []FeatureListener
	history   []Event // replayed to newly registered listeners
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// AddRepositoryListener registers l and immediately replays every past
// repository event to it with Replayed set true.
func (b *Bus) AddRepositoryListener(l RepositoryListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.repoLs = append(b.repoLs, l)
	for _, e := range b.history {
		if e.Kind == RepositoryAdded || e.Kind == RepositoryRemoved {
			replay := e
			replay.Replayed = true
			l.RepositoryEvent(replay)
		}
	}
}

// AddFeatureListener registers l and immediately replays every past
// feature event to it with Replayed set true.
func (b *Bus) AddFeatureListener(l FeatureListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.featureLs = append(b.featureLs, l)
	for _, e := range b.history {
		if e.Kind == FeatureInstalled || e.Kind == FeatureUninstalled {
			replay := e
			replay.Replayed = true
			l.FeatureEvent(replay)
		}
	}
}

// PublishRepository notifies every registered RepositoryListener, in
// insertion order, and records the event for future replay.
func (b *Bus) PublishRepository(kind Kind, repo api.Repository, replayed bool) {
	e := Event{Kind: kind, Repository: repo, Replayed: replayed}
	b.mu.Lock()
	b.history = append(b.history, e)
	ls := append([]RepositoryListener{}, b.repoLs...)
	b.mu.Unlock()
	for _, l := range ls {
		l.RepositoryEvent(e)
	}
}

// PublishFeature notifies every registered FeatureListener, in insertion
// order, and records the event for future replay.
func (b *Bus) PublishFeature(kind Kind, id api.FeatureId, replayed bool) {
	e := Event{Kind: kind, FeatureID: id, Replayed: replayed}
	b.mu.Lock()
	b.history = append(b.history, e)
	ls := append([]FeatureListener{}, b.featureLs...)
	b.mu.Unlock()
	for _, l := range ls {
		l.FeatureEvent(e)
	}
}
