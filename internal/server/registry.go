package server

import (
	"slices"
	"strings"
	"sync"

	"github.com/tphakala/go-audio-scaler/internal/deck"
)

// Registry holds the decks exposed by the API.
type Registry struct {
	mu    sync.RWMutex
	decks map[string]*deck.Deck
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decks: make(map[string]*deck.Deck)}
}

// Add registers d under its ID.
func (r *Registry) Add(d *deck.Deck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decks[d.ID().String()] = d
}

// Get returns the deck with the given ID.
func (r *Registry) Get(id string) (*deck.Deck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decks[id]
	return d, ok
}

// Len returns the number of decks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decks)
}

// Snapshots returns a snapshot of every deck ordered by track name, then ID.
func (r *Registry) Snapshots() []deck.Snapshot {
	r.mu.RLock()
	out := make([]deck.Snapshot, 0, len(r.decks))
	for _, d := range r.decks {
		out = append(out, d.Snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b deck.Snapshot) int {
		if c := strings.Compare(a.Track, b.Track); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
