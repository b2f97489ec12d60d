package artifact

import (
	"sync"

	"bepview/internal/graph"
)

// Store holds the latest artifact Set. Single writer (the active upload
// session or a chat-triggered graph swap), many readers. No history: a
// new upload's artifacts fully supersede the previous ones.
type Store struct {
	mu          sync.RWMutex
	current     *Set
	subscribers []func(*Set)
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new set atomically and notifies subscribers.
// Subscribers observe either the old set or the new one, never a mix.
func (s *Store) Replace(set *Set) {
	s.mu.Lock()
	s.current = set
	subs := make([]func(*Set), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(set)
	}
}

// ReplaceGraph publishes a new set that carries the given graph and the
// current set's other artifacts, exactly as a completed upload would.
// Used by chat responses that return graph_nodes/graph_edges.
func (s *Store) ReplaceGraph(g *graph.Graph) {
	s.mu.Lock()
	next := &Set{Graph: g}
	if s.current != nil {
		next.FileID = s.current.FileID
		next.Summary = s.current.Summary
		next.ResourceUsage = s.current.ResourceUsage
		next.FetchedAt = s.current.FetchedAt
	}
	s.current = next
	subs := make([]func(*Set), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Current returns the latest set; ok is false when nothing has been
// published yet.
func (s *Store) Current() (*Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Subscribe registers fn to run after every replacement. Callbacks fire
// on the publisher's goroutine and must not block.
func (s *Store) Subscribe(fn func(*Set)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}
