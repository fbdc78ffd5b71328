package registry

import (
	"sort"
	"sync"
	"time"
)

// Binding maps a name to an endpoint URL.
type Binding struct {
	Name       string    `json:"name"`
	Endpoint   string    `json:"endpoint"`
	BoundAt    time.Time `json:"bound_at"`
	RebindSeen int       `json:"rebinds"`
}

// Store is the in-memory name table. Rebinding an existing name
// replaces its endpoint, mirroring rebind semantics: the newest
// registration wins.
type Store struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{bindings: make(map[string]Binding)}
}

// Bind registers or replaces a name binding.
func (s *Store) Bind(name, endpoint string) Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := Binding{Name: name, Endpoint: endpoint, BoundAt: time.Now().UTC()}
	if old, ok := s.bindings[name]; ok {
		b.RebindSeen = old.RebindSeen + 1
	}
	s.bindings[name] = b
	return b
}

// Lookup resolves a name.
func (s *Store) Lookup(name string) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[name]
	return b, ok
}

// Unbind removes a name binding.
func (s *Store) Unbind(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[name]; !ok {
		return false
	}
	delete(s.bindings, name)
	return true
}

// List returns all bindings sorted by name.
func (s *Store) List() []Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
