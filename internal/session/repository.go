package session

import (
	"errors"
	"sort"
	"sync"
)

// Repository defines the concurrency-safe contract for tracking live sessions.
type Repository interface {
	// Add registers a session. It fails with ErrDuplicateSession if the ID is taken.
	Add(s *Session) error

	// Get returns the session with the given ID.
	Get(id ID) (*Session, bool)

	// Remove unregisters and returns the session with the given ID.
	Remove(id ID) (*Session, bool)

	// List returns every registered session ordered by ID.
	List() []*Session

	// ActiveCount returns the number of sessions that are not inactive.
	// Used for metrics.
	ActiveCount() int
}

var (
	// ErrDuplicateSession is returned when adding a session whose ID is already registered.
	ErrDuplicateSession = errors.New("session already registered")

	// ErrNotFound is returned when no session has the requested ID.
	ErrNotFound = errors.New("session not found")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Add implements Repository.Add.
func (r *InMemoryRepository) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.Get(s.ID()); exists {
		return ErrDuplicateSession
	}
	r.store.Set(s)
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id ID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Get(id)
}

// Remove implements Repository.Remove.
func (r *InMemoryRepository) Remove(id ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.Get(id)
	if !ok {
		return nil, false
	}
	r.store.Delete(id)
	return s, true
}

// List implements Repository.List.
func (r *InMemoryRepository) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.Get(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// ActiveCount implements Repository.ActiveCount.
func (r *InMemoryRepository) ActiveCount() int {
	n := 0
	for _, s := range r.List() {
		if s.State() != StateInactive {
			n++
		}
	}
	return n
}
