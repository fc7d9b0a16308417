package bisect

import (
	"context"
	"sort"
	"sync"

	"github.com/recollect/recollect/internal/model"
)

// SessionStore holds searches by id. Implementations must return copies so
// callers cannot mutate stored history.
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Search, error)
	Put(ctx context.Context, s *model.Search) error
	List(ctx context.Context) ([]*model.Search, error)
	Delete(ctx context.Context, id string) error
	Len() int
}

// MemoryStore is a process-local SessionStore. Searches are not persisted.
type MemoryStore struct {
	mu       sync.RWMutex
	searches map[string]*model.Search
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{searches: make(map[string]*model.Search)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Search, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.searches[id]
	if !ok {
		return nil, ErrSearchNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *model.Search) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[s.ID] = s.Clone()
	return nil
}

// List returns all searches ordered by creation time.
func (m *MemoryStore) List(_ context.Context) ([]*model.Search, error) {
	m.mu.RLock()
	out := make([]*model.Search, 0, len(m.searches))
	for _, s := range m.searches {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.searches[id]; !ok {
		return ErrSearchNotFound
	}
	delete(m.searches, id)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.searches)
}

// keyedMutex serializes work per search id. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires the lock for id and returns its release func.
func (k *keyedMutex) Lock(id string) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
