package cache

import (
	"context"
	"sync"
	"time"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// Memory is the in-process RecommendationCache. A single RWMutex guards
// the maps; per-user epochs survive entry eviction so a fill started
// before an invalidation can never land after it.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	epochs  map[string]Token
	users   map[string]*memoryEntry
	byMovie map[string]map[string]struct{}

	hits   int64
	misses int64
}

type memoryEntry struct {
	lists  map[string]memoryList
	movies map[string]struct{}
}

type memoryList struct {
	entries   []domain.RecommendationEntry
	expiresAt time.Time
}

// NewMemory builds an in-memory cache. A non-positive ttl disables
// expiry; invalidation alone bounds staleness either way.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		epochs:  make(map[string]Token),
		users:   make(map[string]*memoryEntry),
		byMovie: make(map[string]map[string]struct{}),
	}
}

// Get implements RecommendationCache.
func (m *Memory) Get(_ context.Context, userID, variant string) ([]domain.RecommendationEntry, bool, error) {
	m.mu.RLock()
	entry := m.users[userID]
	var list memoryList
	var ok bool
	if entry != nil {
		list, ok = entry.lists[variant]
	}
	m.mu.RUnlock()

	if ok && !list.expiresAt.IsZero() && time.Now().After(list.expiresAt) {
		m.mu.Lock()
		if entry := m.users[userID]; entry != nil {
			delete(entry.lists, variant)
		}
		m.mu.Unlock()
		ok = false
	}

	m.mu.Lock()
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	m.mu.Unlock()

	if !ok {
		return nil, false, nil
	}
	return list.entries, true, nil
}

// Begin implements RecommendationCache.
func (m *Memory) Begin(_ context.Context, userID string) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epochs[userID], nil
}

// Put implements RecommendationCache. The fill is dropped when the
// user's epoch moved since Begin.
func (m *Memory) Put(_ context.Context, userID, variant string, token Token, entries []domain.RecommendationEntry, movieIDs []string) error {
	stored := make([]domain.RecommendationEntry, len(entries))
	copy(stored, entries)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epochs[userID] != token {
		return nil
	}

	entry := m.users[userID]
	if entry == nil {
		entry = &memoryEntry{
			lists:  make(map[string]memoryList),
			movies: make(map[string]struct{}),
		}
		m.users[userID] = entry
	}

	var expiresAt time.Time
	if m.ttl > 0 {
		expiresAt = time.Now().Add(m.ttl)
	}
	entry.lists[variant] = memoryList{entries: stored, expiresAt: expiresAt}

	for _, movieID := range movieIDs {
		entry.movies[movieID] = struct{}{}
		users := m.byMovie[movieID]
		if users == nil {
			users = make(map[string]struct{})
			m.byMovie[movieID] = users
		}
		users[userID] = struct{}{}
	}
	return nil
}

// Invalidate implements RecommendationCache.
func (m *Memory) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(userID)
	return nil
}

// InvalidateMovie implements RecommendationCache. Every user whose last
// computation touched the movie is evicted, accepting the occasional
// unnecessary recomputation over staleness.
func (m *Memory) InvalidateMovie(_ context.Context, movieID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID := range m.byMovie[movieID] {
		m.evictLocked(userID)
	}
	delete(m.byMovie, movieID)
	return nil
}

func (m *Memory) evictLocked(userID string) {
	m.epochs[userID]++
	entry := m.users[userID]
	if entry == nil {
		return
	}
	for movieID := range entry.movies {
		if users := m.byMovie[movieID]; users != nil {
			delete(users, userID)
			if len(users) == 0 {
				delete(m.byMovie, movieID)
			}
		}
	}
	delete(m.users, userID)
}

// Stats reports hit/miss counters, mostly for tests and debugging.
func (m *Memory) Stats() (hits, misses int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}
