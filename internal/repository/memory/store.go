// Package memory provides in-process repositories used in development mode
// and in tests. They honour the same contracts as the PostgreSQL ones,
// including the compare-and-swap on refresh tokens.
package memory

import (
	"sync"
	"time"

	"github.com/vidtube/vidtube/internal/domain"
)

type subscriptionKey struct {
	subscriber string
	channel    string
}

type historyRow struct {
	seq      int64
	account  string
	video    string
	viewedAt time.Time
}

// Store holds all in-memory state behind a single lock.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]*domain.Account
	videos        map[string]*domain.Video
	subscriptions map[subscriptionKey]time.Time
	history       []historyRow
	seq           int64
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*domain.Account),
		videos:        make(map[string]*domain.Video),
		subscriptions: make(map[subscriptionKey]time.Time),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// AddVideo inserts a catalogue entry. The service itself never creates
// videos; this seeds development data and tests.
func (s *Store) AddVideo(v domain.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := v
	s.videos[v.ID] = &cp
}

// cloneAccount returns a deep copy so callers never share state with the store.
func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.RefreshToken != nil {
		tok := *a.RefreshToken
		cp.RefreshToken = &tok
	}
	return &cp
}
