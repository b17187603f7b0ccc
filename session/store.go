package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/types"
)

// Store persists session contexts. Implementations: in-memory for single
// process runs and tests, Redis for anything shared.
type Store interface {
	// Get loads a session. A missing session is an ErrSessionNotFound error.
	Get(ctx context.Context, sessionID string) (*Context, error)

	// Put saves a session with the store's TTL applied.
	Put(ctx context.Context, sc *Context) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Sweep removes sessions not updated since cutoff and reports how many.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	// Count reports the live session count.
	Count(ctx context.Context) (int, error)
}

type memoryEntry struct {
	sc       *Context
	savedAt  time.Time
	expireAt time.Time
}

// InMemoryStore is a mutex-guarded map store with TTL support.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// InMemoryStoreConfig configures an InMemoryStore.
type InMemoryStoreConfig struct {
	// TTL after the last update; 0 keeps sessions forever.
	TTL time.Duration

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewInMemoryStore creates the store.
func NewInMemoryStore(cfg InMemoryStoreConfig, logger *zap.Logger) *InMemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &InMemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     cfg.TTL,
		now:     now,
		logger:  logger.With(zap.String("component", "session_store_memory")),
	}
}

// Get implements Store.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupLocked(s.now())
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, types.NewError(types.ErrSessionNotFound, "session "+sessionID+" not found")
	}
	return entry.sc, nil
}

// Put implements Store.
func (s *InMemoryStore) Put(ctx context.Context, sc *Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := &memoryEntry{sc: sc, savedAt: now}
	if s.ttl > 0 {
		entry.expireAt = now.Add(s.ttl)
	}
	s.entries[sc.SessionID] = entry
	s.cleanupLocked(now)
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// Sweep implements Store.
func (s *InMemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if entry.sc.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("sessions swept", zap.Int("removed", removed))
	}
	return removed, nil
}

// Count implements Store.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked(s.now())
	return len(s.entries), nil
}

// Len reports the live session count.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemoryStore) cleanupLocked(now time.Time) {
	for id, entry := range s.entries {
		if !entry.expireAt.IsZero() && !now.Before(entry.expireAt) {
			delete(s.entries, id)
		}
	}
}
