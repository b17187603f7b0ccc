package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/types"
)

// Service is the session front door: it resolves ids to contexts, persists
// them, and serializes access per session so concurrent hosts cannot
// interleave turns of the same conversation.
type Service struct {
	store  Store
	now    func() time.Time
	gauge  Gauge
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Gauge receives the live session count after every write; the metrics
// collector satisfies it.
type Gauge interface {
	SetActiveSessions(n int)
}

// NewService creates a Service over store. now is injectable for tests.
func NewService(store Store, now func() time.Time, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		now:    now,
		logger: logger.With(zap.String("component", "session_service")),
		locks:  make(map[string]*sync.Mutex),
	}
}

// WithGauge attaches a gauge tracking the live session count.
func (s *Service) WithGauge(g Gauge) *Service {
	s.gauge = g
	return s
}

// Resolve loads the session, creating it when the id is empty or unknown.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*Context, error) {
	if sessionID == "" {
		sc := NewContext(uuid.NewString(), s.now())
		s.logger.Info("session created", zap.String("session_id", sc.SessionID))
		return sc, nil
	}

	sc, err := s.store.Get(ctx, sessionID)
	if err == nil {
		return sc, nil
	}
	if types.GetErrorCode(err) == types.ErrSessionNotFound {
		sc := NewContext(sessionID, s.now())
		s.logger.Info("session recreated", zap.String("session_id", sessionID))
		return sc, nil
	}
	return nil, err
}

// Save persists the session.
func (s *Service) Save(ctx context.Context, sc *Context) error {
	if err := s.store.Put(ctx, sc); err != nil {
		return err
	}
	s.refreshGauge(ctx)
	return nil
}

// Lock serializes processing for one session and returns the unlock func.
func (s *Service) Lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Clear removes a session entirely.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.refreshGauge(ctx)
	return nil
}

// CleanupOldSessions removes sessions idle for more than the given number of
// hours and returns how many were removed.
func (s *Service) CleanupOldSessions(ctx context.Context, hours int) (int, error) {
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	removed, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		return removed, err
	}
	s.refreshGauge(ctx)
	return removed, nil
}

// refreshGauge publishes the live session count. Gauge failures never fail
// the calling operation.
func (s *Service) refreshGauge(ctx context.Context) {
	if s.gauge == nil {
		return
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Debug("session count unavailable", zap.Error(err))
		return
	}
	s.gauge.SetActiveSessions(n)
}

// History exports a session's turns, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]types.Turn, error) {
	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sc.Turns, nil
}
