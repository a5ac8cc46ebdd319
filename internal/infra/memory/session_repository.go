package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// SessionLoader fetches session snapshots from a backing store (e.g., document DB).
type SessionLoader interface {
	LoadSession(ctx context.Context, sessionID string) (domain.Session, error)
}

// SessionRepository caches session snapshots with TTL to avoid repeated DB hits.
type SessionRepository struct {
	loader SessionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSession
}

type cachedSession struct {
	session   domain.Session
	expiresAt time.Time
}

func NewSessionRepository(loader SessionLoader, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSession),
	}
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[sessionID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.session, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[sessionID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.session, nil
		}
		r.mu.RUnlock()

		session, err := r.loader.LoadSession(ctx, sessionID)
		if err != nil {
			return domain.Session{}, err
		}

		r.mu.Lock()
		r.cache[sessionID] = cachedSession{
			session:   session,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return session, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return result.(domain.Session), nil
}

// StaticSessionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticSessionLoader struct {
	sessions map[string]domain.Session
}

func NewStaticSessionLoader(sessions map[string]domain.Session) *StaticSessionLoader {
	return &StaticSessionLoader{sessions: sessions}
}

func (l *StaticSessionLoader) LoadSession(_ context.Context, sessionID string) (domain.Session, error) {
	if session, ok := l.sessions[sessionID]; ok {
		return session, nil
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (r *SessionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
