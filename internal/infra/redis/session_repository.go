package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// SessionLoader fetches session snapshots from a backing store (e.g., document DB).
type SessionLoader interface {
	LoadSession(ctx context.Context, sessionID string) (domain.Session, error)
}

// SessionRepository caches whole session snapshots as JSON in Redis and falls
// back to a loader on cache miss. An entry that fails to parse is treated as
// a miss and refetched, never served.
type SessionRepository struct {
	client *redis.Client
	loader SessionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewSessionRepository(client *redis.Client, loader SessionLoader, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	key := r.snapshotKey(sessionID)

	if session, ok := r.cached(ctx, key); ok {
		return session, nil
	}

	result, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if session, ok := r.cached(ctx, key); ok {
			return session, nil
		}

		session, err := r.loader.LoadSession(ctx, sessionID)
		if err != nil {
			return domain.Session{}, err
		}

		if raw, merr := json.Marshal(session); merr == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return session, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return result.(domain.Session), nil
}

func (r *SessionRepository) cached(ctx context.Context, key string) (domain.Session, bool) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return domain.Session{}, false
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.Session{}, false
	}
	return session, true
}

func (r *SessionRepository) snapshotKey(sessionID string) string {
	return "session:" + sessionID + ":snapshot"
}

func (r *SessionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
