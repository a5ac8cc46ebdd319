package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Usman11801/qetemplate-sub000/internal/app"
)

// RunStore is a Redis-aware implementation of app.RunRepository.
// Notes:
//   - Runs themselves stay in a local in-process map; their durable state
//     lives in the response store and the ephemeral store, so a run can be
//     rebuilt on any instance.
//   - Redis only marks run liveness, which gives operators visibility into
//     who is mid-quiz and lets markers expire with the credential TTL.
type RunStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	runs   map[string]*app.Run
}

func NewRunStore(client *redis.Client, ttl time.Duration) *RunStore {
	return &RunStore{
		client: client,
		ttl:    ttl,
		runs:   make(map[string]*app.Run),
	}
}

func (s *RunStore) GetOrCreate(sessionID, respondentID string, build func() *app.Run) *app.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionID + "/" + respondentID
	if run, ok := s.runs[key]; ok {
		return run
	}
	run := build()
	s.runs[key] = run
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(sessionID, respondentID), "1", s.ttl).Err()
	return run
}

func (s *RunStore) Get(sessionID, respondentID string) (*app.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[sessionID+"/"+respondentID]
	return run, ok
}

func (s *RunStore) Delete(sessionID, respondentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, sessionID+"/"+respondentID)
	_ = s.client.Del(context.Background(), s.key(sessionID, respondentID)).Err()
}

func (s *RunStore) key(sessionID, respondentID string) string {
	return "session:run:" + sessionID + ":" + respondentID
}
