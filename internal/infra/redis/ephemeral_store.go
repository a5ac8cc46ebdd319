package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// EphemeralStore keeps per-respondent short-lived state in Redis, namespaced
// by session id: the access credential, the cached response-document id, and
// accumulated question times. Everything expires on its own and is deleted
// together on normal completion.
type EphemeralStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEphemeralStore(client *redis.Client, ttl time.Duration) *EphemeralStore {
	return &EphemeralStore{client: client, ttl: ttl}
}

func (s *EphemeralStore) PutCredential(ctx context.Context, sessionID, respondentID, token string) error {
	return s.client.Set(ctx, s.key(sessionID, respondentID, "token"), token, s.ttl).Err()
}

func (s *EphemeralStore) GetCredential(ctx context.Context, sessionID, respondentID string) (string, error) {
	token, err := s.client.Get(ctx, s.key(sessionID, respondentID, "token")).Result()
	if err == redis.Nil {
		return "", nil
	}
	return token, err
}

func (s *EphemeralStore) PutResponseID(ctx context.Context, sessionID, respondentID, responseID string) error {
	return s.client.Set(ctx, s.key(sessionID, respondentID, "response"), responseID, s.ttl).Err()
}

func (s *EphemeralStore) GetResponseID(ctx context.Context, sessionID, respondentID string) (string, error) {
	id, err := s.client.Get(ctx, s.key(sessionID, respondentID, "response")).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (s *EphemeralStore) PutTimes(ctx context.Context, sessionID, respondentID string, times map[int]int64) error {
	key := s.key(sessionID, respondentID, "times")
	pipe := s.client.Pipeline()
	for q, ms := range times {
		pipe.HSet(ctx, key, strconv.Itoa(q), ms)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *EphemeralStore) GetTimes(ctx context.Context, sessionID, respondentID string) (map[int]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key(sessionID, respondentID, "times")).Result()
	if err != nil {
		return nil, err
	}
	times := make(map[int]int64, len(raw))
	for field, value := range raw {
		q, qerr := strconv.Atoi(field)
		if qerr != nil {
			continue
		}
		ms, merr := strconv.ParseInt(value, 10, 64)
		if merr != nil {
			continue
		}
		times[q] = ms
	}
	return times, nil
}

func (s *EphemeralStore) Clear(ctx context.Context, sessionID, respondentID string) error {
	return s.client.Del(ctx,
		s.key(sessionID, respondentID, "token"),
		s.key(sessionID, respondentID, "response"),
		s.key(sessionID, respondentID, "times"),
	).Err()
}

func (s *EphemeralStore) key(sessionID, respondentID, suffix string) string {
	return "session:" + sessionID + ":resp:" + respondentID + ":" + suffix
}

// AwardSlots reserves prize slots with an atomic Redis decrement so the
// configured count is honored across instances.
type AwardSlots struct {
	client *redis.Client
}

func NewAwardSlots(client *redis.Client) *AwardSlots {
	return &AwardSlots{client: client}
}

func (s *AwardSlots) Claim(ctx context.Context, sessionID string, slots int) (bool, error) {
	key := "session:" + sessionID + ":award:slots"
	if err := s.client.SetNX(ctx, key, slots, 0).Err(); err != nil {
		return false, err
	}
	left, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return left >= 0, nil
}
