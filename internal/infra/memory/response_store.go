package memory

import (
	"context"
	"sync"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// ResponseStore is an in-memory document store for respondent responses with
// the same field-level merge semantics as the Postgres-backed one.
type ResponseStore struct {
	mu        sync.RWMutex
	responses map[string]domain.Response
	bySession map[string]string // sessionID/respondentID -> responseID
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{
		responses: make(map[string]domain.Response),
		bySession: make(map[string]string),
	}
}

// Create stores its own copy of the document. The stored mirror changes only
// through Merge, never through the caller's live maps.
func (s *ResponseStore) Create(_ context.Context, resp domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.ID] = cloneResponse(resp)
	s.bySession[runKey(resp.SessionID, resp.RespondentID)] = resp.ID
	return nil
}

func (s *ResponseStore) Get(_ context.Context, responseID string) (domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[responseID]
	if !ok {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	return cloneResponse(resp), nil
}

func (s *ResponseStore) Find(_ context.Context, sessionID, respondentID string) (domain.Response, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySession[runKey(sessionID, respondentID)]
	if !ok {
		return domain.Response{}, false, nil
	}
	resp, ok := s.responses[id]
	if !ok {
		return domain.Response{}, false, nil
	}
	return cloneResponse(resp), true, nil
}

func (s *ResponseStore) Merge(_ context.Context, responseID string, patch domain.ResponsePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[responseID]
	if !ok {
		return domain.ErrResponseNotFound
	}
	patch.Apply(&resp)
	s.responses[responseID] = resp
	return nil
}

func cloneResponse(resp domain.Response) domain.Response {
	out := resp
	out.Answers = make(map[int]map[int]any, len(resp.Answers))
	for q, comps := range resp.Answers {
		m := make(map[int]any, len(comps))
		for c, v := range comps {
			m[c] = v
		}
		out.Answers[q] = m
	}
	out.Attempts = make(map[int]int, len(resp.Attempts))
	for q, n := range resp.Attempts {
		out.Attempts[q] = n
	}
	out.Verdicts = make(map[int]map[int]domain.Verdict, len(resp.Verdicts))
	for q, verdicts := range resp.Verdicts {
		m := make(map[int]domain.Verdict, len(verdicts))
		for c, v := range verdicts {
			m[c] = v
		}
		out.Verdicts[q] = m
	}
	out.Scores = make(map[int]int, len(resp.Scores))
	for q, pts := range resp.Scores {
		out.Scores[q] = pts
	}
	out.Times = make(map[int]int64, len(resp.Times))
	for q, ms := range resp.Times {
		out.Times[q] = ms
	}
	return out
}

// EphemeralStore keeps per-respondent short-lived state in process memory.
type EphemeralStore struct {
	mu          sync.RWMutex
	credentials map[string]string
	responseIDs map[string]string
	times       map[string]map[int]int64
}

func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{
		credentials: make(map[string]string),
		responseIDs: make(map[string]string),
		times:       make(map[string]map[int]int64),
	}
}

func (s *EphemeralStore) PutCredential(_ context.Context, sessionID, respondentID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[runKey(sessionID, respondentID)] = token
	return nil
}

func (s *EphemeralStore) GetCredential(_ context.Context, sessionID, respondentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentials[runKey(sessionID, respondentID)], nil
}

func (s *EphemeralStore) PutResponseID(_ context.Context, sessionID, respondentID, responseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseIDs[runKey(sessionID, respondentID)] = responseID
	return nil
}

func (s *EphemeralStore) GetResponseID(_ context.Context, sessionID, respondentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.responseIDs[runKey(sessionID, respondentID)], nil
}

func (s *EphemeralStore) PutTimes(_ context.Context, sessionID, respondentID string, times map[int]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[int]int64, len(times))
	for q, ms := range times {
		copied[q] = ms
	}
	s.times[runKey(sessionID, respondentID)] = copied
	return nil
}

func (s *EphemeralStore) GetTimes(_ context.Context, sessionID, respondentID string) (map[int]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.times[runKey(sessionID, respondentID)]
	out := make(map[int]int64, len(stored))
	for q, ms := range stored {
		out[q] = ms
	}
	return out, nil
}

func (s *EphemeralStore) Clear(_ context.Context, sessionID, respondentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runKey(sessionID, respondentID)
	delete(s.credentials, key)
	delete(s.responseIDs, key)
	delete(s.times, key)
	return nil
}

// AwardSlots tracks remaining prize slots per session under a mutex.
type AwardSlots struct {
	mu        sync.Mutex
	remaining map[string]int
}

func NewAwardSlots() *AwardSlots {
	return &AwardSlots{remaining: make(map[string]int)}
}

// Claim reserves one slot, seeding the counter from the configured total on
// first use. Returns false once the slots are gone.
func (s *AwardSlots) Claim(_ context.Context, sessionID string, slots int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	left, ok := s.remaining[sessionID]
	if !ok {
		left = slots
	}
	if left <= 0 {
		s.remaining[sessionID] = 0
		return false, nil
	}
	s.remaining[sessionID] = left - 1
	return true, nil
}
