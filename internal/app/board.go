package app

import (
	"sort"
	"sync"
	"time"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// Board aggregates respondent totals for one session and fans out live
// leaderboard snapshots to subscribers.
type Board struct {
	sessionID string
	now       func() time.Time

	mu          sync.RWMutex
	standings   map[string]*standing
	subscribers map[chan domain.Leaderboard]struct{}
}

type standing struct {
	respondentID string
	displayName  string
	score        int
	lastUpdated  time.Time
}

// NewBoard is exported for infrastructure layers that need to seed boards.
func NewBoard(sessionID string) *Board {
	return NewBoardWithClock(sessionID, time.Now)
}

// NewBoardWithClock allows deterministic timestamps in tests.
func NewBoardWithClock(sessionID string, now func() time.Time) *Board {
	return &Board{
		sessionID:   sessionID,
		now:         now,
		standings:   make(map[string]*standing),
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Join registers or refreshes a respondent on the board.
func (b *Board) Join(respondentID, displayName string, score int) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if s, ok := b.standings[respondentID]; ok {
		s.displayName = displayName
		if score > s.score {
			s.score = score
			s.lastUpdated = now
		}
	} else {
		b.standings[respondentID] = &standing{
			respondentID: respondentID,
			displayName:  displayName,
			score:        score,
			lastUpdated:  now,
		}
	}
	return b.broadcastLocked()
}

// SetScore records a respondent's new total and broadcasts the board.
func (b *Board) SetScore(respondentID, displayName string, total int) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	s, ok := b.standings[respondentID]
	if !ok {
		s = &standing{respondentID: respondentID}
		b.standings[respondentID] = s
	}
	s.displayName = displayName
	if total != s.score {
		s.score = total
		s.lastUpdated = now
	}
	return b.broadcastLocked()
}

// Leave removes a respondent from the board.
func (b *Board) Leave(respondentID string) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.standings, respondentID)
	return b.broadcastLocked()
}

// IsEmpty reports whether the board has no respondents.
func (b *Board) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.standings) == 0
}

// Subscribe returns a channel fed with leaderboard snapshots, starting with
// the current one. The caller must invoke cancel to avoid leaks.
func (b *Board) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	initial := b.snapshotLocked()
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Board) broadcastLocked() domain.Leaderboard {
	lb := b.snapshotLocked()
	for ch := range b.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so a slow subscriber never blocks the board.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (b *Board) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(b.standings))
	for _, s := range b.standings {
		entries = append(entries, domain.LeaderboardEntry{
			RespondentID: s.respondentID,
			DisplayName:  s.displayName,
			Score:        s.score,
		})
	}

	// Score desc, then whoever reached their score first, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		si := b.standings[entries[i].RespondentID]
		sj := b.standings[entries[j].RespondentID]
		if si != nil && sj != nil && !si.lastUpdated.Equal(sj.lastUpdated) {
			return si.lastUpdated.Before(sj.lastUpdated)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	return domain.Leaderboard{
		SessionID: b.sessionID,
		Entries:   entries,
		UpdatedAt: b.now(),
	}
}
