package memory

import (
	"sync"

	"github.com/Usman11801/qetemplate-sub000/internal/app"
)

// RunStore is an in-memory implementation of app.RunRepository.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*app.Run
}

func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*app.Run)}
}

func (s *RunStore) GetOrCreate(sessionID, respondentID string, build func() *app.Run) *app.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runKey(sessionID, respondentID)
	if run, ok := s.runs[key]; ok {
		return run
	}
	run := build()
	s.runs[key] = run
	return run
}

func (s *RunStore) Get(sessionID, respondentID string) (*app.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runKey(sessionID, respondentID)]
	return run, ok
}

func (s *RunStore) Delete(sessionID, respondentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runKey(sessionID, respondentID))
}

func runKey(sessionID, respondentID string) string {
	return sessionID + "/" + respondentID
}

// BoardStore is an in-memory implementation of app.BoardRepository.
type BoardStore struct {
	mu     sync.RWMutex
	boards map[string]*app.Board
}

func NewBoardStore() *BoardStore {
	return &BoardStore{boards: make(map[string]*app.Board)}
}

func (s *BoardStore) GetOrCreate(sessionID string) *app.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if board, ok := s.boards[sessionID]; ok {
		return board
	}
	board := app.NewBoard(sessionID)
	s.boards[sessionID] = board
	return board
}

func (s *BoardStore) Get(sessionID string) (*app.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[sessionID]
	return board, ok
}

func (s *BoardStore) DeleteIfEmpty(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[sessionID]
	if !ok {
		return
	}
	if board.IsEmpty() {
		delete(s.boards, sessionID)
	}
}
