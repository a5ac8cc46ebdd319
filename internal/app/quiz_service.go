package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// SessionRepository loads frozen session snapshots (from cache/backing store).
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
}

// ResponseStore persists per-respondent documents with field-level merges.
// A Merge must never touch fields the patch does not carry.
type ResponseStore interface {
	Create(ctx context.Context, resp domain.Response) error
	Get(ctx context.Context, responseID string) (domain.Response, error)
	Find(ctx context.Context, sessionID, respondentID string) (domain.Response, bool, error)
	Merge(ctx context.Context, responseID string, patch domain.ResponsePatch) error
}

// EphemeralStore holds short-lived per-respondent state, namespaced by
// session: the access credential, the response document id, and accumulated
// question times. Clear drops all of it at once.
type EphemeralStore interface {
	PutCredential(ctx context.Context, sessionID, respondentID, token string) error
	GetCredential(ctx context.Context, sessionID, respondentID string) (string, error)
	PutResponseID(ctx context.Context, sessionID, respondentID, responseID string) error
	GetResponseID(ctx context.Context, sessionID, respondentID string) (string, error)
	PutTimes(ctx context.Context, sessionID, respondentID string, times map[int]int64) error
	GetTimes(ctx context.Context, sessionID, respondentID string) (map[int]int64, error)
	Clear(ctx context.Context, sessionID, respondentID string) error
}

// AwardSlots reserves prize slots. Claim must decrement atomically so the
// configured slot count is never oversubscribed across respondents.
type AwardSlots interface {
	Claim(ctx context.Context, sessionID string, slots int) (bool, error)
}

// Notifier dispatches the award email via a remote callable function.
// Failures are recorded but must never block the caller's flow.
type Notifier interface {
	SendEmail(ctx context.Context, to, customMessage, prizeImageURL string) error
}

// RunRepository stores live respondent runs (in-memory, Redis-marked, etc).
type RunRepository interface {
	GetOrCreate(sessionID, respondentID string, build func() *Run) *Run
	Get(sessionID, respondentID string) (*Run, bool)
	Delete(sessionID, respondentID string)
}

// BoardRepository stores live leaderboard hubs per session.
type BoardRepository interface {
	GetOrCreate(sessionID string) *Board
	Get(sessionID string) (*Board, bool)
	DeleteIfEmpty(sessionID string)
}

// Deps bundles the collaborators for QuizService so the core stays testable
// without a live backend.
type Deps struct {
	Sessions  SessionRepository
	Responses ResponseStore
	Ephemeral EphemeralStore
	Slots     AwardSlots
	Notifier  Notifier
	Runs      RunRepository
	Boards    BoardRepository
	Now       func() time.Time
}

// QuizService contains the quiz-taking use cases: entering a session,
// answering, grading submissions, timers, and the final submit.
type QuizService struct {
	sessions  SessionRepository
	responses ResponseStore
	ephemeral EphemeralStore
	slots     AwardSlots
	notifier  Notifier
	runs      RunRepository
	boards    BoardRepository
	now       func() time.Time
}

func NewQuizService(deps Deps) *QuizService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	return &QuizService{
		sessions:  deps.Sessions,
		responses: deps.Responses,
		ephemeral: deps.Ephemeral,
		slots:     deps.Slots,
		notifier:  deps.Notifier,
		runs:      deps.Runs,
		boards:    deps.Boards,
		now:       deps.Now,
	}
}

// EnterResult is handed back by the entrance flow; the token is the access
// credential for every subsequent operation.
type EnterResult struct {
	Token      string
	ResponseID string
	Session    domain.Session
	Response   domain.Response
}

// Enter establishes the respondent's credential for a session and restores
// prior progress when rejoining.
func (s *QuizService) Enter(ctx context.Context, sessionID, respondentID, displayName, email string) (EnterResult, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return EnterResult{}, err
	}

	resp, found, err := s.responses.Find(ctx, sessionID, respondentID)
	if err != nil {
		return EnterResult{}, err
	}
	if !found {
		resp = domain.NewResponse(uuid.NewString(), sessionID, respondentID, displayName, s.now())
		resp.Email = email
	}

	// Reload survival: the ephemeral copy of question times may be newer
	// than the stored document.
	if times, terr := s.ephemeral.GetTimes(ctx, sessionID, respondentID); terr == nil {
		for q, ms := range times {
			if ms > resp.Times[q] {
				resp.Times[q] = ms
			}
		}
	}

	token := uuid.NewString()
	if err := s.ephemeral.PutCredential(ctx, sessionID, respondentID, token); err != nil {
		return EnterResult{}, err
	}
	if found {
		if err := s.ephemeral.PutResponseID(ctx, sessionID, respondentID, resp.ID); err != nil {
			log.Printf("cache response id for %s/%s: %v", sessionID, respondentID, err)
		}
	}

	run := s.runs.GetOrCreate(sessionID, respondentID, func() *Run {
		return newRun(session, token, resp, found, s.responses, s.ephemeral, s.now)
	})
	// A run that outlived its previous connection still holds the old token.
	run.setToken(token)

	// The snapshot reflects the live run, which may be further along than the
	// stored document this entry loaded.
	snap := run.Snapshot()

	if session.Settings.LeaderboardEnabled {
		board := s.boards.GetOrCreate(sessionID)
		board.Join(respondentID, displayName, snap.Total)
	}

	return EnterResult{
		Token:      token,
		ResponseID: snap.ID,
		Session:    session,
		Response:   snap,
	}, nil
}

// resolveRun finds the live run for a credential, rebuilding it from the
// ephemeral store and the response document after a reload. A missing or
// mismatched credential is a hard failure.
func (s *QuizService) resolveRun(ctx context.Context, sessionID, respondentID, token string) (*Run, error) {
	if run, ok := s.runs.Get(sessionID, respondentID); ok {
		if !run.tokenMatches(token) {
			return nil, domain.ErrAccessDenied
		}
		return run, nil
	}

	stored, err := s.ephemeral.GetCredential(ctx, sessionID, respondentID)
	if err != nil || stored == "" || stored != token {
		return nil, domain.ErrAccessDenied
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var resp domain.Response
	created := false
	if responseID, rerr := s.ephemeral.GetResponseID(ctx, sessionID, respondentID); rerr == nil && responseID != "" {
		if resp, err = s.responses.Get(ctx, responseID); err != nil {
			return nil, err
		}
		created = true
	} else {
		resp, created, err = s.responses.Find(ctx, sessionID, respondentID)
		if err != nil {
			return nil, err
		}
		if !created {
			resp = domain.NewResponse(uuid.NewString(), sessionID, respondentID, "", s.now())
		}
	}
	if times, terr := s.ephemeral.GetTimes(ctx, sessionID, respondentID); terr == nil {
		for q, ms := range times {
			if ms > resp.Times[q] {
				resp.Times[q] = ms
			}
		}
	}

	rebuilt := false
	run := s.runs.GetOrCreate(sessionID, respondentID, func() *Run {
		rebuilt = true
		return newRun(session, stored, resp, created, s.responses, s.ephemeral, s.now)
	})
	if rebuilt && session.Settings.LeaderboardEnabled {
		// The board entry was dropped with the old run; restore it with the
		// stored display name so broadcasts are never blank.
		s.boards.GetOrCreate(sessionID).Join(respondentID, resp.DisplayName, resp.Total)
	}
	return run, nil
}

// UpdateAnswer records a respondent's value for one component. Pure local
// mutation: nothing is validated and nothing is written remotely.
func (s *QuizService) UpdateAnswer(ctx context.Context, sessionID, respondentID, token string, questionID, componentID int, value any) error {
	run, err := s.resolveRun(ctx, sessionID, respondentID, token)
	if err != nil {
		return err
	}
	run.updateAnswer(questionID, componentID, value)
	return nil
}

// SubmitQuestion grades the current answers for one question.
func (s *QuizService) SubmitQuestion(ctx context.Context, sessionID, respondentID, token string, questionID int) (QuestionResult, error) {
	run, err := s.resolveRun(ctx, sessionID, respondentID, token)
	if err != nil {
		return QuestionResult{}, err
	}
	res, err := run.submitQuestion(ctx, questionID)
	if err != nil {
		return res, err
	}
	if res.Awarded > 0 && run.Session().Settings.LeaderboardEnabled {
		snap := run.Snapshot()
		board := s.boards.GetOrCreate(sessionID)
		board.SetScore(respondentID, snap.DisplayName, snap.Total)
	}
	return res, nil
}

// SubmitAll performs the final write, claims an award slot when the score
// qualifies, and clears the respondent's ephemeral state.
func (s *QuizService) SubmitAll(ctx context.Context, sessionID, respondentID, token string) (Summary, error) {
	run, err := s.resolveRun(ctx, sessionID, respondentID, token)
	if err != nil {
		return Summary{}, err
	}
	sum, err := run.submitAll(ctx)
	if err != nil {
		return sum, err
	}

	if award := run.Session().Settings.Award; award != nil && sum.Total >= award.MinScore {
		claimed, cerr := s.slots.Claim(ctx, sessionID, award.Slots)
		switch {
		case cerr != nil:
			log.Printf("award slot claim for %s/%s: %v", sessionID, respondentID, cerr)
		case claimed:
			snap := run.Snapshot()
			outcome := domain.AwardSent
			if nerr := s.notifier.SendEmail(ctx, snap.Email, award.CustomMessage, award.PrizeImageURL); nerr != nil {
				outcome = domain.AwardFailed
				log.Printf("award notification for %s/%s: %v", sessionID, respondentID, nerr)
			}
			run.recordAward(ctx, outcome)
			sum.AwardOutcome = outcome
		}
	}

	if err := s.ephemeral.Clear(ctx, sessionID, respondentID); err != nil {
		log.Printf("clear ephemeral state for %s/%s: %v", sessionID, respondentID, err)
	}
	s.runs.Delete(sessionID, respondentID)
	return sum, nil
}

// StartTimer begins timing a question; a concurrent start for a different
// question is rejected.
func (s *QuizService) StartTimer(ctx context.Context, sessionID, respondentID, token string, questionID int) error {
	run, err := s.resolveRun(ctx, sessionID, respondentID, token)
	if err != nil {
		return err
	}
	return run.startTimer(ctx, questionID)
}

// PauseTimer stops the active question's clock; idempotent.
func (s *QuizService) PauseTimer(ctx context.Context, sessionID, respondentID, token string) error {
	run, err := s.resolveRun(ctx, sessionID, respondentID, token)
	if err != nil {
		return err
	}
	run.pauseTimer(ctx)
	return nil
}

// SetVisibility feeds the page visibility signal into the timer.
func (s *QuizService) SetVisibility(ctx context.Context, sessionID, respondentID, token string, hidden bool) error {
	run, err := s.resolveRun(ctx, sessionID, respondentID, token)
	if err != nil {
		return err
	}
	run.setHidden(ctx, hidden)
	return nil
}

// Subscribe returns a channel of leaderboard snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Leaderboard, func(), error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !session.Settings.LeaderboardEnabled {
		return nil, nil, domain.ErrAccessDenied
	}
	board := s.boards.GetOrCreate(sessionID)
	ch, cancel := board.Subscribe()
	return ch, cancel, nil
}

// Leave drops the respondent's live run and leaderboard entry, releasing the
// board when nobody is left. Persistent state is untouched.
func (s *QuizService) Leave(_ context.Context, sessionID, respondentID string) {
	s.runs.Delete(sessionID, respondentID)
	board, ok := s.boards.Get(sessionID)
	if !ok {
		return
	}
	board.Leave(respondentID)
	if board.IsEmpty() {
		s.boards.DeleteIfEmpty(sessionID)
	}
}

type noopNotifier struct{}

func (noopNotifier) SendEmail(context.Context, string, string, string) error { return nil }
