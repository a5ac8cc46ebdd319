package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// Run is one respondent's in-progress pass over a session. It owns the
// authoritative working state; the response store only mirrors it, so a
// failed write is surfaced but never rolls local state back.
type Run struct {
	mu        sync.Mutex
	now       func() time.Time
	session   domain.Session
	token     string
	resp      domain.Response
	created   bool // response document exists in the store
	timer     questionTimer
	responses ResponseStore
	ephemeral EphemeralStore
	hidden    bool
	syncErr   error
}

// QuestionResult is the outcome of one graded submission of a question.
type QuestionResult struct {
	QuestionID   int                    `json:"questionId"`
	Attempts     int                    `json:"attempts"`
	AttemptsLeft int                    `json:"attemptsLeft"`
	Correct      bool                   `json:"correct"`
	Locked       bool                   `json:"locked"`
	Awarded      int                    `json:"awarded"`
	Total        int                    `json:"total"`
	Verdicts     map[int]domain.Verdict `json:"verdicts"`
	// AlreadyDecided marks the silent no-op path: the question was correct
	// or out of attempts before this call, and nothing changed.
	AlreadyDecided bool `json:"alreadyDecided,omitempty"`
	Synced         bool `json:"synced"`
}

// Summary is the outcome of the final submit-all transition.
type Summary struct {
	ResponseID   string `json:"responseId"`
	Total        int    `json:"total"`
	ElapsedMs    int64  `json:"elapsedMs"`
	AwardOutcome string `json:"awardOutcome,omitempty"`
	Synced       bool   `json:"synced"`
}

func newRun(session domain.Session, token string, resp domain.Response, created bool,
	responses ResponseStore, ephemeral EphemeralStore, now func() time.Time) *Run {
	r := &Run{
		now:       now,
		session:   session,
		token:     token,
		resp:      resp,
		created:   created,
		timer:     newQuestionTimer(now),
		responses: responses,
		ephemeral: ephemeral,
	}
	r.timer.restore(resp.Times)
	return r
}

func (r *Run) tokenMatches(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return token != "" && token == r.token
}

// setToken rotates the run's credential. The entrance flow issues a fresh
// token on every entry, so a still-live run (second tab, reconnect before the
// old connection tears down) must accept the newest one.
func (r *Run) setToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

// Session returns the frozen snapshot this run was built from.
func (r *Run) Session() domain.Session {
	return r.session
}

// Snapshot returns a deep copy of the respondent's current working document.
func (r *Run) Snapshot() domain.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp := r.resp
	resp.Answers = copyAnswerMap(r.resp.Answers)
	resp.Attempts = copyIntMap(r.resp.Attempts)
	resp.Verdicts = copyVerdictMap(r.resp.Verdicts)
	resp.Scores = copyIntMap(r.resp.Scores)
	resp.Times = r.timer.snapshotMs()
	return resp
}

// updateAnswer is a pure local mutation: no validation, no side effects.
func (r *Run) updateAnswer(questionID, componentID int, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resp.Status == domain.StatusCompleted {
		return
	}
	m := r.resp.Answers[questionID]
	if m == nil {
		m = make(map[int]any)
		r.resp.Answers[questionID] = m
	}
	m[componentID] = value
}

func (r *Run) submitQuestion(ctx context.Context, questionID int) (QuestionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resp.Status == domain.StatusCompleted {
		return QuestionResult{}, domain.ErrAlreadyCompleted
	}
	if r.deadlinePassedLocked() {
		return QuestionResult{}, domain.ErrDeadlinePassed
	}
	q, ok := r.questionLocked(questionID)
	if !ok {
		return QuestionResult{}, domain.ErrQuestionNotFound
	}

	attempts := r.resp.Attempts[questionID]
	_, scored := r.resp.Scores[questionID]
	if scored || attempts >= q.AttemptCap() {
		// Resubmitting a decided question is ignored, not an error.
		return QuestionResult{
			QuestionID:     questionID,
			Attempts:       attempts,
			AttemptsLeft:   q.AttemptCap() - attempts,
			Correct:        scored,
			Locked:         !scored,
			Total:          r.resp.Total,
			Verdicts:       copyVerdicts(r.resp.Verdicts[questionID]),
			AlreadyDecided: true,
		}, nil
	}

	answers := r.resp.Answers[questionID]
	var missing []int
	for _, comp := range q.Components {
		if comp.Scorable() && !comp.Answered(answers[comp.ID]) {
			missing = append(missing, comp.ID)
		}
	}
	if len(missing) > 0 {
		verdicts := r.resp.Verdicts[questionID]
		if verdicts == nil {
			verdicts = make(map[int]domain.Verdict)
			r.resp.Verdicts[questionID] = verdicts
		}
		for _, id := range missing {
			verdicts[id] = domain.VerdictNotSubmitted
		}
		// Attempt is not consumed.
		return QuestionResult{}, &domain.RequiredAnswersError{QuestionID: questionID, Missing: missing}
	}

	attempts++
	r.resp.Attempts[questionID] = attempts

	verdicts := make(map[int]domain.Verdict)
	allCorrect := true
	for _, comp := range q.Components {
		if !comp.Scorable() {
			continue
		}
		v := comp.Grade(answers[comp.ID])
		verdicts[comp.ID] = v
		if v != domain.VerdictCorrect {
			allCorrect = false
		}
	}
	r.resp.Verdicts[questionID] = verdicts

	res := QuestionResult{
		QuestionID:   questionID,
		Attempts:     attempts,
		AttemptsLeft: q.AttemptCap() - attempts,
		Correct:      allCorrect,
		Verdicts:     copyVerdicts(verdicts),
	}
	if allCorrect {
		// Points are awarded exactly once; this branch only runs on the
		// first all-correct pass because decided questions bail out above.
		points := q.PointValue()
		r.resp.Scores[questionID] = points
		r.resp.Total += points
		res.Awarded = points
	} else if attempts >= q.AttemptCap() {
		res.Locked = true
	}
	res.Total = r.resp.Total

	if (allCorrect || res.Locked) && r.session.Settings.Sequential {
		r.advanceLocked(ctx, questionID)
	}

	total := r.resp.Total
	patch := domain.ResponsePatch{
		Answers:  map[int]map[int]any{questionID: copyAnswers(answers)},
		Attempts: map[int]int{questionID: attempts},
		Verdicts: map[int]map[int]domain.Verdict{questionID: copyVerdicts(verdicts)},
		Total:    &total,
	}
	if res.Awarded > 0 {
		patch.Scores = map[int]int{questionID: res.Awarded}
	}
	res.Synced = r.syncLocked(ctx, patch)
	return res, nil
}

func (r *Run) submitAll(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resp.Status == domain.StatusCompleted {
		return Summary{}, domain.ErrAlreadyCompleted
	}
	if r.deadlinePassedLocked() {
		return Summary{}, domain.ErrDeadlinePassed
	}

	r.timer.pause()
	r.resp.Times = r.timer.snapshotMs()
	r.resp.ElapsedMs = r.timer.totalMs()
	completedAt := r.now()
	r.resp.Status = domain.StatusCompleted
	r.resp.CompletedAt = &completedAt

	total := r.resp.Total
	elapsed := r.resp.ElapsedMs
	status := domain.StatusCompleted
	patch := domain.ResponsePatch{
		Answers:     copyAnswerMap(r.resp.Answers),
		Attempts:    copyIntMap(r.resp.Attempts),
		Verdicts:    copyVerdictMap(r.resp.Verdicts),
		Scores:      copyIntMap(r.resp.Scores),
		Times:       copyTimes(r.resp.Times),
		Total:       &total,
		ElapsedMs:   &elapsed,
		Status:      &status,
		CompletedAt: &completedAt,
	}
	synced := r.syncLocked(ctx, patch)

	return Summary{
		ResponseID: r.resp.ID,
		Total:      total,
		ElapsedMs:  elapsed,
		Synced:     synced,
	}, nil
}

func (r *Run) recordAward(ctx context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resp.AwardOutcome = outcome
	o := outcome
	r.syncLocked(ctx, domain.ResponsePatch{AwardOutcome: &o})
}

func (r *Run) startTimer(ctx context.Context, questionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resp.Status == domain.StatusCompleted {
		return domain.ErrAlreadyCompleted
	}
	if _, ok := r.questionLocked(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	if err := r.timer.start(questionID); err != nil {
		return err
	}
	r.persistTimesLocked(ctx)
	return nil
}

func (r *Run) pauseTimer(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer.pause() {
		r.persistTimesLocked(ctx)
	}
}

// setHidden drives the timer from the page visibility signal: hidden pauses,
// visible resumes on the first question that is still open.
func (r *Run) setHidden(ctx context.Context, hidden bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden = hidden
	if r.resp.Status == domain.StatusCompleted {
		return
	}
	if hidden {
		if r.timer.pause() {
			r.persistTimesLocked(ctx)
		}
		return
	}
	if q, ok := r.firstOpenLocked(); ok {
		r.timer.resume(q)
	}
}

func (r *Run) deadlinePassedLocked() bool {
	d := r.session.Deadline
	return d != nil && r.now().After(*d)
}

func (r *Run) questionLocked(questionID int) (domain.Question, bool) {
	for _, q := range r.session.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

// firstOpenLocked returns the first question in order that is neither scored
// nor out of attempts.
func (r *Run) firstOpenLocked() (int, bool) {
	for _, q := range r.session.Questions {
		if _, scored := r.resp.Scores[q.ID]; scored {
			continue
		}
		if r.resp.Attempts[q.ID] >= q.AttemptCap() {
			continue
		}
		return q.ID, true
	}
	return 0, false
}

// advanceLocked moves the timer to the next open question after current.
func (r *Run) advanceLocked(ctx context.Context, current int) {
	idx := -1
	for i, q := range r.session.Questions {
		if q.ID == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	for _, q := range r.session.Questions[idx+1:] {
		if _, scored := r.resp.Scores[q.ID]; scored {
			continue
		}
		if r.resp.Attempts[q.ID] >= q.AttemptCap() {
			continue
		}
		r.timer.switchTo(q.ID)
		r.persistTimesLocked(ctx)
		return
	}
	// Nothing left after current; stop the clock.
	if r.timer.pause() {
		r.persistTimesLocked(ctx)
	}
}

func (r *Run) persistTimesLocked(ctx context.Context) {
	times := r.timer.snapshotMs()
	r.resp.Times = times
	if err := r.ephemeral.PutTimes(ctx, r.session.ID, r.resp.RespondentID, times); err != nil {
		log.Printf("persist times for %s/%s: %v", r.session.ID, r.resp.RespondentID, err)
	}
}

// syncLocked mirrors local state to the response store: the document is
// created lazily on the first write, merged afterwards. Failures keep local
// state intact and are reported to the caller as synced=false.
func (r *Run) syncLocked(ctx context.Context, patch domain.ResponsePatch) bool {
	var err error
	if !r.created {
		// The store keeps its own copy; local edits reach it only through
		// merge writes, never by aliasing the run's live maps.
		doc := r.resp
		doc.Answers = copyAnswerMap(r.resp.Answers)
		doc.Attempts = copyIntMap(r.resp.Attempts)
		doc.Verdicts = copyVerdictMap(r.resp.Verdicts)
		doc.Scores = copyIntMap(r.resp.Scores)
		doc.Times = copyTimes(r.resp.Times)
		err = r.responses.Create(ctx, doc)
		if err == nil {
			r.created = true
			if perr := r.ephemeral.PutResponseID(ctx, r.session.ID, r.resp.RespondentID, r.resp.ID); perr != nil {
				log.Printf("cache response id for %s/%s: %v", r.session.ID, r.resp.RespondentID, perr)
			}
		}
	} else {
		err = r.responses.Merge(ctx, r.resp.ID, patch)
	}
	if err != nil {
		r.syncErr = err
		log.Printf("response sync failed for %s: %v", r.resp.ID, err)
		return false
	}
	r.syncErr = nil
	return true
}

// LastSyncError exposes the most recent write failure for display.
func (r *Run) LastSyncError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncErr
}

func copyVerdicts(in map[int]domain.Verdict) map[int]domain.Verdict {
	out := make(map[int]domain.Verdict, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyVerdictMap(in map[int]map[int]domain.Verdict) map[int]map[int]domain.Verdict {
	out := make(map[int]map[int]domain.Verdict, len(in))
	for k, v := range in {
		out[k] = copyVerdicts(v)
	}
	return out
}

func copyAnswers(in map[int]any) map[int]any {
	out := make(map[int]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyAnswerMap(in map[int]map[int]any) map[int]map[int]any {
	out := make(map[int]map[int]any, len(in))
	for k, v := range in {
		out[k] = copyAnswers(v)
	}
	return out
}

func copyIntMap(in map[int]int) map[int]int {
	out := make(map[int]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyTimes(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
