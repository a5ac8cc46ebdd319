package app

import (
	"time"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// questionTimer tracks active-question elapsed time. At most one question is
// running at a time; accumulated time per question only ever grows.
type questionTimer struct {
	now         func() time.Time
	active      int
	running     bool
	lastActive  time.Time
	accumulated map[int]time.Duration
}

func newQuestionTimer(now func() time.Time) questionTimer {
	return questionTimer{
		now:         now,
		accumulated: make(map[int]time.Duration),
	}
}

// start begins timing questionID. A second start while another question is
// running is rejected rather than silently overwriting the active question.
func (t *questionTimer) start(questionID int) error {
	if t.running {
		if t.active == questionID {
			return nil
		}
		return domain.ErrTimerActive
	}
	t.active = questionID
	t.running = true
	t.lastActive = t.now()
	return nil
}

// pause folds the elapsed interval into the active question's accumulated
// time. Idempotent: a second pause without an intervening resume is a no-op.
// Reports whether any accumulated value changed.
func (t *questionTimer) pause() bool {
	if !t.running {
		return false
	}
	elapsed := t.now().Sub(t.lastActive)
	if elapsed < 0 {
		elapsed = 0
	}
	t.accumulated[t.active] += elapsed
	t.running = false
	return true
}

// resume restarts timing for questionID, resetting the active timestamp.
func (t *questionTimer) resume(questionID int) {
	t.active = questionID
	t.running = true
	t.lastActive = t.now()
}

// switchTo pauses the current question (if any) and resumes on questionID.
func (t *questionTimer) switchTo(questionID int) {
	t.pause()
	t.resume(questionID)
}

// snapshotMs returns accumulated times in milliseconds.
func (t *questionTimer) snapshotMs() map[int]int64 {
	out := make(map[int]int64, len(t.accumulated))
	for q, d := range t.accumulated {
		out[q] = d.Milliseconds()
	}
	return out
}

// restore seeds accumulated times from a persisted snapshot, keeping the
// larger value where both sides have one so time never runs backwards.
func (t *questionTimer) restore(times map[int]int64) {
	for q, ms := range times {
		d := time.Duration(ms) * time.Millisecond
		if d > t.accumulated[q] {
			t.accumulated[q] = d
		}
	}
}

// totalMs is the sum of all accumulated question times in milliseconds.
func (t *questionTimer) totalMs() int64 {
	var total time.Duration
	for _, d := range t.accumulated {
		total += d
	}
	return total.Milliseconds()
}
