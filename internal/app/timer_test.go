package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

func TestTimerPauseIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	timer := newQuestionTimer(clock.Now)

	if err := timer.start(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(3 * time.Second)
	if !timer.pause() {
		t.Fatalf("expected first pause to accumulate")
	}
	if got := timer.snapshotMs()[1]; got != 3000 {
		t.Fatalf("expected 3000ms, got %d", got)
	}

	clock.Advance(5 * time.Second)
	if timer.pause() {
		t.Fatalf("expected second pause to be a no-op")
	}
	if got := timer.snapshotMs()[1]; got != 3000 {
		t.Fatalf("expected accumulated time unchanged, got %d", got)
	}
}

func TestTimerRejectsConcurrentStart(t *testing.T) {
	clock := newFakeClock()
	timer := newQuestionTimer(clock.Now)

	if err := timer.start(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := timer.start(1); err != nil {
		t.Fatalf("re-start of same question should be a no-op, got %v", err)
	}
	if err := timer.start(2); err != domain.ErrTimerActive {
		t.Fatalf("expected ErrTimerActive, got %v", err)
	}
}

func TestTimerAccumulatedNeverDecreases(t *testing.T) {
	clock := newFakeClock()
	timer := newQuestionTimer(clock.Now)

	prev := make(map[int]int64)
	steps := []func(){
		func() { _ = timer.start(1) },
		func() { clock.Advance(time.Second); timer.pause() },
		func() { timer.resume(2) },
		func() { clock.Advance(2 * time.Second); timer.switchTo(1) },
		func() { clock.Advance(time.Second); timer.pause() },
		func() { timer.pause() },
	}
	for i, step := range steps {
		step()
		snap := timer.snapshotMs()
		for q, ms := range prev {
			if snap[q] < ms {
				t.Fatalf("step %d: accumulated[%d] decreased from %d to %d", i, q, ms, snap[q])
			}
		}
		prev = snap
	}
}

func TestTimerRestoreKeepsLargerValue(t *testing.T) {
	clock := newFakeClock()
	timer := newQuestionTimer(clock.Now)
	_ = timer.start(1)
	clock.Advance(4 * time.Second)
	timer.pause()

	timer.restore(map[int]int64{1: 1000, 2: 700})
	snap := timer.snapshotMs()
	if snap[1] != 4000 {
		t.Fatalf("expected larger local value kept, got %d", snap[1])
	}
	if snap[2] != 700 {
		t.Fatalf("expected restored value for question 2, got %d", snap[2])
	}
}

func TestHiddenPageStopsOnlyActiveQuestionClock(t *testing.T) {
	clock := newFakeClock()
	session := twoQuestionSession()
	resp := domain.NewResponse("r1", session.ID, "u1", "Alice", clock.Now())
	run := newRun(session, "tok", resp, false, stubResponses{}, &stubEphemeral{}, clock.Now)

	ctx := context.Background()
	if err := run.startTimer(ctx, 1); err != nil {
		t.Fatalf("start timer: %v", err)
	}
	clock.Advance(10 * time.Second)
	run.setHidden(ctx, true)

	times := run.Snapshot().Times
	if times[1] != 10000 {
		t.Fatalf("expected 10000ms on question 1, got %d", times[1])
	}
	if times[2] != 0 {
		t.Fatalf("expected question 2 untouched, got %d", times[2])
	}

	// Visible again: timing resumes on the first open question.
	run.setHidden(ctx, false)
	clock.Advance(2 * time.Second)
	run.pauseTimer(ctx)
	times = run.Snapshot().Times
	if times[1] != 12000 {
		t.Fatalf("expected resume on question 1, got %v", times)
	}
}

func twoQuestionSession() domain.Session {
	correct := 1
	isTrue := true
	return domain.Session{
		ID:     "sess-1",
		FormID: "form-1",
		Questions: []domain.Question{
			{
				ID: 1,
				Components: []domain.Component{
					{ID: 10, Kind: domain.KindMultipleChoice, Options: []string{"a", "b"}, CorrectOption: &correct},
				},
				Points:      1,
				MaxAttempts: 2,
			},
			{
				ID: 2,
				Components: []domain.Component{
					{ID: 20, Kind: domain.KindTrueFalse, CorrectBool: &isTrue},
				},
				Points:      2,
				MaxAttempts: 1,
			},
		},
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubResponses struct{}

func (stubResponses) Create(context.Context, domain.Response) error { return nil }
func (stubResponses) Get(context.Context, string) (domain.Response, error) {
	return domain.Response{}, domain.ErrResponseNotFound
}
func (stubResponses) Find(context.Context, string, string) (domain.Response, bool, error) {
	return domain.Response{}, false, nil
}
func (stubResponses) Merge(context.Context, string, domain.ResponsePatch) error { return nil }

type stubEphemeral struct {
	times map[int]int64
}

func (s *stubEphemeral) PutCredential(context.Context, string, string, string) error { return nil }
func (s *stubEphemeral) GetCredential(context.Context, string, string) (string, error) {
	return "", nil
}
func (s *stubEphemeral) PutResponseID(context.Context, string, string, string) error { return nil }
func (s *stubEphemeral) GetResponseID(context.Context, string, string) (string, error) {
	return "", nil
}
func (s *stubEphemeral) PutTimes(_ context.Context, _, _ string, times map[int]int64) error {
	s.times = times
	return nil
}
func (s *stubEphemeral) GetTimes(context.Context, string, string) (map[int]int64, error) {
	return s.times, nil
}
func (s *stubEphemeral) Clear(context.Context, string, string) error { return nil }
