package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

func TestSessionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		SessionLoader: NewStaticSessionLoader(map[string]domain.Session{
			"sess-1": sampleSession(),
		}),
	}
	repo := NewSessionRepository(loader, time.Minute)

	if _, err := repo.GetSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("get session 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestSessionRepositoryUnknownSession(t *testing.T) {
	repo := NewSessionRepository(NewStaticSessionLoader(nil), time.Minute)
	if _, err := repo.GetSession(context.Background(), "nope"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

type countingLoader struct {
	SessionLoader
	calls int
}

func (l *countingLoader) LoadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	l.calls++
	return l.SessionLoader.LoadSession(ctx, sessionID)
}

func sampleSession() domain.Session {
	correct := 1
	return domain.Session{
		ID:     "sess-1",
		FormID: "form-1",
		Questions: []domain.Question{
			{
				ID: 1,
				Components: []domain.Component{
					{
						ID:            10,
						Kind:          domain.KindMultipleChoice,
						Options:       []string{"3", "4", "5"},
						CorrectOption: &correct,
					},
				},
				Points:      1,
				MaxAttempts: 2,
			},
		},
	}
}
