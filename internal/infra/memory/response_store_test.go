package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

func TestResponseStoreMergeLeavesOtherFieldsAlone(t *testing.T) {
	ctx := context.Background()
	store := NewResponseStore()

	resp := domain.NewResponse("r1", "sess-1", "u1", "Alice", time.Now())
	resp.Answers[1] = map[int]any{10: "hello"}
	resp.Scores[1] = 2
	resp.Total = 2
	if err := store.Create(ctx, resp); err != nil {
		t.Fatalf("create: %v", err)
	}

	total := 5
	patch := domain.ResponsePatch{
		Scores: map[int]int{2: 3},
		Total:  &total,
	}
	if err := store.Merge(ctx, "r1", patch); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Scores[1] != 2 || got.Scores[2] != 3 {
		t.Fatalf("expected scores {1:2, 2:3}, got %v", got.Scores)
	}
	if got.Total != 5 {
		t.Fatalf("expected total 5, got %d", got.Total)
	}
	if got.Answers[1][10] != "hello" {
		t.Fatalf("expected answers untouched, got %v", got.Answers)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("expected status untouched, got %q", got.Status)
	}
}

func TestResponseStoreFindByRespondent(t *testing.T) {
	ctx := context.Background()
	store := NewResponseStore()

	if _, found, err := store.Find(ctx, "sess-1", "u1"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	resp := domain.NewResponse("r1", "sess-1", "u1", "Alice", time.Now())
	if err := store.Create(ctx, resp); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, found, err := store.Find(ctx, "sess-1", "u1")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if got.ID != "r1" {
		t.Fatalf("expected r1, got %s", got.ID)
	}
}

func TestEphemeralStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeralStore()

	_ = store.PutCredential(ctx, "sess-1", "u1", "tok")
	_ = store.PutResponseID(ctx, "sess-1", "u1", "r1")
	_ = store.PutTimes(ctx, "sess-1", "u1", map[int]int64{1: 1500})

	if err := store.Clear(ctx, "sess-1", "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if tok, _ := store.GetCredential(ctx, "sess-1", "u1"); tok != "" {
		t.Fatalf("expected credential cleared, got %q", tok)
	}
	if id, _ := store.GetResponseID(ctx, "sess-1", "u1"); id != "" {
		t.Fatalf("expected response id cleared, got %q", id)
	}
	if times, _ := store.GetTimes(ctx, "sess-1", "u1"); len(times) != 0 {
		t.Fatalf("expected times cleared, got %v", times)
	}
}

func TestAwardSlotsExhaust(t *testing.T) {
	ctx := context.Background()
	slots := NewAwardSlots()

	for i := 0; i < 2; i++ {
		ok, err := slots.Claim(ctx, "sess-1", 2)
		if err != nil || !ok {
			t.Fatalf("claim %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := slots.Claim(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ok {
		t.Fatalf("expected slots exhausted")
	}
}
