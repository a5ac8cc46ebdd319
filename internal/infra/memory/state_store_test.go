package memory

import (
	"testing"

	"github.com/Usman11801/qetemplate-sub000/internal/app"
)

func TestRunStoreLifecycle(t *testing.T) {
	store := NewRunStore()

	built := 0
	build := func() *app.Run {
		built++
		return &app.Run{}
	}

	first := store.GetOrCreate("s1", "u1", build)
	second := store.GetOrCreate("s1", "u1", build)
	if first != second {
		t.Fatalf("expected the same run for the same key")
	}
	if built != 1 {
		t.Fatalf("expected build once, got %d", built)
	}

	other := store.GetOrCreate("s1", "u2", build)
	if other == first {
		t.Fatalf("expected distinct runs per respondent")
	}

	if _, ok := store.Get("s1", "u1"); !ok {
		t.Fatalf("expected run present")
	}
	store.Delete("s1", "u1")
	if _, ok := store.Get("s1", "u1"); ok {
		t.Fatalf("expected run gone after delete")
	}
	if _, ok := store.Get("s1", "u2"); !ok {
		t.Fatalf("delete must not touch other respondents")
	}
}

func TestBoardStoreDeleteIfEmpty(t *testing.T) {
	store := NewBoardStore()

	board := store.GetOrCreate("s1")
	if again := store.GetOrCreate("s1"); again != board {
		t.Fatalf("expected the same board per session")
	}

	board.Join("u1", "Alice", 0)
	store.DeleteIfEmpty("s1")
	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("occupied board must survive DeleteIfEmpty")
	}

	board.Leave("u1")
	store.DeleteIfEmpty("s1")
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("empty board should be dropped")
	}
}

func TestBoardOrdering(t *testing.T) {
	board := app.NewBoard("s1")
	board.Join("u1", "Alice", 0)
	board.Join("u2", "Bob", 0)

	board.SetScore("u1", "Alice", 3)
	lb := board.SetScore("u2", "Bob", 5)

	if len(lb.Entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].RespondentID != "u2" || lb.Entries[0].Score != 5 {
		t.Fatalf("expected Bob on top, got %+v", lb.Entries)
	}
}
