package domain

import (
	"testing"
	"time"
)

func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestComponentGrade(t *testing.T) {
	tests := []struct {
		name  string
		comp  Component
		value any
		want  Verdict
	}{
		{
			name:  "choice correct",
			comp:  Component{Kind: KindMultipleChoice, CorrectOption: intPtr(2)},
			value: 2,
			want:  VerdictCorrect,
		},
		{
			name:  "choice correct from json float",
			comp:  Component{Kind: KindMultipleChoice, CorrectOption: intPtr(2)},
			value: float64(2),
			want:  VerdictCorrect,
		},
		{
			name:  "choice wrong",
			comp:  Component{Kind: KindMultipleChoice, CorrectOption: intPtr(2)},
			value: 0,
			want:  VerdictIncorrect,
		},
		{
			name:  "choice without key",
			comp:  Component{Kind: KindMultipleChoice},
			value: 1,
			want:  VerdictUnanswered,
		},
		{
			name:  "choice malformed value",
			comp:  Component{Kind: KindMultipleChoice, CorrectOption: intPtr(2)},
			value: "two",
			want:  VerdictUnanswered,
		},
		{
			name:  "bool correct",
			comp:  Component{Kind: KindTrueFalse, CorrectBool: boolPtr(true)},
			value: true,
			want:  VerdictCorrect,
		},
		{
			name:  "bool wrong",
			comp:  Component{Kind: KindTrueFalse, CorrectBool: boolPtr(true)},
			value: false,
			want:  VerdictIncorrect,
		},
		{
			name:  "text case insensitive by default",
			comp:  Component{Kind: KindShortText, CorrectText: "Gopher"},
			value: "  gopher ",
			want:  VerdictCorrect,
		},
		{
			name:  "text case sensitive",
			comp:  Component{Kind: KindShortText, CorrectText: "Gopher", CaseSensitive: true},
			value: "gopher",
			want:  VerdictIncorrect,
		},
		{
			name:  "text without key",
			comp:  Component{Kind: KindShortText},
			value: "anything",
			want:  VerdictUnanswered,
		},
		{
			name:  "slider within tolerance",
			comp:  Component{Kind: KindSlider, Target: floatPtr(50), Tolerance: 2},
			value: 51.5,
			want:  VerdictCorrect,
		},
		{
			name:  "slider outside tolerance",
			comp:  Component{Kind: KindSlider, Target: floatPtr(50), Tolerance: 2},
			value: 54,
			want:  VerdictIncorrect,
		},
		{
			name:  "matching exact",
			comp:  Component{Kind: KindMatching, Pairs: map[string]string{"a": "1", "b": "2"}},
			value: map[string]any{"a": "1", "b": "2"},
			want:  VerdictCorrect,
		},
		{
			name:  "matching one pair off",
			comp:  Component{Kind: KindMatching, Pairs: map[string]string{"a": "1", "b": "2"}},
			value: map[string]string{"a": "1", "b": "3"},
			want:  VerdictIncorrect,
		},
		{
			name:  "matching incomplete",
			comp:  Component{Kind: KindMatching, Pairs: map[string]string{"a": "1", "b": "2"}},
			value: map[string]string{"a": "1"},
			want:  VerdictIncorrect,
		},
		{
			name:  "display component never graded",
			comp:  Component{Kind: KindText},
			value: "ignored",
			want:  VerdictUnanswered,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.comp.Grade(tc.value); got != tc.want {
				t.Fatalf("Grade(%v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestComponentAnswered(t *testing.T) {
	tests := []struct {
		name  string
		comp  Component
		value any
		want  bool
	}{
		{"choice with index", Component{Kind: KindMultipleChoice}, 0, true},
		{"choice nil", Component{Kind: KindMultipleChoice}, nil, false},
		{"bool false still answered", Component{Kind: KindTrueFalse}, false, true},
		{"text blank", Component{Kind: KindShortText}, "   ", false},
		{"text filled", Component{Kind: KindShortText}, "x", true},
		{"slider json number", Component{Kind: KindSlider}, float64(3), true},
		{"matching empty", Component{Kind: KindMatching}, map[string]any{}, false},
		{"display vacuously answered", Component{Kind: KindImage}, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.comp.Answered(tc.value); got != tc.want {
				t.Fatalf("Answered(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestQuestionDefaults(t *testing.T) {
	q := Question{}
	if q.PointValue() != 1 {
		t.Fatalf("expected default point value 1, got %d", q.PointValue())
	}
	if q.AttemptCap() != 1 {
		t.Fatalf("expected default attempt cap 1, got %d", q.AttemptCap())
	}
}

func TestResponsePatchLeavesUntouchedFields(t *testing.T) {
	resp := NewResponse("r1", "s1", "u1", "Alice", time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC))
	resp.Answers[1] = map[int]any{10: "keep"}
	resp.Scores[1] = 3
	resp.Total = 3

	total := 5
	patch := ResponsePatch{
		Answers: map[int]map[int]any{2: {20: "new"}},
		Scores:  map[int]int{2: 2},
		Total:   &total,
	}
	patch.Apply(&resp)

	if resp.Answers[1][10] != "keep" || resp.Answers[2][20] != "new" {
		t.Fatalf("unexpected answers after merge: %v", resp.Answers)
	}
	if resp.Scores[1] != 3 || resp.Scores[2] != 2 || resp.Total != 5 {
		t.Fatalf("unexpected scores after merge: %v total=%d", resp.Scores, resp.Total)
	}
	if resp.Status != StatusInProgress {
		t.Fatalf("status must be untouched, got %q", resp.Status)
	}
}
