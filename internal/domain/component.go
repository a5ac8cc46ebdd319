package domain

import (
	"math"
	"strings"
)

// ComponentKind is the closed set of answerable element types.
type ComponentKind string

const (
	KindMultipleChoice ComponentKind = "multiple_choice"
	KindTrueFalse      ComponentKind = "true_false"
	KindShortText      ComponentKind = "short_text"
	KindSlider         ComponentKind = "slider"
	KindMatching       ComponentKind = "matching"

	// Display-only kinds; never scorable.
	KindText  ComponentKind = "text"
	KindImage ComponentKind = "image"
)

// Verdict is the per-component outcome of the last grading pass.
type Verdict string

const (
	VerdictNotSubmitted Verdict = "not-submitted"
	VerdictCorrect      Verdict = "correct"
	VerdictIncorrect    Verdict = "incorrect"
	// VerdictUnanswered covers values a component cannot grade: a malformed
	// submission, or a scorable kind whose answer key was never defined. It
	// counts against "all correct" but is shown distinctly from incorrect.
	VerdictUnanswered Verdict = "unanswered"
)

// Component is a single answerable unit inside a question. The answer-key
// fields are populated according to Kind; the zero values mean "no key".
type Component struct {
	ID      int           `json:"id"`
	Kind    ComponentKind `json:"kind"`
	Prompt  string        `json:"prompt,omitempty"`
	Options []string      `json:"options,omitempty"`

	CorrectOption *int              `json:"correctOption,omitempty"`
	CorrectBool   *bool             `json:"correctBool,omitempty"`
	CorrectText   string            `json:"correctText,omitempty"`
	CaseSensitive bool              `json:"caseSensitive,omitempty"`
	Target        *float64          `json:"target,omitempty"`
	Tolerance     float64           `json:"tolerance,omitempty"`
	Pairs         map[string]string `json:"pairs,omitempty"`
}

// grader is the per-kind correctness predicate. Each scorable kind supplies
// its own implementation; display-only kinds have none.
type grader interface {
	answered(value any) bool
	grade(value any) Verdict
}

func (c Component) grader() grader {
	switch c.Kind {
	case KindMultipleChoice:
		return choiceGrader{c}
	case KindTrueFalse:
		return boolGrader{c}
	case KindShortText:
		return textGrader{c}
	case KindSlider:
		return sliderGrader{c}
	case KindMatching:
		return matchGrader{c}
	default:
		return nil
	}
}

// Scorable reports whether the component participates in grading at all.
func (c Component) Scorable() bool {
	return c.grader() != nil
}

// Answered reports whether value is a usable answer for this component.
// Display-only components are vacuously answered.
func (c Component) Answered(value any) bool {
	g := c.grader()
	if g == nil {
		return true
	}
	return g.answered(value)
}

// Grade evaluates value against the component's answer key.
func (c Component) Grade(value any) Verdict {
	g := c.grader()
	if g == nil {
		return VerdictUnanswered
	}
	return g.grade(value)
}

type choiceGrader struct{ c Component }

func (g choiceGrader) answered(value any) bool {
	_, ok := asIndex(value)
	return ok
}

func (g choiceGrader) grade(value any) Verdict {
	idx, ok := asIndex(value)
	if !ok || g.c.CorrectOption == nil {
		return VerdictUnanswered
	}
	if idx == *g.c.CorrectOption {
		return VerdictCorrect
	}
	return VerdictIncorrect
}

type boolGrader struct{ c Component }

func (g boolGrader) answered(value any) bool {
	_, ok := value.(bool)
	return ok
}

func (g boolGrader) grade(value any) Verdict {
	b, ok := value.(bool)
	if !ok || g.c.CorrectBool == nil {
		return VerdictUnanswered
	}
	if b == *g.c.CorrectBool {
		return VerdictCorrect
	}
	return VerdictIncorrect
}

type textGrader struct{ c Component }

func (g textGrader) answered(value any) bool {
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) != ""
}

func (g textGrader) grade(value any) Verdict {
	s, ok := value.(string)
	if !ok || g.c.CorrectText == "" {
		return VerdictUnanswered
	}
	got := strings.TrimSpace(s)
	want := strings.TrimSpace(g.c.CorrectText)
	if g.c.CaseSensitive {
		if got == want {
			return VerdictCorrect
		}
		return VerdictIncorrect
	}
	if strings.EqualFold(got, want) {
		return VerdictCorrect
	}
	return VerdictIncorrect
}

type sliderGrader struct{ c Component }

func (g sliderGrader) answered(value any) bool {
	_, ok := asFloat(value)
	return ok
}

func (g sliderGrader) grade(value any) Verdict {
	v, ok := asFloat(value)
	if !ok || g.c.Target == nil {
		return VerdictUnanswered
	}
	if math.Abs(v-*g.c.Target) <= g.c.Tolerance {
		return VerdictCorrect
	}
	return VerdictIncorrect
}

type matchGrader struct{ c Component }

func (g matchGrader) answered(value any) bool {
	m, ok := asPairs(value)
	return ok && len(m) > 0
}

func (g matchGrader) grade(value any) Verdict {
	got, ok := asPairs(value)
	if !ok || len(g.c.Pairs) == 0 {
		return VerdictUnanswered
	}
	if len(got) != len(g.c.Pairs) {
		return VerdictIncorrect
	}
	for left, right := range g.c.Pairs {
		if got[left] != right {
			return VerdictIncorrect
		}
	}
	return VerdictCorrect
}

// asIndex accepts the numeric shapes JSON decoding produces for option indexes.
func asIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func asPairs(value any) (map[string]string, bool) {
	switch v := value.(type) {
	case map[string]string:
		return v, true
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
