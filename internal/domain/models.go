package domain

import "time"

// Session is the published, frozen snapshot of a form: the question list and
// settings are fixed at session-creation time and read-only to respondents.
type Session struct {
	ID        string     `json:"id"`
	FormID    string     `json:"formId"`
	Questions []Question `json:"questions"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Settings  Settings   `json:"settings"`
}

// Settings is the session's behavior bag.
type Settings struct {
	LeaderboardEnabled bool         `json:"leaderboardEnabled"`
	Sequential         bool         `json:"sequential"`
	ShowHints          bool         `json:"showHints"`
	ShowAnswers        bool         `json:"showAnswers"`
	Award              *AwardConfig `json:"award,omitempty"`
}

// AwardConfig describes the prize notification sent to high scorers.
// Slots is the number of awards available across all respondents.
type AwardConfig struct {
	MinScore      int    `json:"minScore"`
	Slots         int    `json:"slots"`
	CustomMessage string `json:"customMessage"`
	PrizeImageURL string `json:"prizeImageUrl"`
}

// Question groups answerable components under a point value and an attempt cap.
type Question struct {
	ID          int         `json:"id"`
	Components  []Component `json:"components"`
	Points      int         `json:"points"`      // defaults to 1 if zero
	MaxAttempts int         `json:"maxAttempts"` // defaults to 1 if zero
}

// PointValue returns the points awarded for answering the question correctly.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// AttemptCap returns the maximum number of graded submissions allowed.
func (q Question) AttemptCap() int {
	if q.MaxAttempts <= 0 {
		return 1
	}
	return q.MaxAttempts
}

// Response is the per-respondent working document. The in-memory copy is
// authoritative while the quiz is in progress; the stored copy is a
// best-effort mirror updated with field-level merges.
type Response struct {
	ID           string                  `json:"id"`
	SessionID    string                  `json:"sessionId"`
	RespondentID string                  `json:"respondentId"`
	DisplayName  string                  `json:"displayName"`
	Email        string                  `json:"email,omitempty"`
	Answers      map[int]map[int]any     `json:"answers"`  // question -> component -> value
	Attempts     map[int]int             `json:"attempts"` // question -> graded submissions
	Verdicts     map[int]map[int]Verdict `json:"verdicts"`
	Scores       map[int]int             `json:"scores"` // question -> points, set at most once
	Total        int                     `json:"total"`
	Times        map[int]int64           `json:"times"` // question -> accumulated active ms
	ElapsedMs    int64                   `json:"elapsedMs"`
	Status       string                  `json:"status"` // StatusInProgress or StatusCompleted
	AwardOutcome string                  `json:"awardOutcome,omitempty"`
	StartedAt    time.Time               `json:"startedAt"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
}

const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"

	AwardSent   = "sent"
	AwardFailed = "failed"
)

// NewResponse builds an empty working document for a respondent.
func NewResponse(id, sessionID, respondentID, displayName string, startedAt time.Time) Response {
	return Response{
		ID:           id,
		SessionID:    sessionID,
		RespondentID: respondentID,
		DisplayName:  displayName,
		Answers:      make(map[int]map[int]any),
		Attempts:     make(map[int]int),
		Verdicts:     make(map[int]map[int]Verdict),
		Scores:       make(map[int]int),
		Times:        make(map[int]int64),
		Status:       StatusInProgress,
		StartedAt:    startedAt,
	}
}

// ResponsePatch is a field-level merge against a stored Response. Nil maps and
// nil pointers leave the stored field untouched; map entries replace the entry
// under the same key without disturbing sibling keys.
type ResponsePatch struct {
	Answers      map[int]map[int]any     `json:"answers,omitempty"`
	Attempts     map[int]int             `json:"attempts,omitempty"`
	Verdicts     map[int]map[int]Verdict `json:"verdicts,omitempty"`
	Scores       map[int]int             `json:"scores,omitempty"`
	Total        *int                    `json:"total,omitempty"`
	Times        map[int]int64           `json:"times,omitempty"`
	ElapsedMs    *int64                  `json:"elapsedMs,omitempty"`
	Status       *string                 `json:"status,omitempty"`
	AwardOutcome *string                 `json:"awardOutcome,omitempty"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
}

// Apply merges the patch into resp in place.
func (p ResponsePatch) Apply(resp *Response) {
	for q, comps := range p.Answers {
		if resp.Answers == nil {
			resp.Answers = make(map[int]map[int]any)
		}
		resp.Answers[q] = comps
	}
	for q, n := range p.Attempts {
		if resp.Attempts == nil {
			resp.Attempts = make(map[int]int)
		}
		resp.Attempts[q] = n
	}
	for q, verdicts := range p.Verdicts {
		if resp.Verdicts == nil {
			resp.Verdicts = make(map[int]map[int]Verdict)
		}
		resp.Verdicts[q] = verdicts
	}
	for q, points := range p.Scores {
		if resp.Scores == nil {
			resp.Scores = make(map[int]int)
		}
		resp.Scores[q] = points
	}
	for q, ms := range p.Times {
		if resp.Times == nil {
			resp.Times = make(map[int]int64)
		}
		resp.Times[q] = ms
	}
	if p.Total != nil {
		resp.Total = *p.Total
	}
	if p.ElapsedMs != nil {
		resp.ElapsedMs = *p.ElapsedMs
	}
	if p.Status != nil {
		resp.Status = *p.Status
	}
	if p.AwardOutcome != nil {
		resp.AwardOutcome = *p.AwardOutcome
	}
	if p.CompletedAt != nil {
		resp.CompletedAt = p.CompletedAt
	}
}

// LeaderboardEntry is a snapshot-friendly view of a respondent's standing.
type LeaderboardEntry struct {
	RespondentID string `json:"respondentId"`
	DisplayName  string `json:"displayName"`
	Score        int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
