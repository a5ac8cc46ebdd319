package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when the session snapshot cannot be loaded.
	ErrSessionNotFound = errors.New("session not found")
	// ErrResponseNotFound is returned when the respondent's document is missing.
	ErrResponseNotFound = errors.New("response not found")
	// ErrQuestionNotFound indicates a submitted question ID is not in the snapshot.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAccessDenied is returned when the respondent holds no valid credential
	// for the session; the caller is expected to redirect to the entrance flow.
	ErrAccessDenied = errors.New("access denied: missing or invalid session credential")
	// ErrDeadlinePassed rejects any submission after the session deadline.
	ErrDeadlinePassed = errors.New("session deadline has passed")
	// ErrTimerActive rejects a second concurrent timer start for a different question.
	ErrTimerActive = errors.New("another question timer is already running")
	// ErrAlreadyCompleted rejects operations on a finished quiz run.
	ErrAlreadyCompleted = errors.New("quiz already completed")
)

// RequiredAnswersError reports the scorable components left blank when a
// question was submitted. No attempt is consumed when it is returned.
type RequiredAnswersError struct {
	QuestionID int
	Missing    []int
}

func (e *RequiredAnswersError) Error() string {
	return fmt.Sprintf("question %d: %d required answer(s) missing", e.QuestionID, len(e.Missing))
}
