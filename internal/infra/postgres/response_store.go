package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// ResponseStore persists respondent documents in Postgres. Each patched
// field is merged with jsonb concatenation, so a write never touches fields
// the patch does not carry.
type ResponseStore struct {
	pool *pgxpool.Pool
}

func NewResponseStore(pool *pgxpool.Pool) *ResponseStore {
	return &ResponseStore{pool: pool}
}

func (s *ResponseStore) Create(ctx context.Context, resp domain.Response) error {
	answers, attempts, verdicts, scores, times, err := marshalDoc(resp)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO responses (id, session_id, respondent_id, display_name, email,
			answers, attempts, verdicts, scores, times,
			total, elapsed_ms, status, award_outcome, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO NOTHING`,
		resp.ID, resp.SessionID, resp.RespondentID, resp.DisplayName, resp.Email,
		answers, attempts, verdicts, scores, times,
		resp.Total, resp.ElapsedMs, resp.Status, resp.AwardOutcome, resp.StartedAt, resp.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

func (s *ResponseStore) Get(ctx context.Context, responseID string) (domain.Response, error) {
	row := s.pool.QueryRow(ctx, selectResponse+` WHERE id=$1`, responseID)
	return scanResponse(row)
}

func (s *ResponseStore) Find(ctx context.Context, sessionID, respondentID string) (domain.Response, bool, error) {
	row := s.pool.QueryRow(ctx, selectResponse+` WHERE session_id=$1 AND respondent_id=$2`, sessionID, respondentID)
	resp, err := scanResponse(row)
	if errors.Is(err, domain.ErrResponseNotFound) {
		return domain.Response{}, false, nil
	}
	if err != nil {
		return domain.Response{}, false, err
	}
	return resp, true, nil
}

func (s *ResponseStore) Merge(ctx context.Context, responseID string, patch domain.ResponsePatch) error {
	answers, err := marshalOptional(patch.Answers)
	if err != nil {
		return err
	}
	attempts, err := marshalOptional(patch.Attempts)
	if err != nil {
		return err
	}
	verdicts, err := marshalOptional(patch.Verdicts)
	if err != nil {
		return err
	}
	scores, err := marshalOptional(patch.Scores)
	if err != nil {
		return err
	}
	times, err := marshalOptional(patch.Times)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE responses SET
			answers   = answers  || COALESCE($2::jsonb, '{}'::jsonb),
			attempts  = attempts || COALESCE($3::jsonb, '{}'::jsonb),
			verdicts  = verdicts || COALESCE($4::jsonb, '{}'::jsonb),
			scores    = scores   || COALESCE($5::jsonb, '{}'::jsonb),
			times     = times    || COALESCE($6::jsonb, '{}'::jsonb),
			total         = COALESCE($7, total),
			elapsed_ms    = COALESCE($8, elapsed_ms),
			status        = COALESCE($9, status),
			award_outcome = COALESCE($10, award_outcome),
			completed_at  = COALESCE($11, completed_at)
		WHERE id = $1`,
		responseID, answers, attempts, verdicts, scores, times,
		patch.Total, patch.ElapsedMs, patch.Status, patch.AwardOutcome, patch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("merge response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResponseNotFound
	}
	return nil
}

const selectResponse = `
	SELECT id, session_id, respondent_id, display_name, email,
		answers, attempts, verdicts, scores, times,
		total, elapsed_ms, status, award_outcome, started_at, completed_at
	FROM responses`

func scanResponse(row pgx.Row) (domain.Response, error) {
	var (
		resp                                       domain.Response
		answers, attempts, verdicts, scores, times []byte
		completedAt                                *time.Time
	)
	err := row.Scan(&resp.ID, &resp.SessionID, &resp.RespondentID, &resp.DisplayName, &resp.Email,
		&answers, &attempts, &verdicts, &scores, &times,
		&resp.Total, &resp.ElapsedMs, &resp.Status, &resp.AwardOutcome, &resp.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("scan response: %w", err)
	}
	resp.CompletedAt = completedAt
	if err := json.Unmarshal(answers, &resp.Answers); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(attempts, &resp.Attempts); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal attempts: %w", err)
	}
	if err := json.Unmarshal(verdicts, &resp.Verdicts); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal verdicts: %w", err)
	}
	if err := json.Unmarshal(scores, &resp.Scores); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal scores: %w", err)
	}
	if err := json.Unmarshal(times, &resp.Times); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal times: %w", err)
	}
	return resp, nil
}

func marshalDoc(resp domain.Response) (answers, attempts, verdicts, scores, times []byte, err error) {
	if answers, err = json.Marshal(resp.Answers); err != nil {
		return
	}
	if attempts, err = json.Marshal(resp.Attempts); err != nil {
		return
	}
	if verdicts, err = json.Marshal(resp.Verdicts); err != nil {
		return
	}
	if scores, err = json.Marshal(resp.Scores); err != nil {
		return
	}
	times, err = json.Marshal(resp.Times)
	return
}

// marshalOptional turns a nil map into SQL NULL so the merge leaves the
// stored field untouched.
func marshalOptional(v any) (*string, error) {
	switch m := v.(type) {
	case map[int]map[int]any:
		if m == nil {
			return nil, nil
		}
	case map[int]int:
		if m == nil {
			return nil, nil
		}
	case map[int]map[int]domain.Verdict:
		if m == nil {
			return nil, nil
		}
	case map[int]int64:
		if m == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}
