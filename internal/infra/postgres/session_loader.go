package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

// SessionLoader loads session snapshot JSONB from Postgres.
type SessionLoader struct {
	pool *pgxpool.Pool
}

func NewSessionLoader(pool *pgxpool.Pool) *SessionLoader {
	return &SessionLoader{pool: pool}
}

func (l *SessionLoader) LoadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	return session, nil
}
