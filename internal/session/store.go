// Package session carries prediction results across the redirect that
// follows a submission, and signs the cookie and CSRF token that bind a
// browser to its session.
package session

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moviescript/moviescript-web/internal/predictor"
)

// Pending is a result waiting to be shown once.
type Pending struct {
	Title       string
	Predictions predictor.Result
}

// Store keeps at most one pending result per session.
type Store interface {
	Put(ctx context.Context, sessionID string, p Pending) error
	// Take returns and removes the pending result, or nil if there is none.
	Take(ctx context.Context, sessionID string) (*Pending, error)
}

// SQLiteStore persists pending results in the pending_results table.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB, ttl time.Duration) *SQLiteStore {
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}
}

func (s *SQLiteStore) Put(ctx context.Context, sessionID string, p Pending) error {
	preds, err := json.Marshal(p.Predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_results WHERE expires_at <= ?`, now.Unix()); err != nil {
		return fmt.Errorf("purge expired results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_results (session_id, title, predictions, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, p.Title, string(preds), now.Unix(), now.Add(s.ttl).Unix())
	if err != nil {
		return fmt.Errorf("store pending result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Take(ctx context.Context, sessionID string) (*Pending, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var title, preds string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `
		SELECT title, predictions, expires_at FROM pending_results WHERE session_id = ?
	`, sessionID).Scan(&title, &preds, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending result: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_results WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("clear pending result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if expiresAt <= s.now().Unix() {
		return nil, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(preds)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode stored predictions: %w", err)
	}
	return &Pending{Title: title, Predictions: predictor.Normalize(raw)}, nil
}
