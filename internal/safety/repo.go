package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backend-gocars/internal/db"
)

// Repo persists session snapshots as JSONB documents. The seq column orders
// concurrent writes: a snapshot older than the stored one is dropped, so a
// delayed write can never clobber a newer state.
type Repo struct {
	db db.Querier
}

func NewRepo(db db.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) UpsertSession(ctx context.Context, s *MonitoringSession, seq uint64) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO safety_sessions (id, user_id, ride_id, status, risk_score, is_active, seq, doc, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			status=EXCLUDED.status,
			risk_score=EXCLUDED.risk_score,
			is_active=EXCLUDED.is_active,
			seq=EXCLUDED.seq,
			doc=EXCLUDED.doc,
			updated_at=EXCLUDED.updated_at
		WHERE safety_sessions.seq < EXCLUDED.seq
	`, s.ID, s.UserID, s.RideID, s.Status, s.RiskScore, s.IsActive, seq, doc, s.StartedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// SessionByID loads a stored snapshot. Used by dashboards and by the HTTP
// layer for sessions that are no longer live.
func (r *Repo) SessionByID(ctx context.Context, sessionID string) (*MonitoringSession, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT doc FROM safety_sessions WHERE id=$1`, sessionID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s MonitoringSession
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &s, nil
}

// SessionsForUser lists a user's stored sessions, newest first.
func (r *Repo) SessionsForUser(ctx context.Context, userID string) ([]*MonitoringSession, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doc FROM safety_sessions WHERE user_id=$1 ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MonitoringSession
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var s MonitoringSession
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
