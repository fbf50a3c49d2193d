package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backend-gocars/internal/db"
)

// Repo persists incidents as JSONB documents, one row per incident. The seq
// column keeps background writes ordered the same way safety sessions are.
type Repo struct {
	db db.Querier
}

func NewRepo(db db.Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) UpsertIncident(ctx context.Context, inc *Incident, seq uint64) error {
	doc, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO emergency_incidents (id, user_id, session_id, type, status, priority, seq, doc, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			status=EXCLUDED.status,
			priority=EXCLUDED.priority,
			seq=EXCLUDED.seq,
			doc=EXCLUDED.doc,
			updated_at=EXCLUDED.updated_at
		WHERE emergency_incidents.seq < EXCLUDED.seq
	`, inc.ID, inc.UserID, inc.SessionID, inc.Type, inc.Status, inc.Priority, seq, doc, inc.CreatedAt, inc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert incident: %w", err)
	}
	return nil
}

// IncidentByID loads a stored incident, including resolved ones from earlier
// processes.
func (r *Repo) IncidentByID(ctx context.Context, incidentID string) (*Incident, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT doc FROM emergency_incidents WHERE id=$1`, incidentID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, err
	}

	var inc Incident
	if err := json.Unmarshal(doc, &inc); err != nil {
		return nil, fmt.Errorf("unmarshal incident %s: %w", incidentID, err)
	}
	return &inc, nil
}

// IncidentsForUser lists a user's incidents, newest first.
func (r *Repo) IncidentsForUser(ctx context.Context, userID string) ([]*Incident, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doc FROM emergency_incidents WHERE user_id=$1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Incident
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var inc Incident
		if err := json.Unmarshal(doc, &inc); err != nil {
			return nil, err
		}
		out = append(out, &inc)
	}
	return out, rows.Err()
}
