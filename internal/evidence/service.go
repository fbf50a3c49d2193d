package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backend-gocars/internal/db"
)

var ErrCaptureNotFound = errors.New("capture not found")

// Capture is one piece of evidence tied to an emergency incident: a device
// recording, a photo, or a free-form note from support staff.
type Capture struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url,omitempty"`
	Note       string    `json:"note,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

type Service struct {
	db      db.Querier
	baseURL string
}

// NewService wires the evidence store. baseURL is the object store prefix
// device uploads land under; empty selects the default bucket.
func NewService(db db.Querier, baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://evidence.gocars.example"
	}
	return &Service{db: db, baseURL: baseURL}
}

// StartCapture opens a capture slot for the incident and hands back its id.
// The device uploads to the returned record's URL out of band.
func (s *Service) StartCapture(ctx context.Context, incidentID, userID, kind string) (string, error) {
	c := Capture{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		UserID:     userID,
		Kind:       kind,
		CapturedAt: time.Now(),
	}
	c.URL = fmt.Sprintf("%s/%s/%s", s.baseURL, incidentID, c.ID)

	_, err := s.db.Exec(ctx, `
		INSERT INTO evidence_captures (id, incident_id, user_id, kind, url, note, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.IncidentID, c.UserID, c.Kind, c.URL, c.Note, c.CapturedAt)
	if err != nil {
		return "", fmt.Errorf("insert capture: %w", err)
	}
	return c.ID, nil
}

// Attach records evidence that already lives somewhere, for example a photo
// uploaded through the app or a note typed by a support agent.
func (s *Service) Attach(ctx context.Context, incidentID, userID, kind, url, note string) (*Capture, error) {
	c := &Capture{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		UserID:     userID,
		Kind:       kind,
		URL:        url,
		Note:       note,
		CapturedAt: time.Now(),
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO evidence_captures (id, incident_id, user_id, kind, url, note, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.IncidentID, c.UserID, c.Kind, c.URL, c.Note, c.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("insert capture: %w", err)
	}
	return c, nil
}

// ForIncident lists an incident's evidence oldest first, the order it was
// collected.
func (s *Service) ForIncident(ctx context.Context, incidentID string) ([]Capture, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, incident_id, user_id, kind, url, note, captured_at
		FROM evidence_captures WHERE incident_id=$1 ORDER BY captured_at ASC
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var c Capture
		if err := rows.Scan(&c.ID, &c.IncidentID, &c.UserID, &c.Kind, &c.URL, &c.Note, &c.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
