package share

import (
	"context"
	"errors"
	"time"

	"backend-gocars/internal/db"
	"backend-gocars/internal/safety"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const linkTTL = 24 * time.Hour

var (
	ErrNotFound = errors.New("share link not found")
	ErrExpired  = errors.New("share link expired")
	ErrEnded    = errors.New("ride is no longer monitored")
)

// SessionSource yields live snapshots of monitored rides.
type SessionSource interface {
	Session(sessionID string) (*safety.MonitoringSession, error)
}

type Service struct {
	db       db.Querier
	sessions SessionSource
}

func NewService(db db.Querier, sessions SessionSource) *Service {
	return &Service{db: db, sessions: sessions}
}

// CreateLink issues a share token for one of the caller's monitored rides.
// Sessions owned by other users read as not found rather than forbidden.
func (s *Service) CreateLink(ctx context.Context, userID, sessionID string) (Link, error) {
	sess, err := s.sessions.Session(sessionID)
	if err != nil {
		return Link{}, err
	}
	if sess.UserID != userID {
		return Link{}, safety.ErrSessionNotFound
	}

	link := Link{
		Token:     uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(linkTTL),
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO share_links (token, session_id, user_id, expires_at)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, link.Token, link.SessionID, link.UserID, link.ExpiresAt)
	if err := row.Scan(&link.CreatedAt); err != nil {
		return Link{}, err
	}
	return link, nil
}

// Resolve turns a token into the live view a contact polls. Revoked links
// read as not found so a revoked token leaks nothing.
func (s *Service) Resolve(ctx context.Context, token string) (TripView, error) {
	link, err := s.lookup(ctx, token)
	if err != nil {
		return TripView{}, err
	}
	if link.RevokedAt != nil {
		return TripView{}, ErrNotFound
	}
	if time.Now().After(link.ExpiresAt) {
		return TripView{}, ErrExpired
	}

	sess, err := s.sessions.Session(link.SessionID)
	if err != nil {
		if errors.Is(err, safety.ErrSessionNotFound) {
			return TripView{}, ErrEnded
		}
		return TripView{}, err
	}

	view := TripView{
		SessionID: sess.ID,
		RideID:    sess.RideID,
		Status:    sess.Status,
		RiskScore: sess.RiskScore,
		IsActive:  sess.IsActive,
		StartedAt: sess.StartedAt,
		UpdatedAt: sess.UpdatedAt,
		ExpiresAt: link.ExpiresAt,
	}
	if n := len(sess.ActualRoute); n > 0 {
		fix := sess.ActualRoute[n-1]
		view.LastFix = &fix
	}
	return view, nil
}

func (s *Service) Links(ctx context.Context, userID string) ([]Link, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, session_id, user_id, created_at, expires_at, revoked_at
		FROM share_links WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.Token, &l.SessionID, &l.UserID, &l.CreatedAt, &l.ExpiresAt, &l.RevokedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func (s *Service) Revoke(ctx context.Context, userID, token string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE share_links SET revoked_at=now()
		WHERE token=$1 AND user_id=$2 AND revoked_at IS NULL
	`, token, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, token string) (Link, error) {
	row := s.db.QueryRow(ctx, `
		SELECT token, session_id, user_id, created_at, expires_at, revoked_at
		FROM share_links WHERE token=$1
	`, token)
	var link Link
	if err := row.Scan(&link.Token, &link.SessionID, &link.UserID, &link.CreatedAt, &link.ExpiresAt, &link.RevokedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, ErrNotFound
		}
		return Link{}, err
	}
	return link, nil
}
