package share

import (
	"time"

	"backend-gocars/internal/safety"
)

// Link lets a trusted contact follow a ride from a plain browser. The token
// is the whole credential, so every link carries an expiry and can be
// revoked early.
type Link struct {
	Token     string     `json:"token"`
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// TripView is the read side of a link: enough live state for a contact to
// see where the ride is and whether it is still fine, without exposing the
// rider's alert or check-in history.
type TripView struct {
	SessionID string               `json:"session_id"`
	RideID    string               `json:"ride_id"`
	Status    safety.SessionStatus `json:"status"`
	RiskScore float64              `json:"risk_score"`
	IsActive  bool                 `json:"is_active"`
	LastFix   *safety.RoutePoint   `json:"last_fix,omitempty"`
	StartedAt time.Time            `json:"started_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}
