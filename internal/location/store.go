package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"backend-gocars/internal/safety"
)

// Store keeps each user's latest reported position in redis. Fixes expire on
// their own, so a device that stops reporting reads as absent rather than
// serving a stale position forever. That absence is what the monitor's
// communication-loss detection keys on.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(userID string) string {
	return "location:last:" + userID
}

// Publish stores the fix as the user's current position.
func (s *Store) Publish(ctx context.Context, userID string, fix safety.RoutePoint) error {
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now()
	}
	raw, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("marshal fix: %w", err)
	}
	if err := s.rdb.Set(ctx, key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store fix: %w", err)
	}
	return nil
}

// Sample returns the user's latest fix. A missing or expired key reports
// ok=false without an error.
func (s *Store) Sample(ctx context.Context, userID string) (safety.RoutePoint, bool, error) {
	raw, err := s.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return safety.RoutePoint{}, false, nil
	}
	if err != nil {
		return safety.RoutePoint{}, false, fmt.Errorf("load fix: %w", err)
	}

	var fix safety.RoutePoint
	if err := json.Unmarshal(raw, &fix); err != nil {
		return safety.RoutePoint{}, false, fmt.Errorf("unmarshal fix: %w", err)
	}
	return fix, true, nil
}
