package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// checkInLoop prompts the rider at the configured interval for as long as
// the session runs.
func (m *Monitor) checkInLoop(ctx context.Context, rt *sessionRuntime) {
	interval := time.Duration(rt.safe.CheckInIntervalMin) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.promptCheckIn(ctx, rt)
		}
	}
}

// promptCheckIn records a pending check-in, pushes the prompt to the rider
// and arms its response deadline. The deadline timer dies with the session.
func (m *Monitor) promptCheckIn(ctx context.Context, rt *sessionRuntime) {
	now := time.Now()
	c := CheckIn{
		ID:          uuid.NewString(),
		Type:        CheckInAutomatic,
		Status:      CheckInPending,
		ScheduledAt: now,
		DeadlineAt:  now.Add(m.cfg.CheckInDeadline),
	}

	rt.mu.Lock()
	if !rt.sess.IsActive {
		rt.mu.Unlock()
		return
	}
	c.SessionID = rt.sess.ID
	rt.sess.CheckIns = append(rt.sess.CheckIns, c)
	rt.sess.UpdatedAt = now
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	if err := m.notifier.NotifyUser(ctx, snap.UserID, "Safety check-in", "Are you ok? Please confirm.", map[string]string{
		"session_id":  snap.ID,
		"check_in_id": c.ID,
	}); err != nil {
		slog.Warn("check-in prompt push failed", "session_id", snap.ID, "error", err)
	}
	m.publish(snap, seq, event{Type: "check_in_prompted", CheckInID: c.ID})

	go func() {
		t := time.NewTimer(m.cfg.CheckInDeadline)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			m.checkInDeadline(ctx, rt, c.ID)
		}
	}()
}

// checkInDeadline fires when a prompt's response window closes. A check-in
// that is no longer pending is left untouched, so a late timer is a no-op.
func (m *Monitor) checkInDeadline(ctx context.Context, rt *sessionRuntime, checkInID string) {
	rt.mu.Lock()
	c := rt.sess.findCheckIn(checkInID)
	if c == nil || c.Status != CheckInPending || !rt.sess.IsActive {
		rt.mu.Unlock()
		return
	}
	c.Status = CheckInMissed
	c.FollowUpRequired = true
	rt.sess.UpdatedAt = time.Now()
	rt.mu.Unlock()

	m.raiseAlerts(ctx, rt, pendingAlert{
		Type:     AlertCheckInMissed,
		Severity: SeverityMedium,
		Message:  "scheduled safety check-in was not answered in time",
	})
}

// RespondCheckIn records the rider's answer to a prompt. Answering after the
// deadline marks the check-in overdue instead of completed; a "not ok"
// answer always raises a panic alert.
func (m *Monitor) RespondCheckIn(ctx context.Context, sessionID, checkInID string, ok bool, loc *RoutePoint) (*CheckIn, error) {
	rt, err := m.runtime(sessionID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	c := rt.sess.findCheckIn(checkInID)
	if c == nil {
		rt.mu.Unlock()
		return nil, ErrCheckInNotFound
	}
	switch c.Status {
	case CheckInPending:
		c.Status = CheckInCompleted
	case CheckInMissed:
		c.Status = CheckInOverdue
	default:
		rt.mu.Unlock()
		return nil, fmt.Errorf("%w: check-in is %s", ErrCheckInState, c.Status)
	}
	c.RespondedAt = time.Now()
	c.ResponseOK = ok
	c.ResponseLocation = loc
	if !ok {
		c.FollowUpRequired = true
	}
	out := *c
	refreshRisk(rt.sess)
	rt.sess.UpdatedAt = c.RespondedAt
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	m.publish(snap, seq, event{Type: "check_in_completed", CheckInID: checkInID})
	if !ok {
		m.raiseAlerts(ctx, rt, pendingAlert{
			Type:     AlertPanicButton,
			Severity: SeverityHigh,
			Message:  "rider reported not ok during check-in",
		})
	}
	return &out, nil
}

// ManualCheckIn records an unprompted check-in from the rider.
func (m *Monitor) ManualCheckIn(ctx context.Context, sessionID string, ok bool, loc *RoutePoint) (*CheckIn, error) {
	rt, err := m.runtime(sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := CheckIn{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Type:             CheckInManual,
		Status:           CheckInCompleted,
		ScheduledAt:      now,
		RespondedAt:      now,
		ResponseOK:       ok,
		ResponseLocation: loc,
		FollowUpRequired: !ok,
	}

	rt.mu.Lock()
	if !rt.sess.IsActive {
		rt.mu.Unlock()
		return nil, ErrSessionNotActive
	}
	rt.sess.CheckIns = append(rt.sess.CheckIns, c)
	refreshRisk(rt.sess)
	rt.sess.UpdatedAt = now
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	m.publish(snap, seq, event{Type: "check_in_completed", CheckInID: c.ID})
	if !ok {
		m.raiseAlerts(ctx, rt, pendingAlert{
			Type:     AlertPanicButton,
			Severity: SeverityHigh,
			Message:  "rider reported not ok during check-in",
		})
	}
	return &c, nil
}
