package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"backend-gocars/internal/settings"
	"backend-gocars/internal/shared/geo"
)

var (
	ErrSessionNotFound  = errors.New("monitoring session not found")
	ErrSessionNotActive = errors.New("monitoring session is not active")
	ErrAlertNotFound    = errors.New("alert not found")
	ErrAlertState       = errors.New("invalid alert state")
	ErrCheckInNotFound  = errors.New("check-in not found")
	ErrCheckInState     = errors.New("invalid check-in state")
)

// Locator produces the latest known fix for a user. ok=false means no sample
// this cycle, which is never an error.
type Locator interface {
	Sample(ctx context.Context, userID string) (RoutePoint, bool, error)
}

// SettingsSource is the read side of the user's safety configuration.
type SettingsSource interface {
	Safety(ctx context.Context, userID string) (settings.SafetySettings, error)
	Contacts(ctx context.Context, userID string) ([]settings.Contact, error)
}

// SessionStore persists session snapshots. Writes are best-effort ordered by
// seq; the store must ignore a write older than what it already holds.
type SessionStore interface {
	UpsertSession(ctx context.Context, s *MonitoringSession, seq uint64) error
}

// UserNotifier pushes a message to the rider's own device.
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error
}

// ContactChannels are the outbound channels toward emergency contacts. Each
// call fails independently.
type ContactChannels interface {
	SendSMS(ctx context.Context, number, text string) error
	PlaceCall(ctx context.Context, number, reason string) error
	SendEmail(ctx context.Context, email, subject, body string) error
}

// IncidentTrigger opens an emergency incident from a critical alert.
type IncidentTrigger interface {
	CreateFromAlert(ctx context.Context, a Alert) (string, error)
}

// Broadcaster fans a session event out to live subscribers.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

// Deps carries the monitor's collaborators. Store, Incidents and Hub may be
// nil, which disables persistence, incident escalation and streaming.
type Deps struct {
	Locator   Locator
	Settings  SettingsSource
	Store     SessionStore
	Notifier  UserNotifier
	Channels  ContactChannels
	Incidents IncidentTrigger
	Hub       Broadcaster
}

// Monitor owns every active monitoring session. Sessions are independent;
// all cross-session access goes through the registry lock, all per-session
// state through that session's lock.
type Monitor struct {
	cfg       Config
	locator   Locator
	settings  SettingsSource
	store     SessionStore
	notifier  UserNotifier
	channels  ContactChannels
	incidents IncidentTrigger
	hub       Broadcaster

	mu       sync.RWMutex
	sessions map[string]*sessionRuntime
}

// sessionRuntime pairs a session with its lock, derived detector state and
// task group. bhv is guarded by mu; emptyCycles and commOpen are touched
// only by the poll goroutine.
type sessionRuntime struct {
	mu   sync.Mutex
	sess *MonitoringSession
	safe settings.SafetySettings
	seq  uint64

	bhv         behaviorState
	emptyCycles int
	commOpen    bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

func (rt *sessionRuntime) snapshotLocked() (*MonitoringSession, uint64) {
	rt.seq++
	return rt.sess.Clone(), rt.seq
}

func NewMonitor(cfg Config, deps Deps) *Monitor {
	return &Monitor{
		cfg:       cfg,
		locator:   deps.Locator,
		settings:  deps.Settings,
		store:     deps.Store,
		notifier:  deps.Notifier,
		channels:  deps.Channels,
		incidents: deps.Incidents,
		hub:       deps.Hub,
		sessions:  map[string]*sessionRuntime{},
	}
}

// StartMonitoring opens a session for a ride and launches its polling and
// check-in loops. The settings snapshot taken here fixes the detector
// thresholds for the session's lifetime.
func (m *Monitor) StartMonitoring(ctx context.Context, userID, rideID string, planned []geo.Point) (*MonitoringSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	safe, err := m.settings.Safety(ctx, userID)
	if err != nil {
		slog.Warn("safety settings fetch failed, using defaults", "user_id", userID, "error", err)
	}

	now := time.Now()
	sess := &MonitoringSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		RideID:       rideID,
		PlannedRoute: planned,
		Status:       StatusMonitoring,
		IsActive:     true,
		StartedAt:    now,
		UpdatedAt:    now,
		Behavior:     BehaviorMetrics{OverallScore: 100, RiskLevel: RiskLow},
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	rt := &sessionRuntime{sess: sess, safe: safe, cancel: cancel, group: g}

	m.mu.Lock()
	m.sessions[sess.ID] = rt
	m.mu.Unlock()

	g.Go(func() error {
		m.pollLoop(gctx, rt)
		return nil
	})
	if safe.AutoCheckIns {
		g.Go(func() error {
			m.checkInLoop(gctx, rt)
			return nil
		})
	}

	rt.mu.Lock()
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()
	m.publish(snap, seq, event{Type: "session_started"})

	slog.Info("monitoring started", "session_id", sess.ID, "user_id", userID, "ride_id", rideID)
	return snap, nil
}

// StopMonitoring cancels the session's tasks, waits for them, and marks the
// session completed. Stopping an unknown or already-stopped session fails.
func (m *Monitor) StopMonitoring(ctx context.Context, sessionID string) (*MonitoringSession, error) {
	m.mu.Lock()
	rt, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	rt.cancel()
	if err := rt.group.Wait(); err != nil {
		slog.Warn("session task group exited with error", "session_id", sessionID, "error", err)
	}

	now := time.Now()
	rt.mu.Lock()
	rt.sess.IsActive = false
	rt.sess.Status = StatusCompleted
	rt.sess.EndedAt = now
	rt.sess.UpdatedAt = now
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	if m.store != nil {
		if err := m.store.UpsertSession(ctx, snap, seq); err != nil {
			slog.Warn("final session write failed", "session_id", sessionID, "error", err)
		}
	}
	m.broadcast(snap, event{Type: "session_completed"})

	slog.Info("monitoring stopped", "session_id", sessionID, "risk_score", snap.RiskScore)
	return snap, nil
}

// Session returns a point-in-time copy of an active session.
func (m *Monitor) Session(sessionID string) (*MonitoringSession, error) {
	rt, err := m.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.sess.Clone(), nil
}

// ActiveSessions returns copies of every session currently monitored.
func (m *Monitor) ActiveSessions() []*MonitoringSession {
	m.mu.RLock()
	rts := make([]*sessionRuntime, 0, len(m.sessions))
	for _, rt := range m.sessions {
		rts = append(rts, rt)
	}
	m.mu.RUnlock()

	out := make([]*MonitoringSession, 0, len(rts))
	for _, rt := range rts {
		rt.mu.Lock()
		out = append(out, rt.sess.Clone())
		rt.mu.Unlock()
	}
	return out
}

// ProcessFix ingests one externally pushed fix through the same atomic step
// the polling loop uses.
func (m *Monitor) ProcessFix(ctx context.Context, sessionID string, fix RoutePoint) (*MonitoringSession, error) {
	rt, err := m.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return m.applyFix(ctx, rt, fix)
}

// Shutdown stops every active session. Used on server teardown.
func (m *Monitor) Shutdown(ctx context.Context) {
	for _, s := range m.ActiveSessions() {
		if _, err := m.StopMonitoring(ctx, s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("session stop during shutdown failed", "session_id", s.ID, "error", err)
		}
	}
}

func (m *Monitor) runtime(sessionID string) (*sessionRuntime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rt, nil
}

// pollLoop samples the user's location once per interval. A missing sample
// skips the cycle; enough consecutive misses raise a communication_loss
// alert once per outage.
func (m *Monitor) pollLoop(ctx context.Context, rt *sessionRuntime) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx, rt)
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context, rt *sessionRuntime) {
	sctx, cancel := context.WithTimeout(ctx, m.cfg.SampleTimeout)
	fix, ok, err := m.locator.Sample(sctx, rt.sess.UserID)
	cancel()

	if err != nil || !ok {
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Debug("location sample failed", "session_id", rt.sess.ID, "error", err)
		}
		rt.emptyCycles++
		if rt.emptyCycles >= m.cfg.MissedSampleLimit && !rt.commOpen {
			rt.commOpen = true
			m.raiseAlerts(ctx, rt, pendingAlert{
				Type:     AlertCommunicationLoss,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("no location fix for %d consecutive cycles", rt.emptyCycles),
			})
		}
		return
	}

	rt.emptyCycles = 0
	rt.commOpen = false
	if _, err := m.applyFix(ctx, rt, fix); err != nil && !errors.Is(err, ErrSessionNotActive) {
		slog.Warn("fix processing failed", "session_id", rt.sess.ID, "error", err)
	}
}

// applyFix runs the full detector pipeline for one fix as a single atomic
// step: append, deviation check, behavior update, risk recompute. Alert
// actions run after the lock is released.
func (m *Monitor) applyFix(ctx context.Context, rt *sessionRuntime, fix RoutePoint) (*MonitoringSession, error) {
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now()
	}

	rt.mu.Lock()
	if !rt.sess.IsActive {
		rt.mu.Unlock()
		return nil, ErrSessionNotActive
	}

	rt.sess.ActualRoute = append(rt.sess.ActualRoute, fix)

	var pending []pendingAlert
	distM, major := applyDeviation(rt.sess, fix, rt.safe.DeviationThresholdM)
	if major {
		pending = append(pending, pendingAlert{
			Type:     AlertRouteDeviation,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%.0f m off the planned route", distM),
		})
	}
	pending = append(pending, applyBehavior(rt.sess, &rt.bhv, m.cfg, rt.safe)...)

	created := make([]Alert, 0, len(pending))
	for _, p := range pending {
		a := newAlert(rt.sess, p)
		rt.sess.Alerts = append(rt.sess.Alerts, a)
		created = append(created, a)
	}

	refreshRisk(rt.sess)
	rt.sess.UpdatedAt = time.Now()
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	for _, a := range created {
		m.execAlertActions(ctx, rt, a)
		m.broadcast(snap, event{Type: "alert_created", AlertID: a.ID, AlertType: a.Type, Severity: a.Severity})
	}
	m.publish(snap, seq, event{Type: "location_update", Fix: &fix})
	return snap, nil
}

// raiseAlerts creates alerts outside the fix pipeline (check-ins, outages)
// and runs their response actions.
func (m *Monitor) raiseAlerts(ctx context.Context, rt *sessionRuntime, pending ...pendingAlert) {
	rt.mu.Lock()
	if !rt.sess.IsActive {
		rt.mu.Unlock()
		return
	}
	created := make([]Alert, 0, len(pending))
	for _, p := range pending {
		a := newAlert(rt.sess, p)
		rt.sess.Alerts = append(rt.sess.Alerts, a)
		created = append(created, a)
	}
	refreshRisk(rt.sess)
	rt.sess.UpdatedAt = time.Now()
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	for _, a := range created {
		m.execAlertActions(ctx, rt, a)
		m.broadcast(snap, event{Type: "alert_created", AlertID: a.ID, AlertType: a.Type, Severity: a.Severity})
	}
	m.publish(snap, seq, event{Type: "risk_update"})
}

// event is the envelope broadcast to stream subscribers.
type event struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	At        time.Time     `json:"at"`
	RiskScore float64       `json:"risk_score"`
	Status    SessionStatus `json:"status"`
	AlertID   string        `json:"alert_id,omitempty"`
	AlertType AlertType     `json:"alert_type,omitempty"`
	Severity  AlertSeverity `json:"severity,omitempty"`
	CheckInID string        `json:"check_in_id,omitempty"`
	Fix       *RoutePoint   `json:"fix,omitempty"`
}

// publish broadcasts the event and persists the snapshot without blocking
// the caller's cycle. The write uses its own deadline so request
// cancellation cannot drop it.
func (m *Monitor) publish(snap *MonitoringSession, seq uint64, ev event) {
	m.broadcast(snap, ev)
	if m.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.UpsertSession(ctx, snap, seq); err != nil {
			slog.Warn("session write failed", "session_id", snap.ID, "seq", seq, "error", err)
		}
	}()
}

func (m *Monitor) broadcast(snap *MonitoringSession, ev event) {
	if m.hub == nil {
		return
	}
	ev.SessionID = snap.ID
	ev.At = time.Now()
	ev.RiskScore = snap.RiskScore
	ev.Status = snap.Status
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	m.hub.Broadcast(snap.ID, payload)
}
