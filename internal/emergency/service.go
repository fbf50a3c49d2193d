package emergency

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

	"backend-gocars/internal/safety"
	"backend-gocars/internal/settings"
)

var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrAlreadyResolved   = errors.New("incident already resolved")
	ErrResponderNotFound = errors.New("responder not found")
	ErrUserRequired      = errors.New("user id required")
)

// SettingsSource yields the response preferences consulted while an incident
// is being handled.
type SettingsSource interface {
	Emergency(ctx context.Context, userID string) (settings.EmergencySettings, error)
	Contacts(ctx context.Context, userID string) ([]settings.Contact, error)
}

// Locator samples the user's latest reported position for continuous
// incident tracking.
type Locator interface {
	Sample(ctx context.Context, userID string) (safety.RoutePoint, bool, error)
}

// ContactChannels reaches emergency contacts out of band.
type ContactChannels interface {
	SendSMS(ctx context.Context, number, text string) error
	PlaceCall(ctx context.Context, number, reason string) error
	SendEmail(ctx context.Context, email, subject, body string) error
}

// Dispatcher relays an incident to an external emergency services desk and
// reports back the assigned responder.
type Dispatcher interface {
	ContactEmergencyServices(ctx context.Context, inc *Incident) (Responder, error)
}

// CaptureStarter begins background evidence collection for an incident.
type CaptureStarter interface {
	StartCapture(ctx context.Context, incidentID, userID, kind string) (string, error)
}

// IncidentStore persists incident documents.
type IncidentStore interface {
	UpsertIncident(ctx context.Context, inc *Incident, seq uint64) error
}

// Broadcaster pushes incident events onto the session's live stream.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

// Config carries the incident handling knobs that are not per-user settings.
type Config struct {
	// TrackInterval is how often the tracking task samples the user's
	// position while the incident is open.
	TrackInterval time.Duration
	// PersistTimeout bounds background store writes.
	PersistTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TrackInterval:  10 * time.Second,
		PersistTimeout: 5 * time.Second,
	}
}

// Deps bundles everything the incident service talks to. Store, Dispatcher,
// Captures and Hub may be nil; the matching steps are skipped.
type Deps struct {
	Settings   SettingsSource
	Locations  Locator
	Channels   ContactChannels
	Dispatcher Dispatcher
	Captures   CaptureStarter
	Store      IncidentStore
	Hub        Broadcaster
	Log        *slog.Logger
}

type incidentRuntime struct {
	mu  sync.Mutex
	inc *Incident
	seq uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// snapshotLocked bumps the sequence counter and deep-copies the incident.
// Callers must hold rt.mu.
func (rt *incidentRuntime) snapshotLocked() (*Incident, uint64) {
	rt.seq++
	return rt.inc.Clone(), rt.seq
}

// Service coordinates the lifecycle of emergency incidents: creation fan-out,
// continuous tracking, responder management, escalation and resolution.
type Service struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu   sync.RWMutex
	open map[string]*incidentRuntime
}

func NewService(cfg Config, deps Deps) *Service {
	if cfg.TrackInterval <= 0 {
		cfg.TrackInterval = DefaultConfig().TrackInterval
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultConfig().PersistTimeout
	}
	logger := deps.Log
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:  cfg,
		deps: deps,
		log:  logger.With("component", "emergency"),
		open: make(map[string]*incidentRuntime),
	}
}

// CreateIncident records a new incident and fans out the response workflow.
// The initial record is persisted before any side effects run; a persistence
// failure aborts creation. Individual response steps that fail afterwards are
// logged on the timeline but never undo the incident.
func (s *Service) CreateIncident(ctx context.Context, req CreateIncidentRequest) (*Incident, error) {
	if req.UserID == "" {
		return nil, ErrUserRequired
	}
	typ := req.Type
	if typ == "" {
		typ = IncidentOther
	}

	now := time.Now()
	inc := &Incident{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		AlertID:     req.AlertID,
		Type:        typ,
		Status:      IncidentActive,
		Priority:    PriorityFor(typ),
		Description: req.Description,
		Location:    req.Location,
		Timeline: []TimelineEntry{{
			At:      now,
			Type:    "created",
			Detail:  string(typ),
			Success: true,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.UpsertIncident(ctx, inc, 1); err != nil {
			return nil, fmt.Errorf("persist incident: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	rt := &incidentRuntime{inc: inc, seq: 1, cancel: cancel, group: group}

	s.mu.Lock()
	s.open[inc.ID] = rt
	s.mu.Unlock()

	s.log.Warn("incident created",
		"incident_id", inc.ID,
		"user_id", inc.UserID,
		"type", inc.Type,
		"priority", inc.Priority)

	prefs := s.emergencySettings(ctx, inc.UserID)
	s.respond(ctx, rt, prefs)

	if s.deps.Locations != nil {
		group.Go(func() error {
			s.trackLoop(groupCtx, rt)
			return nil
		})
	}
	if prefs.AutoEscalate {
		group.Go(func() error {
			s.escalationWatch(groupCtx, rt, time.Duration(prefs.EscalationDelayMin)*time.Minute)
			return nil
		})
	}

	rt.mu.Lock()
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()
	s.publish(snap, seq, "incident_created")
	return snap, nil
}

// CreateFromAlert opens an incident for a critical monitoring alert. It
// satisfies the alert engine's incident trigger.
func (s *Service) CreateFromAlert(ctx context.Context, a safety.Alert) (string, error) {
	inc, err := s.CreateIncident(ctx, CreateIncidentRequest{
		UserID:      a.UserID,
		SessionID:   a.SessionID,
		AlertID:     a.ID,
		Type:        incidentTypeForAlert(a.Type),
		Description: a.Message,
		Location:    a.Location,
	})
	if err != nil {
		return "", err
	}
	return inc.ID, nil
}

func incidentTypeForAlert(t safety.AlertType) IncidentType {
	switch t {
	case safety.AlertPanicButton:
		return IncidentSOS
	case safety.AlertHarshDriving:
		return IncidentAccident
	case safety.AlertSpeedViolation:
		return IncidentVehicleIssue
	case safety.AlertRouteDeviation:
		return IncidentRouteDeviation
	default:
		return IncidentOther
	}
}

// respond runs the creation fan-out: contact notification, emergency services
// dispatch, internal responders and evidence capture. Every step lands on the
// timeline whether it worked or not.
func (s *Service) respond(ctx context.Context, rt *incidentRuntime, prefs settings.EmergencySettings) {
	rt.mu.Lock()
	priority := rt.inc.Priority
	rt.mu.Unlock()

	if prefs.AutoNotifyContacts && !prefs.DiscreteMode {
		s.notifyContacts(ctx, rt)
	} else {
		reason := "auto notify disabled"
		if prefs.DiscreteMode {
			reason = "discrete mode"
		}
		s.appendTimeline(rt, TimelineEntry{
			At:      time.Now(),
			Type:    "contacts_skipped",
			Detail:  reason,
			Success: true,
		})
	}

	if prefs.AutoCallEmergencyServices && priority == PriorityCritical {
		s.dispatchEmergencyServices(ctx, rt)
	}

	s.addInternalResponder(rt, ResponderSupport, "safety support team")
	if priority == PriorityHigh || priority == PriorityCritical {
		s.addInternalResponder(rt, ResponderSecurity, "security desk")
	}

	if s.deps.Captures != nil {
		if prefs.AutoRecordAudio {
			s.startCapture(ctx, rt, "audio")
		}
		if prefs.AutoTakePhotos {
			s.startCapture(ctx, rt, "photo")
		}
	}
}

func (s *Service) notifyContacts(ctx context.Context, rt *incidentRuntime) {
	if s.deps.Settings == nil || s.deps.Channels == nil {
		return
	}
	rt.mu.Lock()
	userID := rt.inc.UserID
	typ := rt.inc.Type
	rt.mu.Unlock()

	contacts, err := s.deps.Settings.Contacts(ctx, userID)
	if err != nil {
		s.log.Error("load contacts", "incident_user", userID, "error", err)
		s.appendTimeline(rt, TimelineEntry{
			At:     time.Now(),
			Type:   "contact_notified",
			Detail: fmt.Sprintf("contact lookup failed: %v", err),
		})
		return
	}

	text := fmt.Sprintf("Emergency reported for a GoCars ride (%s). Open the app for live location.", typ)
	for _, c := range contacts {
		if c.NotifyBySMS {
			err := s.deps.Channels.SendSMS(ctx, c.Phone, text)
			s.recordContactAttempt(rt, "sms", c, err)
		}
		if c.NotifyByEmail && c.Email != "" {
			err := s.deps.Channels.SendEmail(ctx, c.Email, "Emergency alert", text)
			s.recordContactAttempt(rt, "email", c, err)
		}
		if c.NotifyByCall && c.IsPrimary {
			err := s.deps.Channels.PlaceCall(ctx, c.Phone, text)
			s.recordContactAttempt(rt, "call", c, err)
		}
	}
}

func (s *Service) recordContactAttempt(rt *incidentRuntime, channel string, c settings.Contact, err error) {
	entry := TimelineEntry{
		At:      time.Now(),
		Type:    "contact_notified",
		Detail:  fmt.Sprintf("%s via %s", c.Name, channel),
		Success: err == nil,
	}
	if err != nil {
		entry.Detail = fmt.Sprintf("%s via %s: %v", c.Name, channel, err)
		s.log.Error("contact notification failed", "contact", c.Name, "channel", channel, "error", err)
	}
	s.appendTimeline(rt, entry)
}

func (s *Service) dispatchEmergencyServices(ctx context.Context, rt *incidentRuntime) {
	if s.deps.Dispatcher == nil {
		return
	}
	rt.mu.Lock()
	if rt.inc.resolved() || rt.inc.hasResponder(ResponderEmergencyServices) {
		rt.mu.Unlock()
		return
	}
	snap := rt.inc.Clone()
	rt.mu.Unlock()

	responder, err := s.deps.Dispatcher.ContactEmergencyServices(ctx, snap)
	if err != nil {
		s.log.Error("emergency services dispatch failed", "incident_id", snap.ID, "error", err)
		s.appendTimeline(rt, TimelineEntry{
			At:     time.Now(),
			Type:   "responder_added",
			Detail: fmt.Sprintf("emergency services dispatch failed: %v", err),
		})
		return
	}
	if responder.ID == "" {
		responder.ID = uuid.NewString()
	}
	responder.Type = ResponderEmergencyServices
	if responder.Status == "" {
		responder.Status = ResponderNotified
	}
	now := time.Now()
	responder.AssignedAt = now
	responder.UpdatedAt = now

	rt.mu.Lock()
	rt.inc.Responders = append(rt.inc.Responders, responder)
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "responder_added",
		Detail:  fmt.Sprintf("emergency_services eta %dm", responder.ETAMinutes),
		Success: true,
	})
	rt.inc.UpdatedAt = now
	rt.mu.Unlock()
}

func (s *Service) addInternalResponder(rt *incidentRuntime, typ ResponderType, name string) {
	now := time.Now()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.inc.hasResponder(typ) {
		return
	}
	rt.inc.Responders = append(rt.inc.Responders, Responder{
		ID:         uuid.NewString(),
		Type:       typ,
		Name:       name,
		Status:     ResponderNotified,
		AssignedAt: now,
		UpdatedAt:  now,
	})
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "responder_added",
		Detail:  string(typ),
		Success: true,
	})
	rt.inc.UpdatedAt = now
}

func (s *Service) startCapture(ctx context.Context, rt *incidentRuntime, kind string) {
	rt.mu.Lock()
	incidentID := rt.inc.ID
	userID := rt.inc.UserID
	rt.mu.Unlock()

	ref, err := s.deps.Captures.StartCapture(ctx, incidentID, userID, kind)
	entry := TimelineEntry{
		At:      time.Now(),
		Type:    "capture_started",
		Detail:  kind,
		Success: err == nil,
	}
	if err != nil {
		entry.Detail = fmt.Sprintf("%s: %v", kind, err)
		s.log.Error("evidence capture failed", "incident_id", incidentID, "kind", kind, "error", err)
	} else if ref != "" {
		entry.Detail = fmt.Sprintf("%s %s", kind, ref)
	}
	s.appendTimeline(rt, entry)
}

func (s *Service) appendTimeline(rt *incidentRuntime, entry TimelineEntry) {
	rt.mu.Lock()
	rt.inc.Timeline = append(rt.inc.Timeline, entry)
	rt.inc.UpdatedAt = entry.At
	rt.mu.Unlock()
}

// trackLoop samples the user's position while the incident stays open so
// responders always have a current location.
func (s *Service) trackLoop(ctx context.Context, rt *incidentRuntime) {
	ticker := time.NewTicker(s.cfg.TrackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trackOnce(ctx, rt)
		}
	}
}

func (s *Service) trackOnce(ctx context.Context, rt *incidentRuntime) {
	rt.mu.Lock()
	userID := rt.inc.UserID
	rt.mu.Unlock()

	fix, ok, err := s.deps.Locations.Sample(ctx, userID)
	if err != nil {
		s.log.Error("incident tracking sample", "user_id", userID, "error", err)
		return
	}
	if !ok {
		return
	}

	now := time.Now()
	rt.mu.Lock()
	if rt.inc.resolved() {
		rt.mu.Unlock()
		return
	}
	loc := fix
	rt.inc.Location = &loc
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "location_update",
		Detail:  fmt.Sprintf("%.5f,%.5f", fix.Lat, fix.Lng),
		Success: true,
	})
	rt.inc.UpdatedAt = now
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	s.publish(snap, seq, "incident_location")
}

// escalationWatch raises the incident to critical if it is still unresolved
// after the user's configured delay.
func (s *Service) escalationWatch(ctx context.Context, rt *incidentRuntime, delay time.Duration) {
	if delay <= 0 {
		delay = time.Duration(settings.DefaultEmergency("").EscalationDelayMin) * time.Minute
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.autoEscalate(ctx, rt)
}

func (s *Service) autoEscalate(ctx context.Context, rt *incidentRuntime) {
	rt.mu.Lock()
	if rt.inc.Status != IncidentActive {
		rt.mu.Unlock()
		return
	}
	now := time.Now()
	rt.inc.Priority = PriorityCritical
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "escalated",
		Detail:  "no response within escalation delay",
		Success: true,
	})
	rt.inc.UpdatedAt = now
	rt.mu.Unlock()

	s.log.Warn("incident auto-escalated", "incident_id", rt.inc.ID)
	s.dispatchEmergencyServices(ctx, rt)

	rt.mu.Lock()
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()
	s.publish(snap, seq, "incident_escalated")
}

// EscalateIncident manually raises an open incident to critical priority and
// dispatches emergency services if that has not happened yet.
func (s *Service) EscalateIncident(ctx context.Context, incidentID, by, reason string) (*Incident, error) {
	rt, err := s.runtime(incidentID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	if rt.inc.resolved() {
		rt.mu.Unlock()
		return nil, fmt.Errorf("%w: incident is %s", ErrAlreadyResolved, rt.inc.Status)
	}
	now := time.Now()
	rt.inc.Priority = PriorityCritical
	detail := "escalated"
	if by != "" {
		detail = "escalated by " + by
	}
	if reason != "" {
		detail += ": " + reason
	}
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "escalated",
		Detail:  detail,
		Success: true,
	})
	rt.inc.UpdatedAt = now
	rt.mu.Unlock()

	s.dispatchEmergencyServices(ctx, rt)

	rt.mu.Lock()
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()
	s.publish(snap, seq, "incident_escalated")
	return snap, nil
}

// UpdateResponder records a responder status change. The incident moves from
// active to responding once any responder is actually en route or on scene.
func (s *Service) UpdateResponder(ctx context.Context, incidentID, responderID string, status ResponderStatus) (*Incident, error) {
	rt, err := s.runtime(incidentID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	if rt.inc.resolved() {
		rt.mu.Unlock()
		return nil, fmt.Errorf("%w: incident is %s", ErrAlreadyResolved, rt.inc.Status)
	}
	r := rt.inc.findResponder(responderID)
	if r == nil {
		rt.mu.Unlock()
		return nil, ErrResponderNotFound
	}
	now := time.Now()
	r.Status = status
	r.UpdatedAt = now
	if rt.inc.Status == IncidentActive && (status == ResponderResponding || status == ResponderOnScene) {
		rt.inc.Status = IncidentResponding
	}
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "responder_update",
		Detail:  fmt.Sprintf("%s %s", r.Type, status),
		Success: true,
	})
	rt.inc.UpdatedAt = now
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	s.publish(snap, seq, "responder_update")
	return snap, nil
}

// ResolveIncident closes the incident and stops its background tasks. The
// record stays in the registry so later reads and duplicate resolutions see
// the final state; resolving an already-resolved incident fails and leaves
// the record as is.
func (s *Service) ResolveIncident(ctx context.Context, incidentID string, req ResolveIncidentRequest) (*Incident, error) {
	rt, err := s.runtime(incidentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rt.mu.Lock()
	if rt.inc.resolved() {
		status := rt.inc.Status
		rt.mu.Unlock()
		return nil, fmt.Errorf("%w: incident is %s", ErrAlreadyResolved, status)
	}
	status := IncidentResolved
	if req.FalseAlarm {
		status = IncidentFalseAlarm
	}
	rt.inc.Status = status
	rt.inc.Resolution = &Resolution{
		ResolvedBy:       req.ResolvedBy,
		Resolution:       req.Resolution,
		FollowUpRequired: req.FollowUpRequired,
		ResolvedAt:       now,
	}
	rt.inc.Timeline = append(rt.inc.Timeline, TimelineEntry{
		At:      now,
		Type:    "resolved",
		Detail:  fmt.Sprintf("%s by %s", status, req.ResolvedBy),
		Success: true,
	})
	rt.inc.UpdatedAt = now
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	rt.cancel()
	_ = rt.group.Wait()

	if s.deps.Store != nil {
		if err := s.deps.Store.UpsertIncident(ctx, snap, seq); err != nil {
			s.log.Error("persist resolved incident", "incident_id", incidentID, "error", err)
		}
	}
	s.broadcast(snap, "incident_resolved")

	s.log.Info("incident resolved",
		"incident_id", incidentID,
		"status", status,
		"resolved_by", req.ResolvedBy)
	return snap, nil
}

// Incident returns a snapshot of an open incident.
func (s *Service) Incident(ctx context.Context, incidentID string) (*Incident, error) {
	rt, err := s.runtime(incidentID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.inc.Clone(), nil
}

// OpenIncidents lists all incidents currently held by the service.
func (s *Service) OpenIncidents() []*Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Incident, 0, len(s.open))
	for _, rt := range s.open {
		rt.mu.Lock()
		out = append(out, rt.inc.Clone())
		rt.mu.Unlock()
	}
	return out
}

// Shutdown stops background tasks for every open incident without resolving
// them; the records stay in the store for the next process.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	rts := make([]*incidentRuntime, 0, len(s.open))
	for id, rt := range s.open {
		rts = append(rts, rt)
		delete(s.open, id)
	}
	s.mu.Unlock()

	for _, rt := range rts {
		rt.cancel()
		_ = rt.group.Wait()
		rt.mu.Lock()
		snap, seq := rt.snapshotLocked()
		rt.mu.Unlock()
		if s.deps.Store != nil {
			if err := s.deps.Store.UpsertIncident(ctx, snap, seq); err != nil {
				s.log.Error("persist incident on shutdown", "incident_id", snap.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *Service) runtime(incidentID string) (*incidentRuntime, error) {
	s.mu.RLock()
	rt, ok := s.open[incidentID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrIncidentNotFound
	}
	return rt, nil
}

func (s *Service) emergencySettings(ctx context.Context, userID string) settings.EmergencySettings {
	if s.deps.Settings == nil {
		return settings.DefaultEmergency(userID)
	}
	prefs, err := s.deps.Settings.Emergency(ctx, userID)
	if err != nil {
		s.log.Warn("emergency settings unavailable, using defaults", "user_id", userID, "error", err)
		return settings.DefaultEmergency(userID)
	}
	return prefs
}

// publish writes the snapshot to the store in the background and broadcasts
// the event to the session stream.
func (s *Service) publish(snap *Incident, seq uint64, event string) {
	s.broadcast(snap, event)
	if s.deps.Store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		defer cancel()
		if err := s.deps.Store.UpsertIncident(ctx, snap, seq); err != nil {
			s.log.Error("persist incident", "incident_id", snap.ID, "error", err)
		}
	}()
}

func (s *Service) broadcast(snap *Incident, event string) {
	if s.deps.Hub == nil || snap.SessionID == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":        event,
		"incident_id": snap.ID,
		"session_id":  snap.SessionID,
		"status":      snap.Status,
		"priority":    snap.Priority,
		"at":          snap.UpdatedAt,
	})
	if err != nil {
		return
	}
	s.deps.Hub.Broadcast(snap.SessionID, payload)
}
