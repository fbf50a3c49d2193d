package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// newAlert builds an active alert from a detector verdict. Location is the
// latest known fix, if any.
func newAlert(s *MonitoringSession, p pendingAlert) Alert {
	a := Alert{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		UserID:    s.UserID,
		Type:      p.Type,
		Severity:  p.Severity,
		Status:    AlertActive,
		Message:   p.Message,
		CreatedAt: time.Now(),
	}
	if n := len(s.ActualRoute); n > 0 {
		loc := s.ActualRoute[n-1]
		a.Location = &loc
	}
	return a
}

// execAlertActions runs the severity-tiered response for one alert and
// appends an action record per attempt. Every alert notifies the user;
// medium and above notify emergency contacts when the user's settings allow;
// critical opens an emergency incident. Channel failures are recorded and
// never block the remaining actions.
func (m *Monitor) execAlertActions(ctx context.Context, rt *sessionRuntime, a Alert) {
	var actions []AlertAction

	err := m.notifier.NotifyUser(ctx, a.UserID, "Safety alert", a.Message, map[string]string{
		"alert_id":   a.ID,
		"session_id": a.SessionID,
		"type":       string(a.Type),
		"severity":   string(a.Severity),
	})
	actions = append(actions, action("notify_user", a.UserID, err))

	if a.Severity != SeverityLow {
		actions = append(actions, m.notifyContacts(ctx, a)...)
	}

	if a.Severity == SeverityCritical && m.incidents != nil {
		incidentID, err := m.incidents.CreateFromAlert(ctx, a)
		act := action("create_incident", incidentID, err)
		actions = append(actions, act)
		if err != nil {
			slog.Error("incident creation from alert failed", "alert_id", a.ID, "error", err)
		}
	}

	rt.mu.Lock()
	if stored := rt.sess.findAlert(a.ID); stored != nil {
		stored.Actions = append(stored.Actions, actions...)
	}
	rt.mu.Unlock()
}

// notifyContacts dispatches the alert to each active emergency contact over
// that contact's enabled channels. Settings and contacts are re-read so
// mid-ride changes take effect.
func (m *Monitor) notifyContacts(ctx context.Context, a Alert) []AlertAction {
	safe, err := m.settings.Safety(ctx, a.UserID)
	if err != nil {
		slog.Warn("safety settings fetch failed", "user_id", a.UserID, "error", err)
	}
	if !safe.NotifyContactsOnAlert {
		return nil
	}
	contacts, err := m.settings.Contacts(ctx, a.UserID)
	if err != nil {
		return []AlertAction{action("notify_contacts", "", err)}
	}

	text := fmt.Sprintf("GoCars safety alert (%s): %s", a.Severity, a.Message)
	var actions []AlertAction
	for _, c := range contacts {
		if c.NotifyBySMS && c.Phone != "" {
			actions = append(actions, action("sms_contact", c.Phone, m.channels.SendSMS(ctx, c.Phone, text)))
		}
		if c.NotifyByCall && c.Phone != "" {
			actions = append(actions, action("call_contact", c.Phone, m.channels.PlaceCall(ctx, c.Phone, text)))
		}
		if c.NotifyByEmail && c.Email != "" {
			actions = append(actions, action("email_contact", c.Email, m.channels.SendEmail(ctx, c.Email, "GoCars safety alert", text)))
		}
	}
	return actions
}

func action(name, target string, err error) AlertAction {
	a := AlertAction{Action: name, Target: target, At: time.Now(), Success: err == nil}
	if err != nil {
		a.Detail = err.Error()
	}
	return a
}

// AcknowledgeAlert moves an active alert to acknowledged.
func (m *Monitor) AcknowledgeAlert(ctx context.Context, sessionID, alertID, by string) error {
	rt, err := m.runtime(sessionID)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	a := rt.sess.findAlert(alertID)
	if a == nil {
		rt.mu.Unlock()
		return ErrAlertNotFound
	}
	if a.Status != AlertActive {
		rt.mu.Unlock()
		return fmt.Errorf("%w: alert is %s", ErrAlertState, a.Status)
	}
	a.Status = AlertAcknowledged
	a.AcknowledgedBy = by
	a.AcknowledgedAt = time.Now()
	refreshRisk(rt.sess)
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	m.publish(snap, seq, event{Type: "alert_acknowledged", AlertID: alertID})
	return nil
}

// ResolveAlert closes an alert as resolved or false_alarm. Terminal states
// reject further transitions.
func (m *Monitor) ResolveAlert(ctx context.Context, sessionID, alertID string, falseAlarm bool) error {
	rt, err := m.runtime(sessionID)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	a := rt.sess.findAlert(alertID)
	if a == nil {
		rt.mu.Unlock()
		return ErrAlertNotFound
	}
	if a.Status == AlertResolved || a.Status == AlertFalseAlarm {
		rt.mu.Unlock()
		return fmt.Errorf("%w: alert is %s", ErrAlertState, a.Status)
	}
	a.Status = AlertResolved
	if falseAlarm {
		a.Status = AlertFalseAlarm
	}
	a.ResolvedAt = time.Now()
	refreshRisk(rt.sess)
	snap, seq := rt.snapshotLocked()
	rt.mu.Unlock()

	m.publish(snap, seq, event{Type: "alert_resolved", AlertID: alertID})
	return nil
}
