package emergency

import (
	"time"

	"backend-gocars/internal/safety"
)

type IncidentType string

const (
	IncidentSOS            IncidentType = "sos"
	IncidentMedical        IncidentType = "medical"
	IncidentAccident       IncidentType = "accident"
	IncidentPanic          IncidentType = "panic"
	IncidentHarassment     IncidentType = "harassment"
	IncidentVehicleIssue   IncidentType = "vehicle_issue"
	IncidentRouteDeviation IncidentType = "route_deviation"
	IncidentOther          IncidentType = "other"
)

type IncidentStatus string

const (
	IncidentActive     IncidentStatus = "active"
	IncidentResponding IncidentStatus = "responding"
	IncidentResolved   IncidentStatus = "resolved"
	IncidentFalseAlarm IncidentStatus = "false_alarm"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// PriorityFor maps an incident type to its fixed priority. Total: unknown
// types rank low rather than failing.
func PriorityFor(t IncidentType) Priority {
	switch t {
	case IncidentMedical, IncidentAccident, IncidentSOS:
		return PriorityCritical
	case IncidentPanic, IncidentHarassment:
		return PriorityHigh
	case IncidentVehicleIssue:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type ResponderType string

const (
	ResponderEmergencyServices ResponderType = "emergency_services"
	ResponderSupport           ResponderType = "support"
	ResponderSecurity          ResponderType = "security"
)

type ResponderStatus string

const (
	ResponderNotified   ResponderStatus = "notified"
	ResponderResponding ResponderStatus = "responding"
	ResponderOnScene    ResponderStatus = "on_scene"
	ResponderCompleted  ResponderStatus = "completed"
)

type Responder struct {
	ID         string          `json:"id"`
	Type       ResponderType   `json:"type"`
	Name       string          `json:"name"`
	Status     ResponderStatus `json:"status"`
	ETAMinutes int             `json:"eta_minutes,omitempty"`
	AssignedAt time.Time       `json:"assigned_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TimelineEntry is one event in the incident's append-only history.
type TimelineEntry struct {
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Detail  string    `json:"detail,omitempty"`
	Success bool      `json:"success"`
}

type Resolution struct {
	ResolvedBy       string    `json:"resolved_by"`
	Resolution       string    `json:"resolution"`
	FollowUpRequired bool      `json:"follow_up_required"`
	ResolvedAt       time.Time `json:"resolved_at"`
}

// Incident is the durable record of a triggered emergency. It outlives the
// monitoring session that may have caused it and is never deleted, only
// resolved.
type Incident struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	SessionID   string             `json:"session_id,omitempty"`
	AlertID     string             `json:"alert_id,omitempty"`
	Type        IncidentType       `json:"type"`
	Status      IncidentStatus     `json:"status"`
	Priority    Priority           `json:"priority"`
	Description string             `json:"description,omitempty"`
	Location    *safety.RoutePoint `json:"location,omitempty"`
	Timeline    []TimelineEntry    `json:"timeline"`
	Responders  []Responder        `json:"responders"`
	Resolution  *Resolution        `json:"resolution,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (i *Incident) resolved() bool {
	return i.Status == IncidentResolved || i.Status == IncidentFalseAlarm
}

func (i *Incident) findResponder(responderID string) *Responder {
	for idx := range i.Responders {
		if i.Responders[idx].ID == responderID {
			return &i.Responders[idx]
		}
	}
	return nil
}

func (i *Incident) hasResponder(t ResponderType) bool {
	for _, r := range i.Responders {
		if r.Type == t {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to return to callers.
func (i *Incident) Clone() *Incident {
	out := *i
	out.Timeline = append([]TimelineEntry(nil), i.Timeline...)
	out.Responders = append([]Responder(nil), i.Responders...)
	if i.Location != nil {
		loc := *i.Location
		out.Location = &loc
	}
	if i.Resolution != nil {
		res := *i.Resolution
		out.Resolution = &res
	}
	return &out
}

type CreateIncidentRequest struct {
	UserID      string             `json:"user_id"`
	SessionID   string             `json:"session_id"`
	AlertID     string             `json:"alert_id"`
	Type        IncidentType       `json:"type"`
	Description string             `json:"description"`
	Location    *safety.RoutePoint `json:"location"`
}

type ResolveIncidentRequest struct {
	ResolvedBy       string `json:"resolved_by"`
	Resolution       string `json:"resolution"`
	FollowUpRequired bool   `json:"follow_up_required"`
	FalseAlarm       bool   `json:"false_alarm"`
}

type UpdateResponderRequest struct {
	Status ResponderStatus `json:"status"`
}

type EscalateIncidentRequest struct {
	By     string `json:"by"`
	Reason string `json:"reason"`
}
