package safety

import (
	"time"

	"backend-gocars/internal/shared/geo"
)

type SessionStatus string

const (
	StatusMonitoring     SessionStatus = "monitoring"
	StatusAlertTriggered SessionStatus = "alert_triggered"
	StatusEmergency      SessionStatus = "emergency"
	StatusCompleted      SessionStatus = "completed"
)

// RoutePoint is a single timestamped position fix. Immutable once recorded.
type RoutePoint struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
	SpeedKmh   float64   `json:"speed_kmh,omitempty"`
	HeadingDeg float64   `json:"heading_deg,omitempty"`
	AccuracyM  float64   `json:"accuracy_m,omitempty"`
}

type DeviationSeverity string

const (
	DeviationMinor DeviationSeverity = "minor"
	DeviationMajor DeviationSeverity = "major"
)

// RouteDeviation is one contiguous episode of being off the planned route.
// At most one unresolved episode exists per session at any time.
type RouteDeviation struct {
	ID             string            `json:"id"`
	StartedAt      time.Time         `json:"started_at"`
	Severity       DeviationSeverity `json:"severity"`
	MaxDistanceM   float64           `json:"max_distance_m"`
	DurationSec    int64             `json:"duration_sec"`
	Resolved       bool              `json:"resolved"`
	ResolvedAt     time.Time         `json:"resolved_at,omitempty"`
	AlertTriggered bool              `json:"alert_triggered"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// BehaviorMetrics accumulates driving quality counters for one session.
// OverallScore is recomputed from the full counter set on every fix, so
// replaying the same fix sequence always produces the same metrics.
type BehaviorMetrics struct {
	AvgSpeedKmh        float64   `json:"avg_speed_kmh"`
	MaxSpeedKmh        float64   `json:"max_speed_kmh"`
	SpeedViolations    int       `json:"speed_violations"`
	HarshAccelerations int       `json:"harsh_accelerations"`
	HarshBrakings      int       `json:"harsh_brakings"`
	SharpTurns         int       `json:"sharp_turns"`
	SpeedSamples       int       `json:"speed_samples"`
	OverallScore       float64   `json:"overall_score"`
	RiskLevel          RiskLevel `json:"risk_level"`
}

type AlertType string

const (
	AlertRouteDeviation    AlertType = "route_deviation"
	AlertSpeedViolation    AlertType = "speed_violation"
	AlertHarshDriving      AlertType = "harsh_driving"
	AlertCheckInMissed     AlertType = "check_in_missed"
	AlertPanicButton       AlertType = "panic_button"
	AlertCommunicationLoss AlertType = "communication_loss"
	AlertExtendedStop      AlertType = "extended_stop"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertFalseAlarm   AlertStatus = "false_alarm"
)

// AlertAction records one response action taken for an alert. Actions are
// attempted independently; one channel failing never blocks another.
type AlertAction struct {
	Action  string    `json:"action"`
	Target  string    `json:"target,omitempty"`
	At      time.Time `json:"at"`
	Success bool      `json:"success"`
	Detail  string    `json:"detail,omitempty"`
}

// Alert is a typed safety event raised by the detectors or the check-in
// scheduler. Lifecycle: active -> acknowledged -> resolved/false_alarm;
// resolved and false_alarm are terminal.
type Alert struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	UserID         string        `json:"user_id"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Status         AlertStatus   `json:"status"`
	Message        string        `json:"message"`
	Location       *RoutePoint   `json:"location,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	AcknowledgedBy string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt time.Time     `json:"acknowledged_at,omitempty"`
	ResolvedAt     time.Time     `json:"resolved_at,omitempty"`
	Actions        []AlertAction `json:"actions,omitempty"`
}

type CheckInType string

const (
	CheckInAutomatic CheckInType = "automatic"
	CheckInManual    CheckInType = "manual"
	CheckInPrompted  CheckInType = "prompted"
)

type CheckInStatus string

const (
	CheckInPending   CheckInStatus = "pending"
	CheckInCompleted CheckInStatus = "completed"
	CheckInMissed    CheckInStatus = "missed"
	CheckInOverdue   CheckInStatus = "overdue"
)

// CheckIn is one scheduled or ad-hoc safety prompt.
type CheckIn struct {
	ID               string        `json:"id"`
	SessionID        string        `json:"session_id"`
	Type             CheckInType   `json:"type"`
	Status           CheckInStatus `json:"status"`
	ScheduledAt      time.Time     `json:"scheduled_at"`
	DeadlineAt       time.Time     `json:"deadline_at,omitempty"`
	RespondedAt      time.Time     `json:"responded_at,omitempty"`
	ResponseOK       bool          `json:"response_ok"`
	ResponseLocation *RoutePoint   `json:"response_location,omitempty"`
	FollowUpRequired bool          `json:"follow_up_required"`
}

// MonitoringSession is the full observable state of one monitored ride.
type MonitoringSession struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	RideID       string           `json:"ride_id"`
	PlannedRoute []geo.Point      `json:"planned_route"`
	ActualRoute  []RoutePoint     `json:"actual_route"`
	Deviations   []RouteDeviation `json:"deviations"`
	Alerts       []Alert          `json:"alerts"`
	CheckIns     []CheckIn        `json:"check_ins"`
	Behavior     BehaviorMetrics  `json:"behavior_metrics"`
	RiskScore    float64          `json:"risk_score"`
	Status       SessionStatus    `json:"status"`
	IsActive     bool             `json:"is_active"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      time.Time        `json:"ended_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Clone returns a deep copy safe to hand outside the monitor's lock.
func (s *MonitoringSession) Clone() *MonitoringSession {
	out := *s
	out.PlannedRoute = append([]geo.Point(nil), s.PlannedRoute...)
	out.ActualRoute = append([]RoutePoint(nil), s.ActualRoute...)
	out.Deviations = append([]RouteDeviation(nil), s.Deviations...)
	out.CheckIns = make([]CheckIn, len(s.CheckIns))
	for i, c := range s.CheckIns {
		out.CheckIns[i] = c
		if c.ResponseLocation != nil {
			loc := *c.ResponseLocation
			out.CheckIns[i].ResponseLocation = &loc
		}
	}
	out.Alerts = make([]Alert, len(s.Alerts))
	for i, a := range s.Alerts {
		out.Alerts[i] = a
		out.Alerts[i].Actions = append([]AlertAction(nil), a.Actions...)
		if a.Location != nil {
			loc := *a.Location
			out.Alerts[i].Location = &loc
		}
	}
	return &out
}

// OpenDeviation returns the currently unresolved deviation episode, if any.
func (s *MonitoringSession) OpenDeviation() *RouteDeviation {
	for i := range s.Deviations {
		if !s.Deviations[i].Resolved {
			return &s.Deviations[i]
		}
	}
	return nil
}

func (s *MonitoringSession) findAlert(alertID string) *Alert {
	for i := range s.Alerts {
		if s.Alerts[i].ID == alertID {
			return &s.Alerts[i]
		}
	}
	return nil
}

func (s *MonitoringSession) findCheckIn(checkInID string) *CheckIn {
	for i := range s.CheckIns {
		if s.CheckIns[i].ID == checkInID {
			return &s.CheckIns[i]
		}
	}
	return nil
}

type StartMonitoringRequest struct {
	UserID       string      `json:"user_id"`
	RideID       string      `json:"ride_id"`
	PlannedRoute []geo.Point `json:"planned_route"`
}

type CheckInRequest struct {
	OK       *bool      `json:"ok"`
	Location *geo.Point `json:"location"`
}

type AcknowledgeAlertRequest struct {
	By string `json:"by"`
}

type ResolveAlertRequest struct {
	FalseAlarm bool `json:"false_alarm"`
}
