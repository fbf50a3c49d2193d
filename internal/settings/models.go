package settings

import "time"

// SafetySettings drives the ride monitoring behavior for one user.
type SafetySettings struct {
	UserID                string    `json:"user_id"`
	DeviationThresholdM   float64   `json:"deviation_threshold_m"`
	SpeedLimitKmh         float64   `json:"speed_limit_kmh"`
	SpeedTolerancePct     float64   `json:"speed_tolerance_pct"`
	CheckInIntervalMin    int       `json:"check_in_interval_min"`
	AutoCheckIns          bool      `json:"auto_check_ins"`
	NotifyContactsOnAlert bool      `json:"notify_contacts_on_alert"`
	Sensitivity           string    `json:"sensitivity"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

// EmergencySettings drives the incident response workflow for one user.
type EmergencySettings struct {
	UserID                    string    `json:"user_id"`
	AutoCallEmergencyServices bool      `json:"auto_call_emergency_services"`
	AutoNotifyContacts        bool      `json:"auto_notify_contacts"`
	DiscreteMode              bool      `json:"discrete_mode"`
	AutoRecordAudio           bool      `json:"auto_record_audio"`
	AutoTakePhotos            bool      `json:"auto_take_photos"`
	AutoEscalate              bool      `json:"auto_escalate"`
	EscalationDelayMin        int       `json:"escalation_delay_min"`
	UpdatedAt                 time.Time `json:"updated_at,omitempty"`
}

// Contact is an emergency contact reachable over one or more channels.
type Contact struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	Relation      string    `json:"relation,omitempty"`
	IsPrimary     bool      `json:"is_primary"`
	NotifyBySMS   bool      `json:"notify_by_sms"`
	NotifyByCall  bool      `json:"notify_by_call"`
	NotifyByEmail bool      `json:"notify_by_email"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultSafety returns the system defaults applied when a user has not
// stored safety settings yet.
func DefaultSafety(userID string) SafetySettings {
	return SafetySettings{
		UserID:                userID,
		DeviationThresholdM:   500,
		SpeedLimitKmh:         60,
		SpeedTolerancePct:     20,
		CheckInIntervalMin:    10,
		AutoCheckIns:          true,
		NotifyContactsOnAlert: true,
		Sensitivity:           "medium",
	}
}

// DefaultEmergency returns the system defaults applied when a user has not
// stored emergency settings yet.
func DefaultEmergency(userID string) EmergencySettings {
	return EmergencySettings{
		UserID:             userID,
		AutoNotifyContacts: true,
		EscalationDelayMin: 5,
	}
}
