package settings

import (
	"context"
	"errors"
	"time"

	"backend-gocars/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Safety returns the user's safety settings, falling back to system defaults
// when none are stored.
func (s *Service) Safety(ctx context.Context, userID string) (SafetySettings, error) {
	row := s.db.QueryRow(ctx, `
		SELECT deviation_threshold_m, speed_limit_kmh, speed_tolerance_pct, check_in_interval_min,
		       auto_check_ins, notify_contacts_on_alert, sensitivity, updated_at
		FROM safety_settings WHERE user_id=$1
	`, userID)

	out := SafetySettings{UserID: userID}
	err := row.Scan(&out.DeviationThresholdM, &out.SpeedLimitKmh, &out.SpeedTolerancePct,
		&out.CheckInIntervalMin, &out.AutoCheckIns, &out.NotifyContactsOnAlert,
		&out.Sensitivity, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSafety(userID), nil
	}
	if err != nil {
		return DefaultSafety(userID), err
	}
	return out, nil
}

func (s *Service) SaveSafety(ctx context.Context, input SafetySettings) (SafetySettings, error) {
	input.UpdatedAt = time.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO safety_settings (user_id, deviation_threshold_m, speed_limit_kmh, speed_tolerance_pct,
		                             check_in_interval_min, auto_check_ins, notify_contacts_on_alert, sensitivity, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id) DO UPDATE SET
			deviation_threshold_m=EXCLUDED.deviation_threshold_m,
			speed_limit_kmh=EXCLUDED.speed_limit_kmh,
			speed_tolerance_pct=EXCLUDED.speed_tolerance_pct,
			check_in_interval_min=EXCLUDED.check_in_interval_min,
			auto_check_ins=EXCLUDED.auto_check_ins,
			notify_contacts_on_alert=EXCLUDED.notify_contacts_on_alert,
			sensitivity=EXCLUDED.sensitivity,
			updated_at=EXCLUDED.updated_at
	`, input.UserID, input.DeviationThresholdM, input.SpeedLimitKmh, input.SpeedTolerancePct,
		input.CheckInIntervalMin, input.AutoCheckIns, input.NotifyContactsOnAlert, input.Sensitivity, input.UpdatedAt)
	if err != nil {
		return SafetySettings{}, err
	}
	return input, nil
}

// Emergency returns the user's emergency settings, falling back to system
// defaults when none are stored.
func (s *Service) Emergency(ctx context.Context, userID string) (EmergencySettings, error) {
	row := s.db.QueryRow(ctx, `
		SELECT auto_call_emergency_services, auto_notify_contacts, discrete_mode,
		       auto_record_audio, auto_take_photos, auto_escalate, escalation_delay_min, updated_at
		FROM emergency_settings WHERE user_id=$1
	`, userID)

	out := EmergencySettings{UserID: userID}
	err := row.Scan(&out.AutoCallEmergencyServices, &out.AutoNotifyContacts, &out.DiscreteMode,
		&out.AutoRecordAudio, &out.AutoTakePhotos, &out.AutoEscalate, &out.EscalationDelayMin, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultEmergency(userID), nil
	}
	if err != nil {
		return DefaultEmergency(userID), err
	}
	return out, nil
}

func (s *Service) SaveEmergency(ctx context.Context, input EmergencySettings) (EmergencySettings, error) {
	input.UpdatedAt = time.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO emergency_settings (user_id, auto_call_emergency_services, auto_notify_contacts, discrete_mode,
		                                auto_record_audio, auto_take_photos, auto_escalate, escalation_delay_min, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id) DO UPDATE SET
			auto_call_emergency_services=EXCLUDED.auto_call_emergency_services,
			auto_notify_contacts=EXCLUDED.auto_notify_contacts,
			discrete_mode=EXCLUDED.discrete_mode,
			auto_record_audio=EXCLUDED.auto_record_audio,
			auto_take_photos=EXCLUDED.auto_take_photos,
			auto_escalate=EXCLUDED.auto_escalate,
			escalation_delay_min=EXCLUDED.escalation_delay_min,
			updated_at=EXCLUDED.updated_at
	`, input.UserID, input.AutoCallEmergencyServices, input.AutoNotifyContacts, input.DiscreteMode,
		input.AutoRecordAudio, input.AutoTakePhotos, input.AutoEscalate, input.EscalationDelayMin, input.UpdatedAt)
	if err != nil {
		return EmergencySettings{}, err
	}
	return input, nil
}

func (s *Service) AddContact(ctx context.Context, input Contact) (Contact, error) {
	input.ID = uuid.NewString()
	if !input.NotifyBySMS && !input.NotifyByCall && !input.NotifyByEmail {
		input.NotifyBySMS = true
	}
	input.IsActive = true
	row := s.db.QueryRow(ctx, `
		INSERT INTO emergency_contacts (id, user_id, name, phone, email, relation, is_primary,
		                                notify_by_sms, notify_by_call, notify_by_email, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at
	`, input.ID, input.UserID, input.Name, input.Phone, input.Email, input.Relation, input.IsPrimary,
		input.NotifyBySMS, input.NotifyByCall, input.NotifyByEmail, input.IsActive)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Contact{}, err
	}
	return input, nil
}

func (s *Service) RemoveContact(ctx context.Context, userID, contactID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE emergency_contacts SET is_active=false WHERE id=$1 AND user_id=$2
	`, contactID, userID)
	return err
}

// Contacts returns the user's active emergency contacts, primary first.
func (s *Service) Contacts(ctx context.Context, userID string) ([]Contact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, phone, email, relation, is_primary,
		       notify_by_sms, notify_by_call, notify_by_email, is_active, created_at
		FROM emergency_contacts
		WHERE user_id=$1 AND is_active=true
		ORDER BY is_primary DESC, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.Email, &c.Relation, &c.IsPrimary,
			&c.NotifyBySMS, &c.NotifyByCall, &c.NotifyByEmail, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
