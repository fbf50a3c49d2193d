package safety

import (
	"fmt"

	"backend-gocars/internal/shared/geo"
	"backend-gocars/internal/settings"
)

// behaviorState holds the derived kinematics between consecutive fixes.
// Everything in it is a function of the fix sequence alone, so replaying the
// same fixes reproduces the same metrics.
type behaviorState struct {
	lastSpeedKmh float64
	hasSpeed     bool
	lastHeading  float64
	hasHeading   bool
	stopStreak   int
}

// pendingAlert is a detector verdict awaiting the alert engine.
type pendingAlert struct {
	Type     AlertType
	Severity AlertSeverity
	Message  string
}

// applyBehavior derives speed, acceleration and heading change from the fix
// just appended to s.ActualRoute and updates the session's behavior metrics.
// Speed needs two fixes, acceleration three.
func applyBehavior(s *MonitoringSession, st *behaviorState, cfg Config, safe settings.SafetySettings) []pendingAlert {
	n := len(s.ActualRoute)
	if n < 2 {
		return nil
	}
	prev, fix := s.ActualRoute[n-2], s.ActualRoute[n-1]
	dt := fix.RecordedAt.Sub(prev.RecordedAt).Seconds()
	if dt <= 0 {
		return nil
	}

	distM := geo.DistanceM(prev.Lat, prev.Lng, fix.Lat, fix.Lng)
	speedKmh := distM / dt * 3.6

	var out []pendingAlert
	m := &s.Behavior
	m.SpeedSamples++
	m.AvgSpeedKmh += (speedKmh - m.AvgSpeedKmh) / float64(m.SpeedSamples)
	if speedKmh > m.MaxSpeedKmh {
		m.MaxSpeedKmh = speedKmh
	}

	limit := safe.SpeedLimitKmh
	if limit > 0 && speedKmh > limit*(1+safe.SpeedTolerancePct/100) {
		m.SpeedViolations++
		sev := SeverityMedium
		switch {
		case speedKmh >= 2*limit:
			sev = SeverityCritical
		case speedKmh >= 1.5*limit:
			sev = SeverityHigh
		}
		out = append(out, pendingAlert{
			Type:     AlertSpeedViolation,
			Severity: sev,
			Message:  fmt.Sprintf("speed %.0f km/h exceeds limit %.0f km/h", speedKmh, limit),
		})
	}

	if st.hasSpeed {
		accel := (speedKmh - st.lastSpeedKmh) / 3.6 / dt
		if accel > cfg.HarshAccelMS2 || accel < -cfg.HarshAccelMS2 {
			verb := "acceleration"
			if accel > 0 {
				m.HarshAccelerations++
			} else {
				m.HarshBrakings++
				verb = "braking"
			}
			out = append(out, pendingAlert{
				Type:     AlertHarshDriving,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("harsh %s %.1f m/s²", verb, accel),
			})
		}
	}
	st.lastSpeedKmh = speedKmh
	st.hasSpeed = true

	if distM > 0 {
		heading := geo.Bearing(prev.Lat, prev.Lng, fix.Lat, fix.Lng)
		if st.hasHeading && speedKmh > cfg.SharpTurnMinKmh && geo.BearingDelta(st.lastHeading, heading) > cfg.SharpTurnDeg {
			m.SharpTurns++
		}
		st.lastHeading = heading
		st.hasHeading = true
	}

	if speedKmh < cfg.StopSpeedKmh {
		st.stopStreak++
		if st.stopStreak == cfg.StopFixLimit {
			out = append(out, pendingAlert{
				Type:     AlertExtendedStop,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("stationary for %d consecutive fixes", st.stopStreak),
			})
		}
	} else {
		st.stopStreak = 0
	}

	recomputeScore(m)
	return out
}

// recomputeScore rebuilds the bounded score and risk level from the full
// counter set. Score starts at 100; speed violation -5, harsh event -2,
// sharp turn -1, floored at 0.
func recomputeScore(m *BehaviorMetrics) {
	score := 100 - 5*float64(m.SpeedViolations) - 2*float64(m.HarshAccelerations+m.HarshBrakings) - float64(m.SharpTurns)
	if score < 0 {
		score = 0
	}
	m.OverallScore = score
	switch {
	case score >= 90:
		m.RiskLevel = RiskLow
	case score >= 70:
		m.RiskLevel = RiskMedium
	case score >= 50:
		m.RiskLevel = RiskHigh
	default:
		m.RiskLevel = RiskCritical
	}
}
