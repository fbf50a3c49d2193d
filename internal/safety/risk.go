package safety

// RiskScore folds the session's current deviations, behavior, alerts and
// check-ins into a 0-100 score. Pure: same session contents, same score.
func RiskScore(s *MonitoringSession) float64 {
	var open, major float64
	for _, d := range s.Deviations {
		if d.Resolved {
			continue
		}
		open++
		if d.Severity == DeviationMajor {
			major++
		}
	}

	var active, high, critical float64
	for _, a := range s.Alerts {
		if a.Status != AlertActive {
			continue
		}
		active++
		switch a.Severity {
		case SeverityHigh:
			high++
		case SeverityCritical:
			critical++
		}
	}

	var missed float64
	for _, c := range s.CheckIns {
		if c.Status == CheckInMissed {
			missed++
		}
	}

	score := 10*open + 20*major + (100-s.Behavior.OverallScore)/2 +
		5*active + 15*high + 30*critical + 25*missed
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// statusFor derives the session status from the score. Completion is
// terminal and never recomputed.
func statusFor(score float64) SessionStatus {
	switch {
	case score > 80:
		return StatusEmergency
	case score > 50:
		return StatusAlertTriggered
	default:
		return StatusMonitoring
	}
}

// refreshRisk recomputes score and status in place and reports whether
// either changed.
func refreshRisk(s *MonitoringSession) bool {
	score := RiskScore(s)
	status := statusFor(score)
	changed := score != s.RiskScore || status != s.Status
	s.RiskScore = score
	if s.Status != StatusCompleted {
		s.Status = status
	}
	return changed
}
