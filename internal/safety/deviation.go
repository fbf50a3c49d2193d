package safety

import (
	"time"

	"github.com/google/uuid"

	"backend-gocars/internal/shared/geo"
)

// applyDeviation compares one fix against the planned route and maintains the
// session's deviation episodes. It returns the distance to the route and, when
// an episode turns major for the first time, true to request a route_deviation
// alert. At most one unresolved episode exists at any time.
func applyDeviation(s *MonitoringSession, fix RoutePoint, thresholdM float64) (distM float64, alertMajor bool) {
	if len(s.PlannedRoute) == 0 {
		return 0, false
	}
	_, distM = geo.NearestOnPolyline(fix.Lat, fix.Lng, s.PlannedRoute)

	open := s.OpenDeviation()
	if distM <= thresholdM {
		if open != nil {
			open.Resolved = true
			open.ResolvedAt = fix.RecordedAt
			open.DurationSec = int64(fix.RecordedAt.Sub(open.StartedAt) / time.Second)
		}
		return distM, false
	}

	major := distM > 2*thresholdM
	if open == nil {
		dev := RouteDeviation{
			ID:           uuid.NewString(),
			StartedAt:    fix.RecordedAt,
			Severity:     DeviationMinor,
			MaxDistanceM: distM,
		}
		if major {
			dev.Severity = DeviationMajor
			dev.AlertTriggered = true
		}
		s.Deviations = append(s.Deviations, dev)
		return distM, major
	}

	if distM > open.MaxDistanceM {
		open.MaxDistanceM = distM
	}
	open.DurationSec = int64(fix.RecordedAt.Sub(open.StartedAt) / time.Second)
	if major && open.Severity != DeviationMajor {
		open.Severity = DeviationMajor
	}
	if open.Severity == DeviationMajor && !open.AlertTriggered {
		open.AlertTriggered = true
		return distM, true
	}
	return distM, false
}
