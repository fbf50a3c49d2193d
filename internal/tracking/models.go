package tracking

import "time"

// TrackPoint is one breadcrumb of a ride's recorded path. The driver app
// batches these separately from the live last-fix feed, so a ride keeps a
// reviewable trail even when the last-fix entry has expired.
type TrackPoint struct {
	ID         int64     `json:"id"`
	RideID     string    `json:"ride_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedKmh   float64   `json:"speed_kmh"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type Summary struct {
	RideID          string  `json:"ride_id"`
	PointCount      int     `json:"point_count"`
	DistanceKm      float64 `json:"distance_km"`
	DurationSec     int64   `json:"duration_sec"`
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
}
