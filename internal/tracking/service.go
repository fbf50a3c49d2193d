package tracking

import (
	"context"
	"encoding/json"
	"time"

	"backend-gocars/internal/db"
	"backend-gocars/internal/shared/geo"
)

// Broadcaster fans a track point out to live stream subscribers. The stream
// key here is the ride ID, so viewers of /stream/ws/:rideID see breadcrumbs
// as they arrive.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

type Service struct {
	db  db.Querier
	hub Broadcaster
}

func NewService(db db.Querier, hub Broadcaster) *Service {
	return &Service{db: db, hub: hub}
}

func (s *Service) AddPoint(ctx context.Context, rideID string, input TrackPoint) (TrackPoint, error) {
	if input.RecordedAt.IsZero() {
		input.RecordedAt = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO ride_track_points (ride_id, lat, lng, speed_kmh, recorded_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, rideID, input.Lat, input.Lng, input.SpeedKmh, input.RecordedAt)
	if err := row.Scan(&input.ID, &input.CreatedAt); err != nil {
		return TrackPoint{}, err
	}
	input.RideID = rideID

	if s.hub != nil {
		payload, _ := json.Marshal(map[string]any{
			"type":        "track_point",
			"ride_id":     rideID,
			"lat":         input.Lat,
			"lng":         input.Lng,
			"speed_kmh":   input.SpeedKmh,
			"recorded_at": input.RecordedAt,
		})
		s.hub.Broadcast(rideID, payload)
	}

	return input, nil
}

func (s *Service) Points(ctx context.Context, rideID string) ([]TrackPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, lat, lng, COALESCE(speed_kmh,0), recorded_at, created_at
		FROM ride_track_points WHERE ride_id=$1
		ORDER BY recorded_at
	`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.ID, &p.RideID, &p.Lat, &p.Lng, &p.SpeedKmh, &p.RecordedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// Summary recomputes distance and duration from the stored trail. Trails are
// bounded by ride length, so there is no running total to maintain.
func (s *Service) Summary(ctx context.Context, rideID string) (Summary, error) {
	points, err := s.Points(ctx, rideID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{RideID: rideID, PointCount: len(points)}
	if len(points) < 2 {
		return sum, nil
	}

	for i := 1; i < len(points); i++ {
		sum.DistanceKm += geo.HaversineKm(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	duration := points[len(points)-1].RecordedAt.Sub(points[0].RecordedAt)
	sum.DurationSec = int64(duration.Seconds())
	if duration.Seconds() > 0 {
		sum.AverageSpeedKmh = sum.DistanceKm / duration.Hours()
	}
	return sum, nil
}
