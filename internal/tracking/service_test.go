package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

type captureHub struct {
	key     string
	payload []byte
	calls   int
}

func (c *captureHub) Broadcast(sessionID string, payload []byte) {
	c.key = sessionID
	c.payload = payload
	c.calls++
}

func TestAddPointBroadcasts(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	hub := &captureHub{}
	svc := NewService(mock, hub)

	mock.ExpectQuery(`INSERT INTO ride_track_points`).
		WithArgs("ride-1", -6.2, 106.8, 32.5, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	point, err := svc.AddPoint(context.Background(), "ride-1", TrackPoint{Lat: -6.2, Lng: 106.8, SpeedKmh: 32.5})
	if err != nil {
		t.Fatalf("add point: %v", err)
	}
	if point.ID != 1 || point.RideID != "ride-1" {
		t.Fatalf("unexpected point: %+v", point)
	}
	if point.RecordedAt.IsZero() {
		t.Fatalf("expected recorded_at to default")
	}

	if hub.calls != 1 || hub.key != "ride-1" {
		t.Fatalf("expected one broadcast on ride-1, got %d on %q", hub.calls, hub.key)
	}
	var event map[string]any
	if err := json.Unmarshal(hub.payload, &event); err != nil {
		t.Fatalf("broadcast payload: %v", err)
	}
	if event["type"] != "track_point" || event["ride_id"] != "ride-1" {
		t.Fatalf("unexpected event: %v", event)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddPointKeepsRecordedAt(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock, nil)

	recorded := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO ride_track_points`).
		WithArgs("ride-1", -6.2, 106.8, 0.0, recorded).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))

	point, err := svc.AddPoint(context.Background(), "ride-1", TrackPoint{Lat: -6.2, Lng: 106.8, RecordedAt: recorded})
	if err != nil {
		t.Fatalf("add point: %v", err)
	}
	if !point.RecordedAt.Equal(recorded) {
		t.Fatalf("recorded_at overwritten: %v", point.RecordedAt)
	}
}

func TestPoints(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock, nil)

	mock.ExpectQuery(`SELECT id, ride_id, lat, lng, COALESCE\(speed_kmh,0\), recorded_at, created_at`).
		WithArgs("ride-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "ride_id", "lat", "lng", "speed_kmh", "recorded_at", "created_at"}).
			AddRow(int64(1), "ride-1", -6.2, 106.8, 30.0, time.Now().Add(-time.Minute), time.Now()).
			AddRow(int64(2), "ride-1", -6.21, 106.81, 35.0, time.Now(), time.Now()))

	points, err := svc.Points(context.Background(), "ride-1")
	if err != nil || len(points) != 2 {
		t.Fatalf("points: %v (%d)", err, len(points))
	}
	if points[0].ID != 1 || points[1].SpeedKmh != 35.0 {
		t.Fatalf("unexpected points: %+v", points)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSummaryComputesTotals(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock, nil)

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, ride_id, lat, lng, COALESCE\(speed_kmh,0\), recorded_at, created_at`).
		WithArgs("ride-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "ride_id", "lat", "lng", "speed_kmh", "recorded_at", "created_at"}).
			AddRow(int64(1), "ride-1", -6.20, 106.8, 30.0, start, start).
			AddRow(int64(2), "ride-1", -6.21, 106.8, 30.0, start.Add(time.Minute), start.Add(time.Minute)).
			AddRow(int64(3), "ride-1", -6.22, 106.8, 30.0, start.Add(2*time.Minute), start.Add(2*time.Minute)))

	sum, err := svc.Summary(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.PointCount != 3 || sum.DurationSec != 120 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	// Two 0.01 degree latitude hops, roughly 1.11 km each.
	if sum.DistanceKm < 2.1 || sum.DistanceKm > 2.3 {
		t.Fatalf("unexpected distance: %f", sum.DistanceKm)
	}
	if sum.AverageSpeedKmh < 60 || sum.AverageSpeedKmh > 70 {
		t.Fatalf("unexpected average speed: %f", sum.AverageSpeedKmh)
	}
}

func TestSummaryShortTrail(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock, nil)

	mock.ExpectQuery(`SELECT id, ride_id, lat, lng, COALESCE\(speed_kmh,0\), recorded_at, created_at`).
		WithArgs("ride-2").
		WillReturnRows(pgxmock.NewRows([]string{"id", "ride_id", "lat", "lng", "speed_kmh", "recorded_at", "created_at"}).
			AddRow(int64(1), "ride-2", -6.2, 106.8, 0.0, time.Now(), time.Now()))

	sum, err := svc.Summary(context.Background(), "ride-2")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.PointCount != 1 || sum.DistanceKm != 0 || sum.DurationSec != 0 {
		t.Fatalf("expected zeroed summary, got %+v", sum)
	}
}

func TestAddPointInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO ride_track_points`).
		WithArgs("ride-3", -6.2, 106.8, 0.0, pgxmock.AnyArg()).
		WillReturnError(errTrack)

	hub := &captureHub{}
	svc := NewService(mock, hub)
	_, err = svc.AddPoint(context.Background(), "ride-3", TrackPoint{Lat: -6.2, Lng: 106.8})
	if err == nil {
		t.Fatalf("expected error")
	}
	if hub.calls != 0 {
		t.Fatalf("failed insert must not broadcast")
	}
}

func TestPointsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, ride_id, lat, lng, COALESCE\(speed_kmh,0\), recorded_at, created_at`).
		WithArgs("ride-4").
		WillReturnError(errTrack)

	svc := NewService(mock, nil)
	if _, err := svc.Points(context.Background(), "ride-4"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSummaryQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, ride_id, lat, lng, COALESCE\(speed_kmh,0\), recorded_at, created_at`).
		WithArgs("ride-5").
		WillReturnError(errTrack)

	svc := NewService(mock, nil)
	if _, err := svc.Summary(context.Background(), "ride-5"); err == nil {
		t.Fatalf("expected error")
	}
}

var errTrack = errors.New("track error")
