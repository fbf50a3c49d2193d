package ride

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"backend-gocars/internal/db"
	"backend-gocars/internal/shared/geo"
)

var (
	ErrRideNotFound = errors.New("ride not found")
	ErrRideState    = errors.New("invalid ride state transition")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateRide(ctx context.Context, req CreateRideRequest) (Ride, error) {
	ride := Ride{
		ID:           uuid.NewString(),
		RiderID:      req.RiderID,
		Status:       StatusRequested,
		PickupLabel:  req.PickupLabel,
		Pickup:       req.Pickup,
		DropoffLabel: req.DropoffLabel,
		Dropoff:      req.Dropoff,
		PlannedRoute: req.PlannedRoute,
	}
	routeDoc, err := json.Marshal(ride.PlannedRoute)
	if err != nil {
		return Ride{}, fmt.Errorf("marshal route: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO rides (id, rider_id, status, pickup_label, pickup_lat, pickup_lng, dropoff_label, dropoff_lat, dropoff_lng, planned_route)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING requested_at
	`, ride.ID, ride.RiderID, ride.Status, ride.PickupLabel, ride.Pickup.Lat, ride.Pickup.Lng,
		ride.DropoffLabel, ride.Dropoff.Lat, ride.Dropoff.Lng, routeDoc)
	if err := row.Scan(&ride.RequestedAt); err != nil {
		return Ride{}, err
	}
	return ride, nil
}

func (s *Service) Ride(ctx context.Context, id string) (Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, COALESCE(driver_id,''), status, pickup_label, pickup_lat, pickup_lng,
		       dropoff_label, dropoff_lat, dropoff_lng, planned_route, COALESCE(vehicle_plate,''),
		       requested_at, started_at, completed_at
		FROM rides WHERE id=$1
	`, id)

	var ride Ride
	var routeDoc []byte
	err := row.Scan(&ride.ID, &ride.RiderID, &ride.DriverID, &ride.Status,
		&ride.PickupLabel, &ride.Pickup.Lat, &ride.Pickup.Lng,
		&ride.DropoffLabel, &ride.Dropoff.Lat, &ride.Dropoff.Lng,
		&routeDoc, &ride.VehiclePlate, &ride.RequestedAt, &ride.StartedAt, &ride.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ride{}, ErrRideNotFound
	}
	if err != nil {
		return Ride{}, err
	}
	if len(routeDoc) > 0 {
		if err := json.Unmarshal(routeDoc, &ride.PlannedRoute); err != nil {
			return Ride{}, fmt.Errorf("unmarshal route for ride %s: %w", id, err)
		}
	}
	return ride, nil
}

// UpdateStatus advances the ride through its lifecycle. Driver and vehicle
// details are recorded at acceptance.
func (s *Service) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (Ride, error) {
	ride, err := s.Ride(ctx, id)
	if err != nil {
		return Ride{}, err
	}
	if !validTransition(ride.Status, req.Status) {
		return Ride{}, fmt.Errorf("%w: %s to %s", ErrRideState, ride.Status, req.Status)
	}

	now := time.Now()
	ride.Status = req.Status
	switch req.Status {
	case StatusAccepted:
		if req.DriverID != "" {
			ride.DriverID = req.DriverID
		}
		if req.VehiclePlate != "" {
			ride.VehiclePlate = req.VehiclePlate
		}
	case StatusInProgress:
		ride.StartedAt = &now
	case StatusCompleted, StatusCancelled:
		ride.CompletedAt = &now
	}

	_, err = s.db.Exec(ctx, `
		UPDATE rides
		SET status=$2, driver_id=NULLIF($3,''), vehicle_plate=NULLIF($4,''), started_at=$5, completed_at=$6
		WHERE id=$1
	`, ride.ID, ride.Status, ride.DriverID, ride.VehiclePlate, ride.StartedAt, ride.CompletedAt)
	if err != nil {
		return Ride{}, err
	}
	return ride, nil
}

// RidesForUser lists rides where the user is rider or driver, newest first.
func (s *Service) RidesForUser(ctx context.Context, userID string) ([]Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, COALESCE(driver_id,''), status, pickup_label, pickup_lat, pickup_lng,
		       dropoff_label, dropoff_lat, dropoff_lng, planned_route, COALESCE(vehicle_plate,''),
		       requested_at, started_at, completed_at
		FROM rides WHERE rider_id=$1 OR driver_id=$1
		ORDER BY requested_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []Ride
	for rows.Next() {
		var ride Ride
		var routeDoc []byte
		if err := rows.Scan(&ride.ID, &ride.RiderID, &ride.DriverID, &ride.Status,
			&ride.PickupLabel, &ride.Pickup.Lat, &ride.Pickup.Lng,
			&ride.DropoffLabel, &ride.Dropoff.Lat, &ride.Dropoff.Lng,
			&routeDoc, &ride.VehiclePlate, &ride.RequestedAt, &ride.StartedAt, &ride.CompletedAt); err != nil {
			return nil, err
		}
		if len(routeDoc) > 0 {
			if err := json.Unmarshal(routeDoc, &ride.PlannedRoute); err != nil {
				return nil, err
			}
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// PlannedRoute returns the stored route polyline for a ride. The safety
// monitor uses it as the deviation baseline when a session starts.
func (s *Service) PlannedRoute(ctx context.Context, rideID string) ([]geo.Point, error) {
	var routeDoc []byte
	err := s.db.QueryRow(ctx, `SELECT planned_route FROM rides WHERE id=$1`, rideID).Scan(&routeDoc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, err
	}

	var route []geo.Point
	if len(routeDoc) > 0 {
		if err := json.Unmarshal(routeDoc, &route); err != nil {
			return nil, fmt.Errorf("unmarshal route for ride %s: %w", rideID, err)
		}
	}
	return route, nil
}
