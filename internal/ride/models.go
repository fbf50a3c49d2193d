package ride

import (
	"time"

	"backend-gocars/internal/shared/geo"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Ride is the BFF's view of one trip: endpoints, the planned route handed
// down by the routing service, and the driver assignment.
type Ride struct {
	ID           string      `json:"id"`
	RiderID      string      `json:"rider_id"`
	DriverID     string      `json:"driver_id,omitempty"`
	Status       Status      `json:"status"`
	PickupLabel  string      `json:"pickup_label,omitempty"`
	Pickup       geo.Point   `json:"pickup"`
	DropoffLabel string      `json:"dropoff_label,omitempty"`
	Dropoff      geo.Point   `json:"dropoff"`
	PlannedRoute []geo.Point `json:"planned_route,omitempty"`
	VehiclePlate string      `json:"vehicle_plate,omitempty"`
	RequestedAt  time.Time   `json:"requested_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// validTransition encodes the ride lifecycle. Cancellation is possible until
// the ride is underway; a ride in progress can only complete.
func validTransition(from, to Status) bool {
	switch from {
	case StatusRequested:
		return to == StatusAccepted || to == StatusCancelled
	case StatusAccepted:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted
	default:
		return false
	}
}

type CreateRideRequest struct {
	RiderID      string      `json:"rider_id"`
	PickupLabel  string      `json:"pickup_label"`
	Pickup       geo.Point   `json:"pickup"`
	DropoffLabel string      `json:"dropoff_label"`
	Dropoff      geo.Point   `json:"dropoff"`
	PlannedRoute []geo.Point `json:"planned_route"`
}

type UpdateStatusRequest struct {
	Status       Status `json:"status"`
	DriverID     string `json:"driver_id"`
	VehiclePlate string `json:"vehicle_plate"`
}
