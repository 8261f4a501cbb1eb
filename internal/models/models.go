package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DriverStatus is the availability state of a driver.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverOnRide    DriverStatus = "on_ride"
	DriverInactive  DriverStatus = "inactive"
)

func (s DriverStatus) Valid() bool {
	switch s {
	case DriverAvailable, DriverOnRide, DriverInactive:
		return true
	}
	return false
}

type Driver struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	VehicleType string       `json:"vehicle_type,omitempty"`
	PlateNumber string       `json:"plate_number,omitempty"`
	Loc         Coord        `json:"loc"`
	Status      DriverStatus `json:"status"`
	Updated     time.Time    `json:"updated"`
}

// RideStatus is the lifecycle state of a ride request.
type RideStatus string

const (
	RideRequested RideStatus = "requested"
	RideAssigned  RideStatus = "assigned"
	RideOngoing   RideStatus = "ongoing"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

// Terminal reports whether a ride in this status can no longer change state.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

type RideRequest struct {
	ID          string     `json:"id"`
	RiderID     string     `json:"rider_id"`
	DriverID    string     `json:"driver_id,omitempty"`
	Pickup      *Coord     `json:"pickup,omitempty"`
	Dropoff     *Coord     `json:"dropoff,omitempty"`
	PickupAddr  string     `json:"pickup_addr,omitempty"`
	DropoffAddr string     `json:"dropoff_addr,omitempty"`
	Status      RideStatus `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`

	// Estimates for the pickup->dropoff leg, filled best-effort at assignment.
	EstimatedDistanceKm  *float64 `json:"estimated_distance_km,omitempty"`
	EstimatedDurationMin *float64 `json:"estimated_duration_min,omitempty"`
}

// Assignment is the read model produced by a successful match and pushed
// to the assigned driver.
type Assignment struct {
	RideID     string  `json:"ride_id"`
	DriverID   string  `json:"driver_id"`
	Score      float64 `json:"score"`
	EtaMinutes float64 `json:"eta_minutes"`
	DistanceKm float64 `json:"distance_km"`
}
