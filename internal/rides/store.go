// Package rides owns the ride request lifecycle. Status moves monotonically
// requested -> assigned -> ongoing -> completed, with cancelled reachable
// from any non-terminal state.
package rides

import (
	"context"
	"errors"

	"github.com/example/ride-dispatch/internal/models"
)

var (
	ErrNotFound = errors.New("ride not found")

	// ErrAlreadyBound means a bind was attempted on a ride that is no
	// longer in requested state. Under correct reservation locking this
	// indicates a lifecycle invariant violation.
	ErrAlreadyBound = errors.New("ride already bound")

	ErrBadTransition = errors.New("invalid status transition")
)

type Store interface {
	// Create stores a new ride in requested state and returns it with an
	// assigned ID and RequestedAt timestamp.
	Create(ctx context.Context, r *models.RideRequest) (*models.RideRequest, error)
	Get(ctx context.Context, rideID string) (*models.RideRequest, error)
	List(ctx context.Context) ([]*models.RideRequest, error)

	// Bind moves a requested ride to assigned, recording the driver and
	// AssignedAt. Returns ErrAlreadyBound if the ride is not in requested
	// state.
	Bind(ctx context.Context, rideID, driverID string) (*models.RideRequest, error)

	// SetStatus applies a lifecycle transition, validated against the
	// allowed-transition table.
	SetStatus(ctx context.Context, rideID string, status models.RideStatus) (*models.RideRequest, error)

	// SetTripEstimate stores pickup->dropoff leg estimates. Best-effort
	// bookkeeping; does not touch status.
	SetTripEstimate(ctx context.Context, rideID string, distanceKm, durationMin float64) error
}

var allowedTransitions = map[models.RideStatus][]models.RideStatus{
	models.RideRequested: {models.RideAssigned, models.RideCancelled},
	models.RideAssigned:  {models.RideOngoing, models.RideCompleted, models.RideCancelled},
	models.RideOngoing:   {models.RideCompleted, models.RideCancelled},
}

// CanTransition reports whether a ride may move from one status to another.
func CanTransition(from, to models.RideStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
