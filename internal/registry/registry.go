// Package registry tracks driver location and availability. TryReserve is
// the concurrency-critical primitive: the available -> on_ride transition
// must be linearizable so two rides can never book the same driver.
package registry

import (
	"context"
	"errors"

	"github.com/example/ride-dispatch/internal/models"
)

var ErrUnknownDriver = errors.New("unknown driver")

type Registry interface {
	// Upsert creates or replaces a driver record.
	Upsert(ctx context.Context, d models.Driver) error
	Get(ctx context.Context, driverID string) (models.Driver, error)

	// ListAvailable returns a snapshot of drivers currently in the
	// available state. Order is stable for a given snapshot; the engine's
	// tie-break relies on it.
	ListAvailable(ctx context.Context) ([]models.Driver, error)

	// TryReserve atomically moves a driver from available to on_ride.
	// It returns false with no mutation if the driver is no longer
	// available.
	TryReserve(ctx context.Context, driverID string) (bool, error)

	// Release moves a driver back to available. Idempotent if the driver
	// is already available.
	Release(ctx context.Context, driverID string) error

	// SetStatus applies an explicit external status command.
	SetStatus(ctx context.Context, driverID string, status models.DriverStatus) error

	// UpdateLocation records a position report. Availability is untouched.
	UpdateLocation(ctx context.Context, driverID string, c models.Coord) error
}
