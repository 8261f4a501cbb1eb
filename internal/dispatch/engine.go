// Package dispatch contains the engine that matches ride requests to
// available drivers and the channels used to notify drivers of offers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/ride-dispatch/internal/eta"
	"github.com/example/ride-dispatch/internal/identity"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/rides"
)

// Score weights. Distance dominates, ETA is secondary, and requester
// priority grants an additive discount that can outweigh a moderate
// distance or time disadvantage.
const (
	weightDistance = 1.0
	weightEta      = 0.3
	weightPriority = 0.5
)

var (
	// ErrMissingCoordinates means the ride has no pickup position; the
	// caller must supply one before resubmitting.
	ErrMissingCoordinates = errors.New("pickup coordinates missing")

	// ErrNoDriverAvailable means no candidate could be reserved. The ride
	// stays in requested state; retry is a caller decision.
	ErrNoDriverAvailable = errors.New("no driver available")
)

// Notifier pushes an assignment offer to the chosen driver. Delivery is
// best-effort; a failed notification never undoes an assignment.
type Notifier interface {
	Offer(driverID string, a models.Assignment) error
}

// FareProcessor places a hold on the rider's payment method at assignment
// and settles it when the ride ends. All calls are best-effort from the
// engine's perspective.
type FareProcessor interface {
	Hold(ctx context.Context, ride *models.RideRequest) error
	Capture(ctx context.Context, rideID string) error
	Cancel(ctx context.Context, rideID string) error
}

// Engine orchestrates a ride request through matching, scoring and atomic
// assignment against the driver registry and ride store.
type Engine struct {
	Registry  registry.Registry
	Rides     rides.Store
	Estimator eta.Estimator
	Identity  identity.PriorityResolver
	Notifier  Notifier      // optional
	Fares     FareProcessor // optional
	Logger    *slog.Logger
}

func NewEngine(reg registry.Registry, store rides.Store, est eta.Estimator, ident identity.PriorityResolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Registry: reg, Rides: store, Estimator: est, Identity: ident, Logger: logger}
}

// SubmitRide creates a ride request and immediately attempts to match it.
// On a matching failure the ride is still created and stays in requested
// state; the error tells the caller why.
func (e *Engine) SubmitRide(ctx context.Context, req *models.RideRequest) (*models.RideRequest, *models.Assignment, error) {
	ride, err := e.Rides.Create(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("create ride: %w", err)
	}
	asg, err := e.Match(ctx, ride)
	if err != nil {
		return ride, nil, err
	}
	ride, err = e.Rides.Get(ctx, ride.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload ride: %w", err)
	}
	return ride, asg, nil
}

type scoredCandidate struct {
	driver     models.Driver
	etaMinutes float64
	distanceKm float64
	score      float64
}

// Match selects and binds the best available driver for a ride with known
// pickup coordinates. Estimates are gathered before any reservation is
// attempted so no driver is held across an external call.
func (e *Engine) Match(ctx context.Context, ride *models.RideRequest) (*models.Assignment, error) {
	start := time.Now()

	if ride.Pickup == nil {
		observability.MatchFailuresTotal.WithLabelValues("missing_coordinates").Inc()
		return nil, ErrMissingCoordinates
	}

	candidates, err := e.Registry.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available drivers: %w", err)
	}
	if len(candidates) == 0 {
		observability.MatchFailuresTotal.WithLabelValues("no_driver").Inc()
		return nil, ErrNoDriverAvailable
	}

	priority := e.Identity.RequesterPriority(ctx, ride.RiderID)

	ranked := make([]scoredCandidate, 0, len(candidates))
	for _, d := range candidates {
		etaMin, distKm, err := e.Estimator.Estimate(ctx, d.Loc, *ride.Pickup)
		if err != nil {
			// The provider absorbs routing failures; an error here is a
			// programming fault in a test double. Skip the candidate.
			e.Logger.Error("estimator returned error", "driver_id", d.ID, "error", err)
			continue
		}
		ranked = append(ranked, scoredCandidate{
			driver:     d,
			etaMinutes: etaMin,
			distanceKm: distKm,
			score:      score(distKm, etaMin, priority),
		})
	}

	// Ties break by candidate listing order: stable sort keeps the first
	// listed driver ahead of an equal-scoring later one.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	// Walk the ranked list; a reservation can fail if a concurrent match
	// took the driver after our snapshot, in which case the next-best
	// candidate is tried.
	for _, c := range ranked {
		reserved, err := e.Registry.TryReserve(ctx, c.driver.ID)
		if err != nil {
			if errors.Is(err, registry.ErrUnknownDriver) {
				continue
			}
			return nil, fmt.Errorf("reserve driver %s: %w", c.driver.ID, err)
		}
		if !reserved {
			continue
		}

		bound, err := e.Rides.Bind(ctx, ride.ID, c.driver.ID)
		if err != nil {
			// Compensating action: the driver must not stay on_ride with
			// no bound ride.
			if relErr := e.Registry.Release(ctx, c.driver.ID); relErr != nil {
				e.Logger.Error("compensating release failed", "driver_id", c.driver.ID, "error", relErr)
			}
			if errors.Is(err, rides.ErrAlreadyBound) {
				observability.MatchFailuresTotal.WithLabelValues("already_bound").Inc()
				e.Logger.Error("lifecycle invariant violated: ride already bound", "ride_id", ride.ID)
			}
			return nil, fmt.Errorf("bind ride %s: %w", ride.ID, err)
		}

		e.finalizeAssignment(ctx, bound, c)

		observability.MatchesTotal.Inc()
		observability.MatchLatency.Observe(time.Since(start).Seconds())
		e.Logger.Info("ride assigned",
			"ride_id", ride.ID,
			"driver_id", c.driver.ID,
			"score", c.score,
			"eta_minutes", c.etaMinutes,
			"distance_km", c.distanceKm,
		)
		return &models.Assignment{
			RideID:     ride.ID,
			DriverID:   c.driver.ID,
			Score:      c.score,
			EtaMinutes: c.etaMinutes,
			DistanceKm: c.distanceKm,
		}, nil
	}

	observability.MatchFailuresTotal.WithLabelValues("no_driver").Inc()
	return nil, ErrNoDriverAvailable
}

// finalizeAssignment does the best-effort work that follows a successful
// bind: trip estimates for the dropoff leg, fare hold, driver notification.
// None of these can undo the assignment.
func (e *Engine) finalizeAssignment(ctx context.Context, ride *models.RideRequest, c scoredCandidate) {
	if ride.Pickup != nil && ride.Dropoff != nil {
		etaMin, distKm, err := e.Estimator.Estimate(ctx, *ride.Pickup, *ride.Dropoff)
		if err == nil {
			if err := e.Rides.SetTripEstimate(ctx, ride.ID, distKm, etaMin); err != nil {
				e.Logger.Warn("storing trip estimate failed", "ride_id", ride.ID, "error", err)
			} else {
				ride.EstimatedDistanceKm = &distKm
				ride.EstimatedDurationMin = &etaMin
			}
		}
	}

	if e.Fares != nil {
		if err := e.Fares.Hold(ctx, ride); err != nil {
			e.Logger.Warn("fare hold failed", "ride_id", ride.ID, "error", err)
		}
	}

	if e.Notifier != nil {
		offer := models.Assignment{
			RideID:     ride.ID,
			DriverID:   ride.DriverID,
			Score:      c.score,
			EtaMinutes: c.etaMinutes,
			DistanceKm: c.distanceKm,
		}
		if err := e.Notifier.Offer(ride.DriverID, offer); err != nil {
			e.Logger.Warn("driver notification failed", "driver_id", ride.DriverID, "error", err)
		}
	}
}

// CancelRide cancels a non-terminal ride. A bound driver is released
// synchronously before the cancellation returns.
func (e *Engine) CancelRide(ctx context.Context, rideID string) (*models.RideRequest, error) {
	cancelled, err := e.Rides.SetStatus(ctx, rideID, models.RideCancelled)
	if err != nil {
		return nil, err
	}
	if cancelled.DriverID != "" {
		if err := e.Registry.Release(ctx, cancelled.DriverID); err != nil {
			return nil, fmt.Errorf("release driver %s: %w", cancelled.DriverID, err)
		}
	}
	if e.Fares != nil {
		if err := e.Fares.Cancel(ctx, rideID); err != nil {
			e.Logger.Warn("fare cancel failed", "ride_id", rideID, "error", err)
		}
	}
	e.Logger.Info("ride cancelled", "ride_id", rideID, "driver_id", cancelled.DriverID)
	return cancelled, nil
}

// StartRide marks an assigned ride as ongoing (trip started).
func (e *Engine) StartRide(ctx context.Context, rideID string) (*models.RideRequest, error) {
	return e.Rides.SetStatus(ctx, rideID, models.RideOngoing)
}

// CompleteRide finishes a ride and returns its driver to the available
// pool.
func (e *Engine) CompleteRide(ctx context.Context, rideID string) (*models.RideRequest, error) {
	done, err := e.Rides.SetStatus(ctx, rideID, models.RideCompleted)
	if err != nil {
		return nil, err
	}
	if done.DriverID != "" {
		if err := e.Registry.Release(ctx, done.DriverID); err != nil {
			return nil, fmt.Errorf("release driver %s: %w", done.DriverID, err)
		}
	}
	if e.Fares != nil {
		if err := e.Fares.Capture(ctx, rideID); err != nil {
			e.Logger.Warn("fare capture failed", "ride_id", rideID, "error", err)
		}
	}
	e.Logger.Info("ride completed", "ride_id", rideID, "driver_id", done.DriverID)
	return done, nil
}

func score(distanceKm, etaMinutes float64, priority int) float64 {
	return distanceKm*weightDistance + etaMinutes*weightEta - float64(priority)*weightPriority
}
