package eta

import (
	"context"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// Estimator produces a travel-time and distance estimate between two points.
type Estimator interface {
	Estimate(ctx context.Context, origin, dest models.Coord) (etaMinutes, distanceKm float64, err error)
}

// HaversineEstimator is the straight-line fallback: great-circle distance
// and a fixed-speed ETA. It never fails.
type HaversineEstimator struct{}

func (HaversineEstimator) Estimate(_ context.Context, origin, dest models.Coord) (float64, float64, error) {
	d := geo.DistanceKm(origin, dest)
	return geo.EtaMinutes(d), d, nil
}
