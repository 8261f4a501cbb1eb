package eta

import (
	"context"
	"log/slog"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// Provider is the travel-time estimator handed to the dispatch engine.
// It tries the live routing client first and falls back to the haversine
// estimate on any failure; callers never observe an error, only a possibly
// less accurate result.
type Provider struct {
	routing  Estimator // nil when no routing service is configured
	fallback HaversineEstimator
	cache    *Cache // optional
	logger   *slog.Logger
}

// NewProvider builds a provider around an optional routing client. Passing a
// nil routing estimator yields the permanent-fallback variant used when no
// routing endpoint or credential is configured.
func NewProvider(routing Estimator, cache *Cache, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{routing: routing, cache: cache, logger: logger}
}

func (p *Provider) Estimate(ctx context.Context, origin, dest models.Coord) (float64, float64, error) {
	if p.cache != nil {
		if etaMin, distKm, ok := p.cache.Get(origin, dest); ok {
			return etaMin, distKm, nil
		}
	}
	if p.routing != nil {
		etaMin, distKm, err := p.routing.Estimate(ctx, origin, dest)
		if err == nil {
			if p.cache != nil {
				p.cache.Set(origin, dest, etaMin, distKm)
			}
			return etaMin, distKm, nil
		}
		observability.EtaFallbacksTotal.Inc()
		p.logger.Warn("routing estimate failed, using haversine fallback", "error", err)
	}
	return p.fallback.Estimate(ctx, origin, dest)
}
