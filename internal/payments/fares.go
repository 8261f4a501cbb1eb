// Package payments implements the optional fare flow: a hold is placed when
// a driver is assigned, captured on completion, released on cancellation.
package payments

import (
	"context"
	"fmt"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/ride-dispatch/internal/models"
)

// Fare schedule in minor currency units.
const (
	baseFareCents    = 250
	centsPerKm       = 120
	centsPerMinute   = 30
	minimumFareCents = 300
)

// FareCents computes the estimated fare for a ride from its trip estimates.
// Rides without estimates are charged the minimum.
func FareCents(ride *models.RideRequest) int64 {
	total := int64(baseFareCents)
	if ride.EstimatedDistanceKm != nil {
		total += int64(*ride.EstimatedDistanceKm * centsPerKm)
	}
	if ride.EstimatedDurationMin != nil {
		total += int64(*ride.EstimatedDurationMin * centsPerMinute)
	}
	if total < minimumFareCents {
		total = minimumFareCents
	}
	return total
}

// StripeProcessor backs the fare flow with Stripe PaymentIntents using
// manual capture. Intent IDs are tracked per ride so capture and cancel can
// find the hold later.
type StripeProcessor struct {
	currency string

	mu      sync.Mutex
	intents map[string]string // ride ID -> payment intent ID
}

func NewStripeProcessor(apiKey, currency string) *StripeProcessor {
	stripe.Key = apiKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeProcessor{currency: currency, intents: make(map[string]string)}
}

func (s *StripeProcessor) Hold(_ context.Context, ride *models.RideRequest) error {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(FareCents(ride)),
		Currency:      stripe.String(s.currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.intents[ride.ID] = pi.ID
	s.mu.Unlock()
	return nil
}

func (s *StripeProcessor) Capture(_ context.Context, rideID string) error {
	id, ok := s.take(rideID)
	if !ok {
		return fmt.Errorf("no fare hold for ride %s", rideID)
	}
	_, err := paymentintent.Capture(id, nil)
	return err
}

func (s *StripeProcessor) Cancel(_ context.Context, rideID string) error {
	id, ok := s.take(rideID)
	if !ok {
		// No hold placed (e.g. ride never assigned); nothing to release.
		return nil
	}
	_, err := paymentintent.Cancel(id, nil)
	return err
}

func (s *StripeProcessor) take(rideID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.intents[rideID]
	if ok {
		delete(s.intents, rideID)
	}
	return id, ok
}
