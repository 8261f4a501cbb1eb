package rides

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

type MemoryStore struct {
	mu    sync.Mutex
	rides map[string]*models.RideRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]*models.RideRequest)}
}

func (m *MemoryStore) Create(_ context.Context, r *models.RideRequest) (*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	if cp.ID == "" {
		cp.ID = newID()
	}
	cp.Status = models.RideRequested
	cp.RequestedAt = time.Now()
	m.rides[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) Get(_ context.Context, rideID string) (*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.RideRequest, 0, len(m.rides))
	for _, r := range m.rides {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (m *MemoryStore) Bind(_ context.Context, rideID, driverID string) (*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RideRequested {
		return nil, ErrAlreadyBound
	}
	now := time.Now()
	r.DriverID = driverID
	r.Status = models.RideAssigned
	r.AssignedAt = &now
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, rideID string, status models.RideStatus) (*models.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(r.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, r.Status, status)
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) SetTripEstimate(_ context.Context, rideID string, distanceKm, durationMin float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	r.EstimatedDistanceKm = &distanceKm
	r.EstimatedDurationMin = &durationMin
	return nil
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
