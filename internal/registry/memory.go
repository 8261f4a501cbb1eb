package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// Memory is the in-process Registry used by default and in tests. A single
// mutex serializes all state transitions, which makes TryReserve a
// straightforward compare-and-set.
type Memory struct {
	mu      sync.Mutex
	drivers map[string]models.Driver
}

func NewMemory() *Memory {
	return &Memory{drivers: make(map[string]models.Driver)}
}

func (m *Memory) Upsert(_ context.Context, d models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Updated = time.Now()
	if d.Status == "" {
		d.Status = models.DriverAvailable
	}
	m.drivers[d.ID] = d
	m.refreshGauge()
	return nil
}

func (m *Memory) Get(_ context.Context, driverID string) (models.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return models.Driver{}, ErrUnknownDriver
	}
	return d, nil
}

// ListAvailable returns available drivers sorted by ID so the snapshot
// order is deterministic across calls.
func (m *Memory) ListAvailable(_ context.Context) ([]models.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		if d.Status == models.DriverAvailable {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TryReserve(_ context.Context, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return false, ErrUnknownDriver
	}
	if d.Status != models.DriverAvailable {
		return false, nil
	}
	d.Status = models.DriverOnRide
	d.Updated = time.Now()
	m.drivers[driverID] = d
	m.refreshGauge()
	return true, nil
}

func (m *Memory) Release(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrUnknownDriver
	}
	if d.Status == models.DriverAvailable {
		return nil
	}
	d.Status = models.DriverAvailable
	d.Updated = time.Now()
	m.drivers[driverID] = d
	m.refreshGauge()
	return nil
}

func (m *Memory) SetStatus(_ context.Context, driverID string, status models.DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrUnknownDriver
	}
	d.Status = status
	d.Updated = time.Now()
	m.drivers[driverID] = d
	m.refreshGauge()
	return nil
}

func (m *Memory) UpdateLocation(_ context.Context, driverID string, c models.Coord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrUnknownDriver
	}
	d.Loc = c
	d.Updated = time.Now()
	m.drivers[driverID] = d
	return nil
}

// caller must hold m.mu
func (m *Memory) refreshGauge() {
	n := 0
	for _, d := range m.drivers {
		if d.Status == models.DriverAvailable {
			n++
		}
	}
	observability.DriversAvailable.Set(float64(n))
}
