package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

func seed(t *testing.T, m *Memory, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := m.Upsert(context.Background(), models.Driver{ID: id, Status: models.DriverAvailable}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
}

func TestTryReserveSingleWinner(t *testing.T) {
	m := NewMemory()
	seed(t, m, "d1")

	const racers = 32
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TryReserve(context.Background(), "d1")
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	d, err := m.Get(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != models.DriverOnRide {
		t.Fatalf("status = %s, want on_ride", d.Status)
	}
}

func TestTryReserveUnknownDriver(t *testing.T) {
	m := NewMemory()
	if _, err := m.TryReserve(context.Background(), "ghost"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestTryReserveNotAvailable(t *testing.T) {
	m := NewMemory()
	seed(t, m, "d1")
	if err := m.SetStatus(context.Background(), "d1", models.DriverInactive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	ok, err := m.TryReserve(context.Background(), "d1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatal("reserved an inactive driver")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	m := NewMemory()
	seed(t, m, "d1")
	if ok, _ := m.TryReserve(context.Background(), "d1"); !ok {
		t.Fatal("reserve failed")
	}
	for i := 0; i < 3; i++ {
		if err := m.Release(context.Background(), "d1"); err != nil {
			t.Fatalf("release pass %d: %v", i, err)
		}
	}
	d, _ := m.Get(context.Background(), "d1")
	if d.Status != models.DriverAvailable {
		t.Fatalf("status = %s, want available", d.Status)
	}
}

func TestListAvailableStableOrder(t *testing.T) {
	m := NewMemory()
	seed(t, m, "d3", "d1", "d2")
	if err := m.SetStatus(context.Background(), "d2", models.DriverOnRide); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := m.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "d1" || got[1].ID != "d3" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestUpdateLocationKeepsAvailability(t *testing.T) {
	m := NewMemory()
	seed(t, m, "d1")
	if ok, _ := m.TryReserve(context.Background(), "d1"); !ok {
		t.Fatal("reserve failed")
	}
	if err := m.UpdateLocation(context.Background(), "d1", models.Coord{Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("update location: %v", err)
	}
	d, _ := m.Get(context.Background(), "d1")
	if d.Status != models.DriverOnRide {
		t.Fatalf("location update changed status to %s", d.Status)
	}
	if d.Loc.Lat != 1 || d.Loc.Lng != 2 {
		t.Fatalf("location not updated: %+v", d.Loc)
	}
}

func TestConcurrentReserveDistinctDrivers(t *testing.T) {
	m := NewMemory()
	const n = 16
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("d%02d", i)
	}
	seed(t, m, ids...)

	// n workers each walk the full list and grab the first free driver;
	// every worker must end up with a distinct one.
	got := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				ok, err := m.TryReserve(context.Background(), id)
				if err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				if ok {
					got <- id
					return
				}
			}
			t.Error("worker found no free driver")
		}()
	}
	wg.Wait()
	close(got)

	seen := make(map[string]bool, n)
	for id := range got {
		if seen[id] {
			t.Fatalf("driver %s reserved twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("reserved %d distinct drivers, want %d", len(seen), n)
	}
}
