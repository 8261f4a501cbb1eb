package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.ServerConfig{HTTPAddr: ":0", LogLevel: "error"}
	s, err := New(cfg, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("server setup: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func addTestDriver(t *testing.T, s *Server, id string, lat, lng float64) {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/drivers", models.Driver{
		ID: id, Loc: models.Coord{Lat: lat, Lng: lng}, Status: models.DriverAvailable,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upsert driver: status %d: %s", rec.Code, rec.Body)
	}
}

func TestSubmitRideEndToEnd(t *testing.T) {
	s := newTestServer(t)
	addTestDriver(t, s, "d1", 14.56, 120.99)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{
		"rider_id": "u1",
		"pickup":   models.Coord{Lat: 14.5649, Lng: 120.9933},
		"dropoff":  models.Coord{Lat: 14.6091, Lng: 121.0223},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body)
	}
	var resp rideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Assignment == nil || resp.Assignment.DriverID != "d1" {
		t.Fatalf("unexpected assignment: %+v", resp.Assignment)
	}
	if resp.Ride.Status != models.RideAssigned {
		t.Fatalf("ride status = %s, want assigned", resp.Ride.Status)
	}

	// The assigned ride is retrievable.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/rides/"+resp.Ride.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get ride: status %d", rec.Code)
	}

	// The driver is no longer available.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/d1", nil)
	var d models.Driver
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode driver: %v", err)
	}
	if d.Status != models.DriverOnRide {
		t.Fatalf("driver status = %s, want on_ride", d.Status)
	}
}

func TestSubmitRideNoDriversConflict(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{
		"rider_id": "u1",
		"pickup":   models.Coord{Lat: 14.5649, Lng: 120.9933},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	var resp rideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ride == nil || resp.Ride.Status != models.RideRequested {
		t.Fatalf("ride should remain requested: %+v", resp.Ride)
	}
}

func TestSubmitRideMissingPickupUnprocessable(t *testing.T) {
	s := newTestServer(t)
	addTestDriver(t, s, "d1", 14.56, 120.99)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{"rider_id": "u1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", rec.Code)
	}
}

func TestCancelRideReleasesDriverOverHTTP(t *testing.T) {
	s := newTestServer(t)
	addTestDriver(t, s, "d1", 14.56, 120.99)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{
		"rider_id": "u1",
		"pickup":   models.Coord{Lat: 14.5649, Lng: 120.9933},
	})
	var resp rideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/rides/%s/cancel", resp.Ride.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/d1", nil)
	var d models.Driver
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode driver: %v", err)
	}
	if d.Status != models.DriverAvailable {
		t.Fatalf("driver status = %s, want available after cancel", d.Status)
	}
}

func TestDriverStatusAndLocationEndpoints(t *testing.T) {
	s := newTestServer(t)
	addTestDriver(t, s, "d1", 14.56, 120.99)

	rec := doJSON(t, s, http.MethodPatch, "/api/v1/drivers/d1/status", map[string]string{"status": "inactive"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set status: %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, s, http.MethodPatch, "/api/v1/drivers/d1/location", models.Coord{Lat: 14.6, Lng: 121.0})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set location: %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/d1", nil)
	var d models.Driver
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode driver: %v", err)
	}
	if d.Status != models.DriverInactive {
		t.Fatalf("status = %s, want inactive", d.Status)
	}
	if d.Loc.Lat != 14.6 || d.Loc.Lng != 121.0 {
		t.Fatalf("location not applied: %+v", d.Loc)
	}

	// Inactive driver must not appear in the available list.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers", nil)
	var list []models.Driver
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty available list, got %d", len(list))
	}

	rec = doJSON(t, s, http.MethodPatch, "/api/v1/drivers/ghost/status", map[string]string{"status": "available"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown driver: %d, want 404", rec.Code)
	}
}
