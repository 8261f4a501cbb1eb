package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/rides"
)

type submitRideRequest struct {
	RiderID     string        `json:"rider_id"`
	Pickup      *models.Coord `json:"pickup,omitempty"`
	Dropoff     *models.Coord `json:"dropoff,omitempty"`
	PickupAddr  string        `json:"pickup_addr,omitempty"`
	DropoffAddr string        `json:"dropoff_addr,omitempty"`
}

type rideResponse struct {
	Ride       *models.RideRequest `json:"ride"`
	Assignment *models.Assignment  `json:"assignment,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (s *Server) handleSubmitRide(w http.ResponseWriter, r *http.Request) {
	var req submitRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RiderID == "" {
		http.Error(w, "rider_id is required", http.StatusBadRequest)
		return
	}

	ride, asg, err := s.Engine.SubmitRide(r.Context(), &models.RideRequest{
		RiderID:     req.RiderID,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		PickupAddr:  req.PickupAddr,
		DropoffAddr: req.DropoffAddr,
	})
	switch {
	case errors.Is(err, dispatch.ErrMissingCoordinates):
		writeJSON(w, http.StatusUnprocessableEntity, rideResponse{Ride: ride, Error: err.Error()})
	case errors.Is(err, dispatch.ErrNoDriverAvailable):
		writeJSON(w, http.StatusConflict, rideResponse{Ride: ride, Error: err.Error()})
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusCreated, rideResponse{Ride: ride, Assignment: asg})
	}
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	all, err := s.Rides.List(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.Get(r.Context(), mux.Vars(r)["ride_id"])
	if errors.Is(err, rides.ErrNotFound) {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler(w, r, s.Engine.CancelRide)
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler(w, r, s.Engine.StartRide)
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler(w, r, s.Engine.CompleteRide)
}

// lifecycleHandler runs a ride lifecycle operation and maps its errors to
// HTTP statuses shared by cancel/start/complete.
func (s *Server) lifecycleHandler(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, rideID string) (*models.RideRequest, error)) {
	ride, err := op(r.Context(), mux.Vars(r)["ride_id"])
	switch {
	case errors.Is(err, rides.ErrNotFound):
		http.Error(w, "ride not found", http.StatusNotFound)
	case errors.Is(err, rides.ErrBadTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, ride)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleUpsertDriver(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if d.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if d.Status != "" && !d.Status.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	if err := s.Registry.Upsert(r.Context(), d); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.Registry.ListAvailable(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := s.Registry.Get(r.Context(), mux.Vars(r)["driver_id"])
	if errors.Is(err, registry.ErrUnknownDriver) {
		http.Error(w, "driver not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.DriverStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !body.Status.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	driverID := mux.Vars(r)["driver_id"]
	err := s.Registry.SetStatus(r.Context(), driverID, body.Status)
	if errors.Is(err, registry.ErrUnknownDriver) {
		http.Error(w, "driver not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var body models.Coord
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	driverID := mux.Vars(r)["driver_id"]
	err := s.Registry.UpdateLocation(r.Context(), driverID, body)
	if errors.Is(err, registry.ErrUnknownDriver) {
		http.Error(w, "driver not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if s.Kafka != nil {
		update := ingest.LocationUpdate{DriverID: driverID, Lat: body.Lat, Lng: body.Lng}
		if err := s.Kafka.PublishLocation(r.Context(), update); err != nil {
			s.logger.Warn("publishing location update failed", "driver_id", driverID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(driverID, conn)
}
