package rides

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/models"
)

// PostgresStore persists rides in a relational table. Bind and SetStatus use
// conditional UPDATEs so state transitions stay atomic without row locks held
// in the application.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const rideColumns = `id, rider_id, driver_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	pickup_addr, dropoff_addr, status, requested_at, assigned_at, est_distance_km, est_duration_min`

func (p *PostgresStore) Create(ctx context.Context, r *models.RideRequest) (*models.RideRequest, error) {
	cp := *r
	if cp.ID == "" {
		b := make([]byte, 8)
		_, _ = rand.Read(b)
		cp.ID = hex.EncodeToString(b)
	}
	cp.Status = models.RideRequested
	cp.RequestedAt = time.Now()

	var pickupLat, pickupLng, dropLat, dropLng sql.NullFloat64
	if cp.Pickup != nil {
		pickupLat = sql.NullFloat64{Float64: cp.Pickup.Lat, Valid: true}
		pickupLng = sql.NullFloat64{Float64: cp.Pickup.Lng, Valid: true}
	}
	if cp.Dropoff != nil {
		dropLat = sql.NullFloat64{Float64: cp.Dropoff.Lat, Valid: true}
		dropLng = sql.NullFloat64{Float64: cp.Dropoff.Lng, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(id, rider_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, pickup_addr, dropoff_addr, status, requested_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		cp.ID, cp.RiderID, pickupLat, pickupLng, dropLat, dropLng, cp.PickupAddr, cp.DropoffAddr, string(cp.Status), cp.RequestedAt)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (p *PostgresStore) Get(ctx context.Context, rideID string) (*models.RideRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1`, rideID)
	return scanRide(row)
}

func (p *PostgresStore) List(ctx context.Context) ([]*models.RideRequest, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+rideColumns+` FROM rides ORDER BY requested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.RideRequest
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Bind(ctx context.Context, rideID, driverID string) (*models.RideRequest, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET driver_id=$1, status=$2, assigned_at=NOW()
		WHERE id=$3 AND status=$4`,
		driverID, string(models.RideAssigned), rideID, string(models.RideRequested))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := p.Get(ctx, rideID); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyBound
	}
	return p.Get(ctx, rideID)
}

func (p *PostgresStore) SetStatus(ctx context.Context, rideID string, status models.RideStatus) (*models.RideRequest, error) {
	cur, err := p.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur.Status, status)
	}
	// Guard on the observed status so a concurrent transition loses cleanly.
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET status=$1 WHERE id=$2 AND status=$3`,
		string(status), rideID, string(cur.Status))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: concurrent update on %s", ErrBadTransition, rideID)
	}
	return p.Get(ctx, rideID)
}

func (p *PostgresStore) SetTripEstimate(ctx context.Context, rideID string, distanceKm, durationMin float64) error {
	_, err := p.db.ExecContext(ctx, `UPDATE rides SET est_distance_km=$1, est_duration_min=$2 WHERE id=$3`,
		distanceKm, durationMin, rideID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.RideRequest, error) {
	var r models.RideRequest
	var driverID, pickupAddr, dropoffAddr sql.NullString
	var pickupLat, pickupLng, dropLat, dropLng, estDist, estDur sql.NullFloat64
	var assignedAt sql.NullTime
	var status string

	err := row.Scan(&r.ID, &r.RiderID, &driverID, &pickupLat, &pickupLng, &dropLat, &dropLng,
		&pickupAddr, &dropoffAddr, &status, &r.RequestedAt, &assignedAt, &estDist, &estDur)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Status = models.RideStatus(status)
	r.DriverID = driverID.String
	r.PickupAddr = pickupAddr.String
	r.DropoffAddr = dropoffAddr.String
	if pickupLat.Valid && pickupLng.Valid {
		r.Pickup = &models.Coord{Lat: pickupLat.Float64, Lng: pickupLng.Float64}
	}
	if dropLat.Valid && dropLng.Valid {
		r.Dropoff = &models.Coord{Lat: dropLat.Float64, Lng: dropLng.Float64}
	}
	if assignedAt.Valid {
		t := assignedAt.Time
		r.AssignedAt = &t
	}
	if estDist.Valid {
		v := estDist.Float64
		r.EstimatedDistanceKm = &v
	}
	if estDur.Valid {
		v := estDur.Float64
		r.EstimatedDurationMin = &v
	}
	return &r, nil
}
