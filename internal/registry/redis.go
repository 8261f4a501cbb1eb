package registry

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

const (
	geoKey     = "dispatch:drivers_geo"
	idSetKey   = "dispatch:drivers"
	metaPrefix = "dispatch:driver:"
)

// reserveScript performs the available -> on_ride compare-and-set server
// side so concurrent reservations of the same driver are serialized by
// Redis itself.
var reserveScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "status") == "available" then
    redis.call("HSET", KEYS[1], "status", "on_ride")
    return 1
end
return 0
`)

// Redis implements Registry on a shared Redis instance: GEO index for
// positions, one hash per driver for metadata and availability.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c}
}

func metaKey(id string) string { return metaPrefix + id }

func (r *Redis) Upsert(ctx context.Context, d models.Driver) error {
	if d.Status == "" {
		d.Status = models.DriverAvailable
	}
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, idSetKey, d.ID)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: d.Loc.Lng, Latitude: d.Loc.Lat, Name: d.ID})
	pipe.HSet(ctx, metaKey(d.ID), map[string]interface{}{
		"name":         d.Name,
		"phone":        d.Phone,
		"vehicle_type": d.VehicleType,
		"plate_number": d.PlateNumber,
		"status":       string(d.Status),
		"updated":      time.Now().Format(time.RFC3339),
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Get(ctx context.Context, driverID string) (models.Driver, error) {
	meta, err := r.client.HGetAll(ctx, metaKey(driverID)).Result()
	if err != nil {
		return models.Driver{}, err
	}
	if len(meta) == 0 {
		return models.Driver{}, ErrUnknownDriver
	}
	d := driverFromMeta(driverID, meta)
	if pos, err := r.client.GeoPos(ctx, geoKey, driverID).Result(); err == nil && len(pos) > 0 && pos[0] != nil {
		d.Loc = models.Coord{Lat: pos[0].Latitude, Lng: pos[0].Longitude}
	}
	return d, nil
}

func (r *Redis) ListAvailable(ctx context.Context) ([]models.Driver, error) {
	ids, err := r.client.SMembers(ctx, idSetKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]models.Driver, 0, len(ids))
	for _, id := range ids {
		d, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		if d.Status == models.DriverAvailable {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *Redis) TryReserve(ctx context.Context, driverID string) (bool, error) {
	exists, err := r.client.SIsMember(ctx, idSetKey, driverID).Result()
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrUnknownDriver
	}
	n, err := reserveScript.Run(ctx, r.client, []string{metaKey(driverID)}).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) Release(ctx context.Context, driverID string) error {
	exists, err := r.client.SIsMember(ctx, idSetKey, driverID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return ErrUnknownDriver
	}
	return r.client.HSet(ctx, metaKey(driverID), "status", string(models.DriverAvailable)).Err()
}

func (r *Redis) SetStatus(ctx context.Context, driverID string, status models.DriverStatus) error {
	exists, err := r.client.SIsMember(ctx, idSetKey, driverID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return ErrUnknownDriver
	}
	return r.client.HSet(ctx, metaKey(driverID), "status", string(status)).Err()
}

func (r *Redis) UpdateLocation(ctx context.Context, driverID string, c models.Coord) error {
	pipe := r.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: c.Lng, Latitude: c.Lat, Name: driverID})
	pipe.HSet(ctx, metaKey(driverID), "updated", time.Now().Format(time.RFC3339))
	_, err := pipe.Exec(ctx)
	return err
}

func driverFromMeta(id string, meta map[string]string) models.Driver {
	d := models.Driver{
		ID:          id,
		Name:        meta["name"],
		Phone:       meta["phone"],
		VehicleType: meta["vehicle_type"],
		PlateNumber: meta["plate_number"],
		Status:      models.DriverStatus(meta["status"]),
	}
	if ts, err := time.Parse(time.RFC3339, meta["updated"]); err == nil {
		d.Updated = ts
	}
	return d
}
