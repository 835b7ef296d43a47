package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store against a single Redis deployment. Values are
// stored as JSON; the geo index is a Redis geospatial set.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Ping reports whether the backing Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, b, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// PutVersioned performs an optimistic conditional write: the stored entity's
// version must equal the caller's copy or the write is rejected. The version
// advances only when the write commits; any failure leaves the caller's copy
// at the version it read.
func (r *Redis) PutVersioned(ctx context.Context, key string, value Versioned, ttl time.Duration) error {
	prev := value.CurrentVersion()
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cur struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(b, &cur); err != nil {
				return fmt.Errorf("unmarshal %s: %w", key, err)
			}
			if cur.Version != prev {
				return ErrVersionConflict
			}
		}
		value.SetVersion(prev + 1)
		out, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		value.SetVersion(prev)
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

func (r *Redis) GeoAdd(ctx context.Context, index string, lon, lat float64, member string) error {
	return r.client.GeoAdd(ctx, index, &redis.GeoLocation{
		Name:      member,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
}

func (r *Redis) GeoRadius(ctx context.Context, index string, lon, lat, radiusKm float64, limit int) ([]string, error) {
	locs, err := r.client.GeoRadius(ctx, index, lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(locs))
	for _, l := range locs {
		members = append(members, l.Name)
	}
	return members, nil
}

func (r *Redis) GeoRemove(ctx context.Context, index string, member string) error {
	return r.client.ZRem(ctx, index, member).Err()
}

func (r *Redis) GeoMembers(ctx context.Context, index string) ([]string, error) {
	return r.client.ZRange(ctx, index, 0, -1).Result()
}

func (r *Redis) PushList(ctx context.Context, key, member string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, member)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) RangeList(ctx context.Context, key string, limit int64) ([]string, error) {
	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	vals, err := r.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, err
	}
	// Members are appended oldest-first; callers want newest first.
	for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
		vals[i], vals[j] = vals[j], vals[i]
	}
	return vals, nil
}
