package store

import (
	"context"
	"errors"
	"time"
)

// TTL policy per entity class. Listings and matches churn quickly; profiles
// and transactions are longer-lived; notifications stick around a week.
const (
	TTLListing      = time.Hour
	TTLMatch        = time.Hour
	TTLProfile      = 24 * time.Hour
	TTLTransaction  = 24 * time.Hour
	TTLNotification = 7 * 24 * time.Hour
)

// GeoIndexListings is the single geospatial index holding listing ids.
const GeoIndexListings = "barter:geo:listings"

// ErrVersionConflict is returned by PutVersioned when the stored entity has
// moved past the version the caller read.
var ErrVersionConflict = errors.New("store: version conflict")

// Key builds the namespaced storage key for an entity.
func Key(entityType, id string) string {
	return "barter:" + entityType + ":" + id
}

// Versioned is implemented by entities guarded by optimistic concurrency.
// The store owns the version counter: it advances it on successful writes
// and restores it when a write fails.
type Versioned interface {
	CurrentVersion() int64
	SetVersion(v int64)
}

// Store is the cache and geo-index contract the engine runs against.
// A missing key is (false, nil), never an error: entries are allowed to
// expire, and callers treat a miss as "not currently available".
type Store interface {
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, key string) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// PutVersioned writes value only if the stored copy still carries the
	// version the caller read; otherwise it returns ErrVersionConflict.
	PutVersioned(ctx context.Context, key string, value Versioned, ttl time.Duration) error

	GeoAdd(ctx context.Context, index string, lon, lat float64, member string) error
	// GeoRadius returns up to limit member ids within radiusKm of the given
	// point, nearest first.
	GeoRadius(ctx context.Context, index string, lon, lat, radiusKm float64, limit int) ([]string, error)
	GeoRemove(ctx context.Context, index string, member string) error
	GeoMembers(ctx context.Context, index string) ([]string, error)

	PushList(ctx context.Context, key, member string, ttl time.Duration) error
	// RangeList returns up to limit members, newest first.
	RangeList(ctx context.Context, key string, limit int64) ([]string, error)
}
