package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

type testEntity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int64  `json:"version"`
}

func (e *testEntity) CurrentVersion() int64 { return e.Version }
func (e *testEntity) SetVersion(v int64)    { e.Version = v }

func TestPutGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	in := testEntity{ID: "e1", Name: "alpha"}
	require.NoError(t, s.Put(ctx, Key("profile", "e1"), in, TTLProfile))

	var out testEntity
	found, err := s.Get(ctx, Key("profile", "e1"), &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetMissIsNotAnError(t *testing.T) {
	s, _ := newTestStore(t)

	var out testEntity
	found, err := s.Get(context.Background(), Key("listing", "nope"), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTTLExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Key("listing", "l1"), testEntity{ID: "l1"}, TTLListing))
	mr.FastForward(2 * time.Hour)

	var out testEntity
	found, err := s.Get(ctx, Key("listing", "l1"), &out)
	require.NoError(t, err)
	assert.False(t, found, "entry should have expired")
}

func TestGeoRadiusNearestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Distances from San Francisco: Oakland ~13km, San Jose ~67km, LA ~560km.
	require.NoError(t, s.GeoAdd(ctx, GeoIndexListings, -118.2437, 34.0522, "la"))
	require.NoError(t, s.GeoAdd(ctx, GeoIndexListings, -122.2712, 37.8044, "oakland"))
	require.NoError(t, s.GeoAdd(ctx, GeoIndexListings, -121.8863, 37.3382, "sanjose"))

	members, err := s.GeoRadius(ctx, GeoIndexListings, -122.4194, 37.7749, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"oakland", "sanjose"}, members)

	// Count bound applies.
	members, err = s.GeoRadius(ctx, GeoIndexListings, -122.4194, 37.7749, 1000, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"oakland"}, members)
}

func TestGeoRemoveAndMembers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.GeoAdd(ctx, GeoIndexListings, -122.2712, 37.8044, "a"))
	require.NoError(t, s.GeoAdd(ctx, GeoIndexListings, -121.8863, 37.3382, "b"))
	require.NoError(t, s.GeoRemove(ctx, GeoIndexListings, "a"))

	members, err := s.GeoMembers(ctx, GeoIndexListings)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestSetNXGuard(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.SetNX(ctx, Key("match_txn", "m1"), "t1", TTLTransaction)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, Key("match_txn", "m1"), "t2", TTLTransaction)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutVersionedConflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := Key("transaction", "t1")

	fresh := &testEntity{ID: "t1", Name: "one"}
	require.NoError(t, s.PutVersioned(ctx, key, fresh, TTLTransaction))
	assert.Equal(t, int64(1), fresh.Version)

	// A second writer holding the stale version must be rejected, and the
	// rejection must not touch its version.
	stale := &testEntity{ID: "t1", Name: "two", Version: 0}
	err := s.PutVersioned(ctx, key, stale, TTLTransaction)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, int64(0), stale.Version)

	// The current holder can keep writing.
	fresh.Name = "three"
	require.NoError(t, s.PutVersioned(ctx, key, fresh, TTLTransaction))
	assert.Equal(t, int64(2), fresh.Version)
}

type unmarshalableEntity struct {
	testEntity
}

func (e *unmarshalableEntity) MarshalJSON() ([]byte, error) {
	return nil, errors.New("no wire form")
}

func TestPutVersionedFailedWriteRestoresVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	bad := &unmarshalableEntity{testEntity{ID: "t1"}}
	err := s.PutVersioned(ctx, Key("transaction", "t1"), bad, TTLTransaction)
	require.Error(t, err)
	assert.Equal(t, int64(0), bad.Version, "a failed write must not advance the caller's version")
}

func TestPushListNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := "barter:notifications:u1"

	require.NoError(t, s.PushList(ctx, key, "n1", TTLNotification))
	require.NoError(t, s.PushList(ctx, key, "n2", TTLNotification))
	require.NoError(t, s.PushList(ctx, key, "n3", TTLNotification))

	vals, err := s.RangeList(ctx, key, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"n3", "n2"}, vals)

	vals, err = s.RangeList(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"n3", "n2", "n1"}, vals)
}
