package barter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/barterhub/internal/culture"
	"github.com/sudo-init-do/barterhub/internal/notify"
	"github.com/sudo-init-do/barterhub/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.NewRedis(client)
	return NewEngine(st, notify.New(st, nil))
}

func sfLocation() Location {
	return Location{
		City:           "San Francisco",
		Country:        "US",
		Latitude:       floatPtr(37.7749),
		Longitude:      floatPtr(-122.4194),
		CulturalRegion: culture.RegionNorthAmerica,
	}
}

func testListing(providerID string) *BarterListing {
	l := yogaListing()
	l.ID = ""
	l.ProviderID = providerID
	l.Location = sfLocation()
	l.SessionDurationHours = 1.5
	return l
}

func testRequest(requesterID string) *BarterRequest {
	r := yogaRequest()
	r.ID = ""
	r.RequesterID = requesterID
	r.PreferredLocation = sfLocation()
	r.MaxDistanceKm = 50
	return r
}

func TestCreateListingAttachesCulturalAdaptation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.CreateListing(ctx, testListing("p1"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.Cultural)
	assert.Equal(t, culture.RegionNorthAmerica, created.Cultural.Region)
	assert.Equal(t, ListingActive, created.Status)

	// The listing is immediately searchable around its coordinates.
	results := e.SearchListings(ctx, sfLocation(), 10, "", "", 10)
	require.Len(t, results, 1)
	assert.Equal(t, created.ID, results[0].ID)
}

func TestSearchListingsWithoutCoordinates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateListing(ctx, testListing("p1"))
	require.NoError(t, err)

	results := e.SearchListings(ctx, Location{City: "San Francisco", Country: "US"}, 50, "", "", 10)
	assert.Empty(t, results)
}

func TestSearchListingsFilters(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	yoga := testListing("p1")
	cooking := testListing("p2")
	cooking.Category = CategoryCooking
	_, err := e.CreateListing(ctx, yoga)
	require.NoError(t, err)
	_, err = e.CreateListing(ctx, cooking)
	require.NoError(t, err)

	results := e.SearchListings(ctx, sfLocation(), 50, CategoryCooking, "", 10)
	require.Len(t, results, 1)
	assert.Equal(t, CategoryCooking, results[0].Category)

	// Region filter excludes mismatches.
	results = e.SearchListings(ctx, sfLocation(), 50, "", culture.RegionEastAsia, 10)
	assert.Empty(t, results)
}

func TestFindMatchesRankedAndCached(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	best := testListing("p1") // expert, virtual: scores highest
	weaker := testListing("p2")
	weaker.SkillLevel = SkillIntermediate // under preferred advanced
	weaker.VirtualAvailable = false

	_, err := e.CreateListing(ctx, best)
	require.NoError(t, err)
	_, err = e.CreateListing(ctx, weaker)
	require.NoError(t, err)

	r, err := e.CreateRequest(ctx, testRequest("u1"))
	require.NoError(t, err)

	matches, err := e.FindMatches(ctx, r, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Ranked by descending score, everything over the floor.
	assert.Equal(t, best.ID, matches[0].ListingID)
	assert.GreaterOrEqual(t, matches[0].CompatibilityScore, matches[1].CompatibilityScore)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.CompatibilityScore, MinScore)
		assert.Contains(t, []float64{0.6, 0.8, 1.0}, m.CulturalScore)
	}

	// Distance is carried when both sides have coordinates.
	require.NotNil(t, matches[0].DistanceKm)
	assert.Less(t, *matches[0].DistanceKm, 1.0)

	// Suggested duration: 8 required hours at 20 hours/week rounds up to 1.
	assert.Equal(t, 1, matches[0].Suggested.EstimatedDurationWeeks)
	assert.True(t, matches[0].Suggested.Virtual)

	// The top matches were cached and can be fetched back.
	cached, err := e.GetMatch(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, matches[0].CompatibilityScore, cached.CompatibilityScore)
}

func TestFindMatchesSkipsOwnListing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateListing(ctx, testListing("u1"))
	require.NoError(t, err)

	r, err := e.CreateRequest(ctx, testRequest("u1"))
	require.NoError(t, err)

	matches, err := e.FindMatches(ctx, r, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBuildMatchDiscardsBelowFloor(t *testing.T) {
	e := newTestEngine(t)

	l := testListing("p1")
	l.Category = CategoryCooking // no category credit
	l.SkillLevel = SkillBeginner // under preferred
	l.VirtualAvailable = false
	l.AvailableHoursPerWeek = 1 // under required hours
	l.BaseValuePerHour = 0      // no value balance

	r := testRequest("u1")
	assert.Nil(t, e.buildMatch(l, r))
}

func TestMatchStatusLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateListing(ctx, testListing("p1"))
	require.NoError(t, err)
	r, err := e.CreateRequest(ctx, testRequest("u1"))
	require.NoError(t, err)
	matches, err := e.FindMatches(ctx, r, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	id := matches[0].ID

	// Skipping straight to accepted is illegal from suggested.
	_, err = e.UpdateMatchStatus(ctx, id, MatchAccepted)
	assert.ErrorIs(t, err, ErrInvalid)

	for _, next := range []MatchStatus{MatchViewed, MatchContacted, MatchNegotiating, MatchAccepted} {
		m, err := e.UpdateMatchStatus(ctx, id, next)
		require.NoError(t, err)
		assert.Equal(t, next, m.Status)
	}

	_, err = e.UpdateMatchStatus(ctx, "missing", MatchViewed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func createSuggestedMatch(t *testing.T, e *Engine) *BarterMatch {
	t.Helper()
	ctx := context.Background()
	_, err := e.CreateListing(ctx, testListing("p1"))
	require.NoError(t, err)
	r, err := e.CreateRequest(ctx, testRequest("u1"))
	require.NoError(t, err)
	matches, err := e.FindMatches(ctx, r, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func createTestMatch(t *testing.T, e *Engine) *BarterMatch {
	t.Helper()
	ctx := context.Background()
	m := createSuggestedMatch(t, e)
	// Only accepted matches convert into transactions.
	_, err := e.UpdateMatchStatus(ctx, m.ID, MatchContacted)
	require.NoError(t, err)
	accepted, err := e.UpdateMatchStatus(ctx, m.ID, MatchAccepted)
	require.NoError(t, err)
	return accepted
}

func TestCreateTransactionSnapshotsBothSides(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)

	txn, err := e.CreateTransaction(ctx, m.ID, "", "")
	require.NoError(t, err)

	assert.Equal(t, m.ID, txn.MatchID)
	assert.Equal(t, "Private yoga sessions", txn.Title)
	assert.Equal(t, "p1", txn.ProviderID)
	assert.Equal(t, "u1", txn.RequesterID)
	assert.Equal(t, CategoryYogaInstruction, txn.ProviderService.Category)
	assert.Equal(t, 100.0, txn.ProviderService.ValuePerHour)
	assert.Equal(t, CategoryWebDevelopment, txn.RequesterService.Category)
	assert.Equal(t, 8.0, txn.ProviderHours)
	assert.Equal(t, 10.0, txn.RequesterHours)
	// 8h * 100 + 10h * 100
	assert.Equal(t, 1800.0, txn.TotalValue)
	assert.Equal(t, TransactionActive, txn.Status)
	assert.Equal(t, txn.StartDate.Add(7*24*time.Hour), txn.EstimatedCompletion)

	// The backing listing leaves the searchable pool.
	l, err := e.GetListing(ctx, m.ListingID)
	require.NoError(t, err)
	assert.Equal(t, ListingMatched, l.Status)
}

func TestCreateTransactionRequiresAcceptedMatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createSuggestedMatch(t, e)

	// A freshly suggested match cannot convert.
	_, err := e.CreateTransaction(ctx, m.ID, "", "")
	assert.ErrorIs(t, err, ErrConflict)

	// Declined is terminal; still no transaction.
	_, err = e.UpdateMatchStatus(ctx, m.ID, MatchDeclined)
	require.NoError(t, err)
	_, err = e.CreateTransaction(ctx, m.ID, "", "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateTransactionRetriesAfterFailedAttempt(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)

	// Evict the listing so the first attempt fails validation.
	l, err := e.GetListing(ctx, m.ListingID)
	require.NoError(t, err)
	require.NoError(t, e.store.Delete(ctx, store.Key("listing", l.ID)))

	_, err = e.CreateTransaction(ctx, m.ID, "", "")
	require.ErrorIs(t, err, ErrConflict)

	// Once the listing is back, the match still converts: the failed
	// attempt must not have burned the one-transaction-per-match guard.
	require.NoError(t, e.store.Put(ctx, store.Key("listing", l.ID), l, store.TTLListing))
	txn, err := e.CreateTransaction(ctx, m.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, m.ID, txn.MatchID)
}

func TestCreateTransactionOncePerMatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)

	_, err := e.CreateTransaction(ctx, m.ID, "", "")
	require.NoError(t, err)

	_, err = e.CreateTransaction(ctx, m.ID, "", "")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.CreateTransaction(ctx, "missing", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTransactionRequiresOpenReferences(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)

	// Cancel the listing between matching and acceptance.
	l, err := e.GetListing(ctx, m.ListingID)
	require.NoError(t, err)
	l.Status = ListingCancelled
	require.NoError(t, e.store.Put(ctx, store.Key("listing", l.ID), l, store.TTLListing))

	_, err = e.CreateTransaction(ctx, m.ID, "", "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateTransactionProgress(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)
	txn, err := e.CreateTransaction(ctx, m.ID, "", "")
	require.NoError(t, err)

	updated, err := e.UpdateTransactionProgress(ctx, txn.ID, floatPtr(50), nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, updated.ProviderProgress)
	assert.Equal(t, 0.0, updated.RequesterProgress)
	assert.Equal(t, TransactionActive, updated.Status)

	// The progress notice carries the listing title, not an enum value.
	feed, err := e.notifier.ListForRecipient(ctx, "p1", 5)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Contains(t, feed[0].Message, "Private yoga sessions")

	// Out-of-range progress is rejected before any write.
	_, err = e.UpdateTransactionProgress(ctx, txn.ID, floatPtr(120), nil)
	assert.ErrorIs(t, err, ErrInvalid)

	// Both sides at 100 completes the exchange.
	done, err := e.UpdateTransactionProgress(ctx, txn.ID, floatPtr(100), floatPtr(100))
	require.NoError(t, err)
	assert.Equal(t, TransactionCompleted, done.Status)
	require.NotNil(t, done.ActualCompletion)
}

func TestTransactionProgressVersionConflict(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)
	txn, err := e.CreateTransaction(ctx, m.ID, "", "")
	require.NoError(t, err)

	stale, err := e.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)

	// Another caller updates first; the stale copy's write must be rejected.
	_, err = e.UpdateTransactionProgress(ctx, txn.ID, floatPtr(10), nil)
	require.NoError(t, err)

	stale.ProviderProgress = 20
	err = e.store.PutVersioned(ctx, store.Key("transaction", stale.ID), stale, store.TTLTransaction)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestRateTransaction(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := createTestMatch(t, e)
	txn, err := e.CreateTransaction(ctx, m.ID, "", "")
	require.NoError(t, err)

	_, err = e.RateTransaction(ctx, txn.ID, "u1", 6, "")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.RateTransaction(ctx, txn.ID, "stranger", 5, "great")
	assert.ErrorIs(t, err, ErrInvalid)

	rated, err := e.RateTransaction(ctx, txn.ID, "u1", 5, "great teacher")
	require.NoError(t, err)
	require.NotNil(t, rated.RequesterReview)
	assert.Equal(t, 5.0, rated.RequesterReview.Rating)
	assert.Nil(t, rated.ProviderReview)
}

func TestProfileRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	p := &BarterProfile{
		EntityID:   "u1",
		EntityType: EntityIndividual,
		Name:       "Dana",
		Location:   sfLocation(),
		OfferedServices: []OfferedService{
			{Category: CategoryWebDevelopment, SkillLevel: SkillAdvanced, Description: "Full-stack work"},
		},
		NeededServices: []NeededService{
			{Category: CategoryYogaInstruction, Priority: 1},
		},
		TravelRadiusKm: 25,
		HoursPerWeek:   10,
		MaxConcurrent:  2,
		Active:         true,
	}
	saved, err := e.UpsertProfile(ctx, p)
	require.NoError(t, err)

	fetched, err := e.GetProfile(ctx, "u1")
	require.NoError(t, err)

	savedJSON, err := json.Marshal(saved)
	require.NoError(t, err)
	fetchedJSON, err := json.Marshal(fetched)
	require.NoError(t, err)
	assert.JSONEq(t, string(savedJSON), string(fetchedJSON))

	_, err = e.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireListingsSweep(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	fresh := testListing("p1")
	stale := testListing("p2")
	stale.ExpiresAt = time.Now().UTC().Add(-time.Hour)

	_, err := e.CreateListing(ctx, fresh)
	require.NoError(t, err)
	staleCreated, err := e.CreateListing(ctx, stale)
	require.NoError(t, err)

	n, err := e.ExpireListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	l, err := e.GetListing(ctx, staleCreated.ID)
	require.NoError(t, err)
	assert.Equal(t, ListingExpired, l.Status)

	// Only the fresh listing remains searchable.
	results := e.SearchListings(ctx, sfLocation(), 50, "", "", 10)
	require.Len(t, results, 1)
	assert.Equal(t, fresh.ID, results[0].ID)
}
