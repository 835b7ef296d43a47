package barter

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/barterhub/internal/culture"
	"github.com/sudo-init-do/barterhub/internal/geo"
	"github.com/sudo-init-do/barterhub/internal/notify"
	"github.com/sudo-init-do/barterhub/internal/store"
)

const (
	defaultSearchRadiusKm = 50.0
	defaultListingLife    = 30 * 24 * time.Hour
	defaultRequestLife    = 30 * 24 * time.Hour
	defaultMatchLimit     = 10
)

// Engine orchestrates listings, requests, matches and transactions on top
// of the geo-indexed store. Store failures on read paths degrade to empty
// results; the two creation paths propagate them.
type Engine struct {
	store    store.Store
	notifier *notify.Notifier
}

func NewEngine(st store.Store, notifier *notify.Notifier) *Engine {
	return &Engine{store: st, notifier: notifier}
}

// notifyEvent fires a notification and logs failures; notification delivery
// never blocks engine operations.
func (e *Engine) notifyEvent(ctx context.Context, recipientID string, typ notify.Type, data map[string]string) {
	if e.notifier == nil || recipientID == "" {
		return
	}
	if _, err := e.notifier.Create(ctx, recipientID, typ, data, nil); err != nil {
		log.Printf("[engine] notification %s for %s failed: %v", typ, recipientID, err)
	}
}

// ---- listings ----

// CreateListing validates and persists a listing, attaches a cultural
// adaptation block when the provider did not supply one, and registers the
// listing in the geo index when it has coordinates.
func (e *Engine) CreateListing(ctx context.Context, l *BarterListing) (*BarterListing, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = ListingActive
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.ExpiresAt.IsZero() {
		l.ExpiresAt = now.Add(defaultListingLife)
	}
	if l.Cultural == nil {
		a := culture.Get(l.Location.CulturalRegion)
		l.Cultural = &a
	}

	if err := e.store.Put(ctx, store.Key("listing", l.ID), l, store.TTLListing); err != nil {
		return nil, fmt.Errorf("persist listing: %w", err)
	}
	if l.Location.HasCoordinates() {
		if err := e.store.GeoAdd(ctx, store.GeoIndexListings, *l.Location.Longitude, *l.Location.Latitude, l.ID); err != nil {
			// The listing exists but is not searchable; surfaced in logs only.
			log.Printf("[engine] geo index add failed for listing %s: %v", l.ID, err)
		}
	}
	return l, nil
}

// GetListing fetches a listing by id, ErrNotFound when absent or expired.
func (e *Engine) GetListing(ctx context.Context, id string) (*BarterListing, error) {
	var l BarterListing
	found, err := e.store.Get(ctx, store.Key("listing", id), &l)
	if err != nil {
		log.Printf("[engine] listing lookup %s failed: %v", id, err)
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if !found {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return &l, nil
}

// SearchListings queries the geo index for the nearest active listings
// within radiusKm of the location and filters by category and region in
// application code. A location without coordinates or an unavailable store
// yields an empty result, never an error.
func (e *Engine) SearchListings(ctx context.Context, loc Location, radiusKm float64, category Category, region culture.Region, limit int) []*BarterListing {
	if !loc.HasCoordinates() {
		return nil
	}
	if limit <= 0 {
		limit = defaultMatchLimit
	}
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}

	ids, err := e.store.GeoRadius(ctx, store.GeoIndexListings, *loc.Longitude, *loc.Latitude, radiusKm, 2*limit)
	if err != nil {
		log.Printf("[engine] geo search failed: %v", err)
		return nil
	}

	results := make([]*BarterListing, 0, limit)
	for _, id := range ids {
		var l BarterListing
		found, err := e.store.Get(ctx, store.Key("listing", id), &l)
		if err != nil {
			log.Printf("[engine] listing fetch %s failed: %v", id, err)
			continue
		}
		if !found || l.Status != ListingActive {
			continue
		}
		if category != "" && l.Category != category {
			continue
		}
		if region != "" && l.Location.CulturalRegion != region {
			continue
		}
		results = append(results, &l)
		if len(results) >= limit {
			break
		}
	}
	return results
}

// ---- requests ----

// CreateRequest validates and persists a request, then tells providers of
// nearby listings in the category about it. Requests never enter the geo
// index: they are the search input, not the searched set.
func (e *Engine) CreateRequest(ctx context.Context, r *BarterRequest) (*BarterRequest, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RequestActive
	}
	if r.Urgency == "" {
		r.Urgency = UrgencyNormal
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = now.Add(defaultRequestLife)
	}

	if err := e.store.Put(ctx, store.Key("request", r.ID), r, store.TTLListing); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}

	e.announceRequest(ctx, r)
	return r, nil
}

// announceRequest notifies providers whose listings sit in the request's
// category near its location.
func (e *Engine) announceRequest(ctx context.Context, r *BarterRequest) {
	listings := e.SearchListings(ctx, r.PreferredLocation, r.MaxDistanceKm, r.Category, "", defaultMatchLimit)
	seen := map[string]bool{}
	for _, l := range listings {
		if l.ProviderID == r.RequesterID || seen[l.ProviderID] {
			continue
		}
		seen[l.ProviderID] = true
		e.notifyEvent(ctx, l.ProviderID, notify.TypeNewRequestForCategory, map[string]string{
			"category": string(r.Category),
			"title":    r.Title,
		})
	}
}

// GetRequest fetches a request by id, ErrNotFound when absent or expired.
func (e *Engine) GetRequest(ctx context.Context, id string) (*BarterRequest, error) {
	var r BarterRequest
	found, err := e.store.Get(ctx, store.Key("request", id), &r)
	if err != nil {
		log.Printf("[engine] request lookup %s failed: %v", id, err)
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if !found {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return &r, nil
}

// ---- matching ----

// FindMatches searches listings around the request, scores every candidate,
// discards anything under the score floor, and returns the top matches
// ranked by score. The returned matches are cached for later acceptance.
func (e *Engine) FindMatches(ctx context.Context, r *BarterRequest, limit int) ([]*BarterMatch, error) {
	if limit <= 0 {
		limit = defaultMatchLimit
	}

	candidates := e.SearchListings(ctx, r.PreferredLocation, r.MaxDistanceKm, r.Category, "", 2*limit)

	matches := make([]*BarterMatch, 0, len(candidates))
	for _, l := range candidates {
		if l.ProviderID == r.RequesterID {
			continue
		}
		m := e.buildMatch(l, r)
		if m == nil {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CompatibilityScore > matches[j].CompatibilityScore
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	for _, m := range matches {
		if err := e.store.Put(ctx, store.Key("match", m.ID), m, store.TTLMatch); err != nil {
			log.Printf("[engine] match cache %s failed: %v", m.ID, err)
		}
	}

	if len(matches) > 0 {
		e.notifyEvent(ctx, r.RequesterID, notify.TypeNewMatchFound, map[string]string{
			"count": strconv.Itoa(len(matches)),
			"title": r.Title,
			"score": fmt.Sprintf("%.2f", matches[0].CompatibilityScore),
		})
	}
	return matches, nil
}

// buildMatch scores one listing against the request and materializes a
// match, or nil when the score falls under the floor.
func (e *Engine) buildMatch(l *BarterListing, r *BarterRequest) *BarterMatch {
	score := Score(l, r)
	if score < MinScore {
		return nil
	}

	var distanceKm *float64
	if l.Location.HasCoordinates() && r.PreferredLocation.HasCoordinates() {
		d := geo.Distance(*l.Location.Latitude, *l.Location.Longitude,
			*r.PreferredLocation.Latitude, *r.PreferredLocation.Longitude)
		distanceKm = &d
	}

	offered := r.Offered.ValuePerHour * r.Offered.TotalHours
	requested := l.BaseValuePerHour * r.RequiredTotalHours

	weeks := 1
	if l.AvailableHoursPerWeek > 0 {
		weeks = int(math.Ceil(r.RequiredTotalHours / l.AvailableHoursPerWeek))
		if weeks < 1 {
			weeks = 1
		}
	}

	return &BarterMatch{
		ID:                 uuid.New().String(),
		ListingID:          l.ID,
		RequestID:          r.ID,
		ProviderID:         l.ProviderID,
		RequesterID:        r.RequesterID,
		CompatibilityScore: score,
		DistanceKm:         distanceKm,
		CategoryMatch:      l.Category == r.Category,
		SkillLevelMatch:    l.SkillLevel.Rank() >= r.PreferredSkillLevel.Rank(),
		ValueBalanceRatio:  ValueBalanceRatio(offered, requested),
		CulturalScore:      CulturalScore(l, r),
		Suggested: SuggestedExchange{
			ProviderHours:          r.RequiredTotalHours,
			RequesterHours:         r.Offered.TotalHours,
			SessionDurationHours:   l.SessionDurationHours,
			Virtual:                r.VirtualAcceptable && l.VirtualAvailable,
			EstimatedDurationWeeks: weeks,
		},
		Snapshot: MatchSnapshot{
			ListingTitle:                 l.Title,
			ListingCategory:              l.Category,
			ListingSkillLevel:            l.SkillLevel,
			ListingBaseValuePerHour:      l.BaseValuePerHour,
			ListingAvailableHoursPerWeek: l.AvailableHoursPerWeek,
			ListingSessionDurationHours:  l.SessionDurationHours,
			OfferedCategory:              r.Offered.Category,
			OfferedValuePerHour:          r.Offered.ValuePerHour,
			OfferedTotalHours:            r.Offered.TotalHours,
			RequiredTotalHours:           r.RequiredTotalHours,
		},
		Status:    MatchSuggested,
		CreatedAt: time.Now().UTC(),
	}
}

// GetMatch fetches a match by id, ErrNotFound when absent or expired.
func (e *Engine) GetMatch(ctx context.Context, id string) (*BarterMatch, error) {
	var m BarterMatch
	found, err := e.store.Get(ctx, store.Key("match", id), &m)
	if err != nil {
		log.Printf("[engine] match lookup %s failed: %v", id, err)
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if !found {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return &m, nil
}

// UpdateMatchStatus moves a match through its lifecycle. Acceptance
// notifies the provider.
func (e *Engine) UpdateMatchStatus(ctx context.Context, id string, to MatchStatus) (*BarterMatch, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown match status %q", ErrInvalid, to)
	}
	m, err := e.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: match cannot move from %s to %s", ErrInvalid, m.Status, to)
	}
	m.Status = to
	if err := e.store.Put(ctx, store.Key("match", m.ID), m, store.TTLMatch); err != nil {
		return nil, fmt.Errorf("persist match: %w", err)
	}
	if to == MatchAccepted {
		e.notifyEvent(ctx, m.ProviderID, notify.TypeMatchAccepted, map[string]string{
			"name":  m.RequesterID,
			"title": m.Snapshot.ListingTitle,
		})
	}
	return m, nil
}

// ---- transactions ----

// CreateTransaction turns an accepted match into a live exchange. Only an
// accepted match converts; the current listing and request are re-fetched
// and must both still be open, since their values may have changed or
// expired since the match was produced. A second creation attempt against
// the same match is a conflict.
func (e *Engine) CreateTransaction(ctx context.Context, matchID, providerID, requesterID string) (*BarterTransaction, error) {
	m, err := e.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != MatchAccepted {
		return nil, fmt.Errorf("%w: match %s is %s, not accepted", ErrConflict, matchID, m.Status)
	}
	if providerID == "" {
		providerID = m.ProviderID
	}
	if requesterID == "" {
		requesterID = m.RequesterID
	}

	l, err := e.GetListing(ctx, m.ListingID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing for match %s is gone", ErrConflict, matchID)
	}
	r, err := e.GetRequest(ctx, m.RequestID)
	if err != nil {
		return nil, fmt.Errorf("%w: request for match %s is gone", ErrConflict, matchID)
	}
	if !l.Open() || !r.Open() {
		return nil, fmt.Errorf("%w: listing or request for match %s is no longer open", ErrConflict, matchID)
	}

	// The guard is taken only once the references validate, and released
	// again if the write below fails, so a failed attempt stays retryable.
	txnID := uuid.New().String()
	guardKey := store.Key("match_txn", matchID)
	ok, err := e.store.SetNX(ctx, guardKey, txnID, store.TTLTransaction)
	if err != nil {
		return nil, fmt.Errorf("transaction guard: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: match %s already has a transaction", ErrConflict, matchID)
	}

	now := time.Now().UTC()
	t := &BarterTransaction{
		ID:          txnID,
		MatchID:     matchID,
		Title:       l.Title,
		ProviderID:  providerID,
		RequesterID: requesterID,
		ProviderService: ServiceTerms{
			Category:     l.Category,
			Description:  l.Description,
			ValuePerHour: l.BaseValuePerHour,
		},
		RequesterService: ServiceTerms{
			Category:     r.Offered.Category,
			Description:  r.Offered.Description,
			ValuePerHour: r.Offered.ValuePerHour,
		},
		ProviderHours:  m.Suggested.ProviderHours,
		RequesterHours: m.Suggested.RequesterHours,
		TotalValue: m.Suggested.ProviderHours*l.BaseValuePerHour +
			m.Suggested.RequesterHours*r.Offered.ValuePerHour,
		StartDate:           now,
		EstimatedCompletion: now.Add(time.Duration(m.Suggested.EstimatedDurationWeeks) * 7 * 24 * time.Hour),
		Status:              TransactionActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.store.Put(ctx, store.Key("transaction", t.ID), t, store.TTLTransaction); err != nil {
		if delErr := e.store.Delete(ctx, guardKey); delErr != nil {
			log.Printf("[engine] transaction guard release for match %s failed: %v", matchID, delErr)
		}
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	// The listing leaves the searchable pool once an exchange starts.
	if l.Status.CanTransition(ListingMatched) {
		l.Status = ListingMatched
		if err := e.store.Put(ctx, store.Key("listing", l.ID), l, store.TTLListing); err != nil {
			log.Printf("[engine] listing status update %s failed: %v", l.ID, err)
		}
	}
	if r.Status.CanTransition(RequestMatched) {
		r.Status = RequestMatched
		if err := e.store.Put(ctx, store.Key("request", r.ID), r, store.TTLListing); err != nil {
			log.Printf("[engine] request status update %s failed: %v", r.ID, err)
		}
	}

	data := map[string]string{
		"title":                l.Title,
		"estimated_completion": t.EstimatedCompletion.Format("2006-01-02"),
	}
	e.notifyEvent(ctx, providerID, notify.TypeTransactionCreated, data)
	e.notifyEvent(ctx, requesterID, notify.TypeTransactionCreated, data)
	return t, nil
}

// GetTransaction fetches a transaction by id, ErrNotFound when absent.
func (e *Engine) GetTransaction(ctx context.Context, id string) (*BarterTransaction, error) {
	var t BarterTransaction
	found, err := e.store.Get(ctx, store.Key("transaction", id), &t)
	if err != nil {
		log.Printf("[engine] transaction lookup %s failed: %v", id, err)
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if !found {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

// UpdateTransactionProgress applies per-side progress updates through a
// conditional write; a concurrent update surfaces as a version conflict the
// caller retries. Both sides reaching 100 completes the transaction.
func (e *Engine) UpdateTransactionProgress(ctx context.Context, id string, providerProgress, requesterProgress *float64) (*BarterTransaction, error) {
	t, err := e.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if providerProgress != nil {
		if err := ValidateProgress(*providerProgress); err != nil {
			return nil, err
		}
		t.ProviderProgress = *providerProgress
	}
	if requesterProgress != nil {
		if err := ValidateProgress(*requesterProgress); err != nil {
			return nil, err
		}
		t.RequesterProgress = *requesterProgress
	}

	completed := false
	if t.ProviderProgress >= 100 && t.RequesterProgress >= 100 && t.Status.CanTransition(TransactionCompleted) {
		now := time.Now().UTC()
		t.Status = TransactionCompleted
		t.ActualCompletion = &now
		completed = true
	}
	t.UpdatedAt = time.Now().UTC()

	if err := e.store.PutVersioned(ctx, store.Key("transaction", t.ID), t, store.TTLTransaction); err != nil {
		return nil, err
	}

	typ := notify.TypeTransactionProgress
	if completed {
		typ = notify.TypeTransactionCompleted
		e.recordCompletion(ctx, t)
	}
	data := map[string]string{
		"title":              t.Title,
		"provider_progress":  strconv.FormatFloat(t.ProviderProgress, 'f', 0, 64),
		"requester_progress": strconv.FormatFloat(t.RequesterProgress, 'f', 0, 64),
	}
	e.notifyEvent(ctx, t.ProviderID, typ, data)
	e.notifyEvent(ctx, t.RequesterID, typ, data)
	return t, nil
}

// recordCompletion folds a finished exchange into both profiles' metrics.
func (e *Engine) recordCompletion(ctx context.Context, t *BarterTransaction) {
	for _, entityID := range []string{t.ProviderID, t.RequesterID} {
		p, err := e.GetProfile(ctx, entityID)
		if err != nil {
			continue
		}
		p.Metrics.TotalTransactions++
		p.UpdatedAt = time.Now().UTC()
		if err := e.store.Put(ctx, store.Key("profile", p.EntityID), p, store.TTLProfile); err != nil {
			log.Printf("[engine] profile metrics update %s failed: %v", p.EntityID, err)
		}
	}
}

// RateTransaction records one side's review of a completed exchange and
// folds the rating into the counterparty's profile metrics.
func (e *Engine) RateTransaction(ctx context.Context, id, reviewerID string, rating float64, comment string) (*BarterTransaction, error) {
	if err := ValidateRating(rating); err != nil {
		return nil, err
	}
	t, err := e.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	review := &Review{Rating: rating, Comment: comment, CreatedAt: time.Now().UTC()}
	var ratedID string
	switch reviewerID {
	case t.ProviderID:
		t.ProviderReview = review
		ratedID = t.RequesterID
	case t.RequesterID:
		t.RequesterReview = review
		ratedID = t.ProviderID
	default:
		return nil, fmt.Errorf("%w: %s is not a party to transaction %s", ErrInvalid, reviewerID, id)
	}
	t.UpdatedAt = time.Now().UTC()

	if err := e.store.PutVersioned(ctx, store.Key("transaction", t.ID), t, store.TTLTransaction); err != nil {
		return nil, err
	}

	if p, err := e.GetProfile(ctx, ratedID); err == nil {
		n := float64(p.Metrics.TotalTransactions)
		if n < 1 {
			n = 1
		}
		p.Metrics.AverageRating = (p.Metrics.AverageRating*(n-1) + rating) / n
		p.UpdatedAt = time.Now().UTC()
		if err := e.store.Put(ctx, store.Key("profile", p.EntityID), p, store.TTLProfile); err != nil {
			log.Printf("[engine] profile rating update %s failed: %v", p.EntityID, err)
		}
	}
	return t, nil
}

// ---- profiles ----

// GetProfile fetches a profile by entity id, ErrNotFound when absent.
func (e *Engine) GetProfile(ctx context.Context, entityID string) (*BarterProfile, error) {
	var p BarterProfile
	found, err := e.store.Get(ctx, store.Key("profile", entityID), &p)
	if err != nil {
		log.Printf("[engine] profile lookup %s failed: %v", entityID, err)
		return nil, fmt.Errorf("profile %s: %w", entityID, ErrNotFound)
	}
	if !found {
		return nil, fmt.Errorf("profile %s: %w", entityID, ErrNotFound)
	}
	return &p, nil
}

// UpsertProfile writes the profile unconditionally; updates are upserts.
func (e *Engine) UpsertProfile(ctx context.Context, p *BarterProfile) (*BarterProfile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := e.store.Put(ctx, store.Key("profile", p.EntityID), p, store.TTLProfile); err != nil {
		return nil, fmt.Errorf("persist profile: %w", err)
	}
	return p, nil
}

// ---- maintenance ----

// ExpireListings sweeps the geo index: members whose listing entry has been
// evicted are dropped, and listings past their expiry are transitioned to
// expired, removed from the index and their providers notified. Returns the
// number of listings expired.
func (e *Engine) ExpireListings(ctx context.Context) (int, error) {
	members, err := e.store.GeoMembers(ctx, store.GeoIndexListings)
	if err != nil {
		return 0, err
	}

	expired := 0
	now := time.Now().UTC()
	for _, id := range members {
		var l BarterListing
		found, err := e.store.Get(ctx, store.Key("listing", id), &l)
		if err != nil {
			log.Printf("[engine] sweep fetch %s failed: %v", id, err)
			continue
		}
		if !found {
			if err := e.store.GeoRemove(ctx, store.GeoIndexListings, id); err != nil {
				log.Printf("[engine] sweep index remove %s failed: %v", id, err)
			}
			continue
		}
		if now.Before(l.ExpiresAt) {
			continue
		}
		if !l.Status.CanTransition(ListingExpired) {
			continue
		}
		l.Status = ListingExpired
		if err := e.store.Put(ctx, store.Key("listing", l.ID), &l, store.TTLListing); err != nil {
			log.Printf("[engine] sweep status update %s failed: %v", l.ID, err)
			continue
		}
		if err := e.store.GeoRemove(ctx, store.GeoIndexListings, l.ID); err != nil {
			log.Printf("[engine] sweep index remove %s failed: %v", l.ID, err)
		}
		e.notifyEvent(ctx, l.ProviderID, notify.TypeListingExpired, map[string]string{
			"title": l.Title,
		})
		expired++
	}
	return expired, nil
}
