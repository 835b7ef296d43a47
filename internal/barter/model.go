package barter

import (
	"errors"
	"fmt"
	"time"

	"github.com/sudo-init-do/barterhub/internal/culture"
)

var (
	ErrNotFound = errors.New("barter: not found")
	ErrConflict = errors.New("barter: conflict")
	ErrInvalid  = errors.New("barter: invalid")
)

// EntityType identifies who owns a profile, listing or request.
type EntityType string

const (
	EntityIndividual   EntityType = "individual"
	EntityBusiness     EntityType = "business"
	EntityOrganization EntityType = "organization"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityIndividual, EntityBusiness, EntityOrganization:
		return true
	}
	return false
}

// SkillLevel is an ordinal scale; rank gaps feed the matching score.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
	SkillMaster       SkillLevel = "master"
)

var skillRanks = map[SkillLevel]int{
	SkillBeginner:     0,
	SkillIntermediate: 1,
	SkillAdvanced:     2,
	SkillExpert:       3,
	SkillMaster:       4,
}

// Rank returns the ordinal rank of the skill level, -1 when unknown.
func (s SkillLevel) Rank() int {
	if r, ok := skillRanks[s]; ok {
		return r
	}
	return -1
}

func (s SkillLevel) Valid() bool {
	_, ok := skillRanks[s]
	return ok
}

// Category is the closed set of barterable service categories.
type Category string

const (
	CategoryYogaInstruction  Category = "yoga_instruction"
	CategoryLanguageTutoring Category = "language_tutoring"
	CategoryWebDevelopment   Category = "web_development"
	CategoryGraphicDesign    Category = "graphic_design"
	CategoryHomeRepair       Category = "home_repair"
	CategoryCooking          Category = "cooking"
	CategoryMusicLessons     Category = "music_lessons"
	CategoryGardening        Category = "gardening"
	CategoryChildcare        Category = "childcare"
	CategoryElderCare        Category = "elder_care"
	CategoryAccounting       Category = "accounting"
	CategoryLegalAdvice      Category = "legal_advice"
	CategoryPhotography      Category = "photography"
	CategoryFitnessTraining  Category = "fitness_training"
	CategoryCleaning         Category = "cleaning"
)

// Categories returns all categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryYogaInstruction, CategoryLanguageTutoring, CategoryWebDevelopment,
		CategoryGraphicDesign, CategoryHomeRepair, CategoryCooking,
		CategoryMusicLessons, CategoryGardening, CategoryChildcare,
		CategoryElderCare, CategoryAccounting, CategoryLegalAdvice,
		CategoryPhotography, CategoryFitnessTraining, CategoryCleaning,
	}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Urgency of a barter request.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// Location is a place plus optional coordinates. Latitude and longitude must
// be provided together or not at all.
type Location struct {
	City           string         `json:"city"`
	State          string         `json:"state,omitempty"`
	Country        string         `json:"country"`
	PostalCode     string         `json:"postal_code,omitempty"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	CulturalRegion culture.Region `json:"cultural_region,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

func (l Location) Validate() error {
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be provided together", ErrInvalid)
	}
	if l.Latitude != nil {
		if *l.Latitude < -90 || *l.Latitude > 90 {
			return fmt.Errorf("%w: latitude out of range", ErrInvalid)
		}
		if *l.Longitude < -180 || *l.Longitude > 180 {
			return fmt.Errorf("%w: longitude out of range", ErrInvalid)
		}
	}
	return nil
}

// ---- status enumerations with explicit transition tables ----

// ListingStatus is the lifecycle of a listing.
type ListingStatus string

const (
	ListingDraft      ListingStatus = "draft"
	ListingActive     ListingStatus = "active"
	ListingMatched    ListingStatus = "matched"
	ListingInProgress ListingStatus = "in_progress"
	ListingCompleted  ListingStatus = "completed"
	ListingCancelled  ListingStatus = "cancelled"
	ListingExpired    ListingStatus = "expired"
)

var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingDraft:      {ListingActive, ListingCancelled},
	ListingActive:     {ListingMatched, ListingCancelled, ListingExpired},
	ListingMatched:    {ListingInProgress, ListingActive, ListingCancelled, ListingExpired},
	ListingInProgress: {ListingCompleted, ListingCancelled},
}

// CanTransition reports whether moving to the target status is legal.
func (s ListingStatus) CanTransition(to ListingStatus) bool {
	for _, t := range listingTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// RequestStatus is the lifecycle of a request (a subset of the listing set).
type RequestStatus string

const (
	RequestActive    RequestStatus = "active"
	RequestMatched   RequestStatus = "matched"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
	RequestExpired   RequestStatus = "expired"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestActive:  {RequestMatched, RequestCancelled, RequestExpired},
	RequestMatched: {RequestCompleted, RequestActive, RequestCancelled, RequestExpired},
}

func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, t := range requestTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// MatchStatus is the lifecycle of a suggested match.
type MatchStatus string

const (
	MatchSuggested   MatchStatus = "suggested"
	MatchViewed      MatchStatus = "viewed"
	MatchContacted   MatchStatus = "contacted"
	MatchNegotiating MatchStatus = "negotiating"
	MatchAccepted    MatchStatus = "accepted"
	MatchDeclined    MatchStatus = "declined"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchSuggested:   {MatchViewed, MatchContacted, MatchDeclined},
	MatchViewed:      {MatchContacted, MatchDeclined},
	MatchContacted:   {MatchNegotiating, MatchAccepted, MatchDeclined},
	MatchNegotiating: {MatchAccepted, MatchDeclined},
}

func (s MatchStatus) CanTransition(to MatchStatus) bool {
	for _, t := range matchTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchSuggested, MatchViewed, MatchContacted, MatchNegotiating, MatchAccepted, MatchDeclined:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle of a confirmed exchange.
type TransactionStatus string

const (
	TransactionActive    TransactionStatus = "active"
	TransactionPaused    TransactionStatus = "paused"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionDisputed  TransactionStatus = "disputed"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionActive:   {TransactionPaused, TransactionCompleted, TransactionCancelled, TransactionDisputed},
	TransactionPaused:   {TransactionActive, TransactionCancelled, TransactionDisputed},
	TransactionDisputed: {TransactionActive, TransactionCancelled},
}

func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, t := range transactionTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// ---- entities ----

// OfferedService is one service a profile can provide.
type OfferedService struct {
	Category    Category   `json:"category"`
	SkillLevel  SkillLevel `json:"skill_level"`
	Description string     `json:"description,omitempty"`
}

// NeededService is one service a profile wants, with priority.
type NeededService struct {
	Category Category `json:"category"`
	Priority int      `json:"priority"`
}

// PerformanceMetrics aggregates a profile's exchange history.
type PerformanceMetrics struct {
	TotalTransactions int     `json:"total_transactions"`
	AverageRating     float64 `json:"average_rating"`
	CompletionRate    float64 `json:"completion_rate"`
	ResponseTimeHours float64 `json:"response_time_hours"`
}

// BarterProfile is the single per-entity profile. Profiles are mutated in
// place on update and never deleted; deactivation flips Active instead.
type BarterProfile struct {
	EntityID         string             `json:"entity_id"`
	EntityType       EntityType         `json:"entity_type"`
	Name             string             `json:"name"`
	Location         Location           `json:"location"`
	OfferedServices  []OfferedService   `json:"offered_services,omitempty"`
	NeededServices   []NeededService    `json:"needed_services,omitempty"`
	TravelRadiusKm   float64            `json:"travel_radius_km,omitempty"`
	VirtualPreferred bool               `json:"virtual_preferred"`
	HoursPerWeek     float64            `json:"hours_per_week,omitempty"`
	MaxConcurrent    int                `json:"max_concurrent_transactions,omitempty"`
	Metrics          PerformanceMetrics `json:"metrics"`
	Active           bool               `json:"active"`
	Verified         bool               `json:"verified"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func (p *BarterProfile) Validate() error {
	if p.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required", ErrInvalid)
	}
	if !p.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity_type %q", ErrInvalid, p.EntityType)
	}
	if err := p.Location.Validate(); err != nil {
		return err
	}
	for _, o := range p.OfferedServices {
		if !o.Category.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalid, o.Category)
		}
		if !o.SkillLevel.Valid() {
			return fmt.Errorf("%w: unknown skill_level %q", ErrInvalid, o.SkillLevel)
		}
	}
	for _, n := range p.NeededServices {
		if !n.Category.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalid, n.Category)
		}
	}
	return nil
}

// BarterListing is an offer to provide a service.
type BarterListing struct {
	ID                    string              `json:"id"`
	ProviderID            string              `json:"provider_id"`
	ProviderType          EntityType          `json:"provider_type"`
	Title                 string              `json:"title"`
	Description           string              `json:"description,omitempty"`
	Category              Category            `json:"category"`
	SkillLevel            SkillLevel          `json:"skill_level"`
	Location              Location            `json:"location"`
	ServiceRadiusKm       float64             `json:"service_radius_km,omitempty"`
	VirtualAvailable      bool                `json:"virtual_available"`
	AvailableHoursPerWeek float64             `json:"available_hours_per_week"`
	SessionDurationHours  float64             `json:"session_duration_hours,omitempty"`
	BaseValuePerHour      float64             `json:"base_value_per_hour"`
	PreferredExchange     []Category          `json:"preferred_exchange_categories,omitempty"`
	Cultural              *culture.Adaptation `json:"cultural_adaptation,omitempty"`
	Status                ListingStatus       `json:"status"`
	CreatedAt             time.Time           `json:"created_at"`
	ExpiresAt             time.Time           `json:"expires_at"`
}

func (l *BarterListing) Validate() error {
	if l.ProviderID == "" {
		return fmt.Errorf("%w: provider_id is required", ErrInvalid)
	}
	if !l.ProviderType.Valid() {
		return fmt.Errorf("%w: unknown provider_type %q", ErrInvalid, l.ProviderType)
	}
	if l.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !l.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, l.Category)
	}
	if !l.SkillLevel.Valid() {
		return fmt.Errorf("%w: unknown skill_level %q", ErrInvalid, l.SkillLevel)
	}
	if l.AvailableHoursPerWeek < 0 || l.BaseValuePerHour < 0 || l.ServiceRadiusKm < 0 {
		return fmt.Errorf("%w: negative hours, value or radius", ErrInvalid)
	}
	for _, c := range l.PreferredExchange {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown preferred exchange category %q", ErrInvalid, c)
		}
	}
	if l.Location.CulturalRegion != "" && !culture.Valid(l.Location.CulturalRegion) {
		return fmt.Errorf("%w: unknown cultural_region %q", ErrInvalid, l.Location.CulturalRegion)
	}
	return l.Location.Validate()
}

// Open reports whether the listing can still anchor a new transaction.
func (l *BarterListing) Open() bool {
	return l.Status == ListingActive || l.Status == ListingMatched
}

// OfferedExchange is what the requester puts on the table.
type OfferedExchange struct {
	Category     Category `json:"category"`
	Description  string   `json:"description,omitempty"`
	ValuePerHour float64  `json:"value_per_hour"`
	TotalHours   float64  `json:"total_hours"`
}

// BarterRequest is a solicitation for a service. Requests are the search
// input, not the searched set; the matcher never mutates them.
type BarterRequest struct {
	ID                  string          `json:"id"`
	RequesterID         string          `json:"requester_id"`
	RequesterType       EntityType      `json:"requester_type"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	Category            Category        `json:"category"`
	PreferredSkillLevel SkillLevel      `json:"preferred_skill_level"`
	PreferredLocation   Location        `json:"preferred_location"`
	MaxDistanceKm       float64         `json:"max_distance_km,omitempty"`
	VirtualAcceptable   bool            `json:"virtual_acceptable"`
	Offered             OfferedExchange `json:"offered_service"`
	RequiredTotalHours  float64         `json:"required_total_hours"`
	Urgency             Urgency         `json:"urgency,omitempty"`
	Status              RequestStatus   `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
}

func (r *BarterRequest) Validate() error {
	if r.RequesterID == "" {
		return fmt.Errorf("%w: requester_id is required", ErrInvalid)
	}
	if !r.RequesterType.Valid() {
		return fmt.Errorf("%w: unknown requester_type %q", ErrInvalid, r.RequesterType)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, r.Category)
	}
	if !r.PreferredSkillLevel.Valid() {
		return fmt.Errorf("%w: unknown preferred_skill_level %q", ErrInvalid, r.PreferredSkillLevel)
	}
	if r.Urgency != "" && !r.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalid, r.Urgency)
	}
	if !r.Offered.Category.Valid() {
		return fmt.Errorf("%w: unknown offered category %q", ErrInvalid, r.Offered.Category)
	}
	if r.RequiredTotalHours < 0 || r.MaxDistanceKm < 0 ||
		r.Offered.ValuePerHour < 0 || r.Offered.TotalHours < 0 {
		return fmt.Errorf("%w: negative hours, value or distance", ErrInvalid)
	}
	return r.PreferredLocation.Validate()
}

// Open reports whether the request can still anchor a new transaction.
func (r *BarterRequest) Open() bool {
	return r.Status == RequestActive || r.Status == RequestMatched
}

// MatchSnapshot pins the scoring inputs captured at match time. The listing
// and request ids on the match are lookup keys for current-state operations
// only; everything the suggestion was computed from lives here.
type MatchSnapshot struct {
	ListingTitle                 string     `json:"listing_title"`
	ListingCategory              Category   `json:"listing_category"`
	ListingSkillLevel            SkillLevel `json:"listing_skill_level"`
	ListingBaseValuePerHour      float64    `json:"listing_base_value_per_hour"`
	ListingAvailableHoursPerWeek float64    `json:"listing_available_hours_per_week"`
	ListingSessionDurationHours  float64    `json:"listing_session_duration_hours"`
	OfferedCategory              Category   `json:"offered_category"`
	OfferedValuePerHour          float64    `json:"offered_value_per_hour"`
	OfferedTotalHours            float64    `json:"offered_total_hours"`
	RequiredTotalHours           float64    `json:"required_total_hours"`
}

// SuggestedExchange is the proposed shape of the trade.
type SuggestedExchange struct {
	ProviderHours          float64 `json:"provider_hours"`
	RequesterHours         float64 `json:"requester_hours"`
	SessionDurationHours   float64 `json:"session_duration_hours,omitempty"`
	Virtual                bool    `json:"virtual"`
	EstimatedDurationWeeks int     `json:"estimated_duration_weeks"`
}

// BarterMatch is a scored pairing between one listing and one request.
// Immutable once created except for status.
type BarterMatch struct {
	ID                 string            `json:"id"`
	ListingID          string            `json:"listing_id"`
	RequestID          string            `json:"request_id"`
	ProviderID         string            `json:"provider_id"`
	RequesterID        string            `json:"requester_id"`
	CompatibilityScore float64           `json:"compatibility_score"`
	DistanceKm         *float64          `json:"distance_km,omitempty"`
	CategoryMatch      bool              `json:"category_match"`
	SkillLevelMatch    bool              `json:"skill_level_match"`
	ValueBalanceRatio  float64           `json:"value_balance_ratio"`
	CulturalScore      float64           `json:"cultural_compatibility_score"`
	Suggested          SuggestedExchange `json:"suggested_exchange"`
	Snapshot           MatchSnapshot     `json:"snapshot"`
	Status             MatchStatus       `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
}

// ServiceTerms snapshots one side of a transaction.
type ServiceTerms struct {
	Category     Category `json:"category"`
	Description  string   `json:"description,omitempty"`
	ValuePerHour float64  `json:"value_per_hour"`
}

// Milestone marks an agreed checkpoint in a transaction.
type Milestone struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	DueDate     time.Time  `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Message is one entry in a transaction's communication log.
type Message struct {
	SenderID string    `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Review holds one side's rating of the exchange. Rating ranges 1-5.
type Review struct {
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BarterTransaction is a confirmed exchange created from exactly one
// accepted match. It is the only entity that mutates frequently after
// creation, so it carries a version counter for conditional writes.
type BarterTransaction struct {
	ID                  string            `json:"id"`
	MatchID             string            `json:"match_id"`
	Title               string            `json:"title"`
	ProviderID          string            `json:"provider_id"`
	RequesterID         string            `json:"requester_id"`
	ProviderService     ServiceTerms      `json:"provider_service"`
	RequesterService    ServiceTerms      `json:"requester_service"`
	ProviderHours       float64           `json:"provider_hours"`
	RequesterHours      float64           `json:"requester_hours"`
	TotalValue          float64           `json:"total_value"`
	StartDate           time.Time         `json:"start_date"`
	EstimatedCompletion time.Time         `json:"estimated_completion"`
	ActualCompletion    *time.Time        `json:"actual_completion,omitempty"`
	ProviderProgress    float64           `json:"provider_progress"`
	RequesterProgress   float64           `json:"requester_progress"`
	Milestones          []Milestone       `json:"milestones,omitempty"`
	Log                 []Message         `json:"communication_log,omitempty"`
	Status              TransactionStatus `json:"status"`
	ProviderReview      *Review           `json:"provider_review,omitempty"`
	RequesterReview     *Review           `json:"requester_review,omitempty"`
	Version             int64             `json:"version"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (t *BarterTransaction) CurrentVersion() int64 { return t.Version }
func (t *BarterTransaction) SetVersion(v int64)    { t.Version = v }

// ValidateProgress rejects progress values outside [0, 100].
func ValidateProgress(p float64) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: progress must be within [0, 100]", ErrInvalid)
	}
	return nil
}

// ValidateRating rejects ratings outside [1, 5].
func ValidateRating(r float64) error {
	if r < 1 || r > 5 {
		return fmt.Errorf("%w: rating must be within [1, 5]", ErrInvalid)
	}
	return nil
}
