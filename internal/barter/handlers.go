package barter

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/barterhub/internal/culture"
	"github.com/sudo-init-do/barterhub/internal/notify"
	"github.com/sudo-init-do/barterhub/internal/store"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	Engine   *Engine
	Notifier *notify.Notifier
}

func NewHandler(engine *Engine, notifier *notify.Notifier) *Handler {
	return &Handler{Engine: engine, Notifier: notifier}
}

// Register mounts all barter routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/barter")

	g.POST("/listings", h.CreateListing)
	g.GET("/listings/search", h.SearchListings)
	g.POST("/requests", h.CreateRequest)
	g.GET("/requests/:id/matches", h.GetMatches)
	g.PATCH("/matches/:id/status", h.UpdateMatchStatus)
	g.POST("/transactions", h.CreateTransaction)
	g.GET("/transactions/:id", h.GetTransaction)
	g.PATCH("/transactions/:id/progress", h.UpdateTransactionProgress)
	g.PATCH("/transactions/:id/review", h.ReviewTransaction)
	g.GET("/profiles/:entityId", h.GetProfile)
	g.POST("/profiles/:entityId", h.UpsertProfile)
	g.GET("/cultural-adaptations/:region", h.GetCulturalAdaptation)
	g.GET("/cultural-adaptations/:region/seasonal/:season", h.GetSeasonalServices)
	g.GET("/categories", h.GetCategories)
	g.GET("/regions", h.GetRegions)
	g.GET("/notifications/:recipientId", h.ListNotifications)
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrInvalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrConflict), errors.Is(err, store.ErrVersionConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}

// POST /barter/listings
func (h *Handler) CreateListing(c echo.Context) error {
	var l BarterListing
	if err := c.Bind(&l); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	created, err := h.Engine.CreateListing(c.Request().Context(), &l)
	if err != nil {
		return writeError(c, err, "could not create listing")
	}
	return c.JSON(http.StatusCreated, created)
}

// GET /barter/listings/search
func (h *Handler) SearchListings(c echo.Context) error {
	loc := Location{
		City:           c.QueryParam("city"),
		Country:        c.QueryParam("country"),
		CulturalRegion: culture.Region(c.QueryParam("region")),
	}
	latStr, lonStr := c.QueryParam("lat"), c.QueryParam("lon")
	if latStr != "" && lonStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat != nil || errLon != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coordinates"})
		}
		loc.Latitude, loc.Longitude = &lat, &lon
	}
	if err := loc.Validate(); err != nil {
		return writeError(c, err, "invalid location")
	}

	radiusKm := defaultSearchRadiusKm
	if v := c.QueryParam("radius_km"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			radiusKm = r
		}
	}
	category := Category(c.QueryParam("category"))
	if category != "" && !category.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	listings := h.Engine.SearchListings(c.Request().Context(), loc, radiusKm,
		category, loc.CulturalRegion, parseLimit(c, 20))
	if listings == nil {
		listings = []*BarterListing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// POST /barter/requests
func (h *Handler) CreateRequest(c echo.Context) error {
	var r BarterRequest
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	created, err := h.Engine.CreateRequest(c.Request().Context(), &r)
	if err != nil {
		return writeError(c, err, "could not create request")
	}
	return c.JSON(http.StatusCreated, created)
}

// GET /barter/requests/:id/matches
func (h *Handler) GetMatches(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := h.Engine.GetRequest(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err, "could not load request")
	}
	matches, err := h.Engine.FindMatches(ctx, r, parseLimit(c, 10))
	if err != nil {
		return writeError(c, err, "could not compute matches")
	}
	if matches == nil {
		matches = []*BarterMatch{}
	}
	return c.JSON(http.StatusOK, echo.Map{"matches": matches})
}

// PATCH /barter/matches/:id/status
func (h *Handler) UpdateMatchStatus(c echo.Context) error {
	var req struct {
		Status MatchStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}
	m, err := h.Engine.UpdateMatchStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return writeError(c, err, "could not update match")
	}
	return c.JSON(http.StatusOK, m)
}

// POST /barter/transactions
func (h *Handler) CreateTransaction(c echo.Context) error {
	var req struct {
		MatchID     string `json:"match_id"`
		ProviderID  string `json:"provider_id"`
		RequesterID string `json:"requester_id"`
	}
	if err := c.Bind(&req); err != nil || req.MatchID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "match_id is required"})
	}
	t, err := h.Engine.CreateTransaction(c.Request().Context(), req.MatchID, req.ProviderID, req.RequesterID)
	if err != nil {
		return writeError(c, err, "could not create transaction")
	}
	return c.JSON(http.StatusCreated, t)
}

// GET /barter/transactions/:id
func (h *Handler) GetTransaction(c echo.Context) error {
	t, err := h.Engine.GetTransaction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, "could not load transaction")
	}
	return c.JSON(http.StatusOK, t)
}

// PATCH /barter/transactions/:id/progress
func (h *Handler) UpdateTransactionProgress(c echo.Context) error {
	var req struct {
		ProviderProgress  *float64 `json:"provider_progress"`
		RequesterProgress *float64 `json:"requester_progress"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.ProviderProgress == nil && req.RequesterProgress == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no progress values supplied"})
	}
	t, err := h.Engine.UpdateTransactionProgress(c.Request().Context(), c.Param("id"),
		req.ProviderProgress, req.RequesterProgress)
	if err != nil {
		return writeError(c, err, "could not update transaction")
	}
	return c.JSON(http.StatusOK, t)
}

// PATCH /barter/transactions/:id/review
func (h *Handler) ReviewTransaction(c echo.Context) error {
	var req struct {
		ReviewerID string  `json:"reviewer_id"`
		Rating     float64 `json:"rating"`
		Comment    string  `json:"comment"`
	}
	if err := c.Bind(&req); err != nil || req.ReviewerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reviewer_id is required"})
	}
	t, err := h.Engine.RateTransaction(c.Request().Context(), c.Param("id"),
		req.ReviewerID, req.Rating, req.Comment)
	if err != nil {
		return writeError(c, err, "could not record review")
	}
	return c.JSON(http.StatusOK, t)
}

// GET /barter/profiles/:entityId
func (h *Handler) GetProfile(c echo.Context) error {
	p, err := h.Engine.GetProfile(c.Request().Context(), c.Param("entityId"))
	if err != nil {
		return writeError(c, err, "could not load profile")
	}
	return c.JSON(http.StatusOK, p)
}

// POST /barter/profiles/:entityId
func (h *Handler) UpsertProfile(c echo.Context) error {
	var p BarterProfile
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	p.EntityID = c.Param("entityId")
	saved, err := h.Engine.UpsertProfile(c.Request().Context(), &p)
	if err != nil {
		return writeError(c, err, "could not save profile")
	}
	return c.JSON(http.StatusOK, saved)
}

// GET /barter/cultural-adaptations/:region
func (h *Handler) GetCulturalAdaptation(c echo.Context) error {
	return c.JSON(http.StatusOK, culture.Get(culture.Region(c.Param("region"))))
}

// GET /barter/cultural-adaptations/:region/seasonal/:season
func (h *Handler) GetSeasonalServices(c echo.Context) error {
	svcs := culture.SeasonalServices(culture.Region(c.Param("region")), c.Param("season"))
	return c.JSON(http.StatusOK, echo.Map{"services": svcs})
}

// GET /barter/categories
func (h *Handler) GetCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"categories": Categories()})
}

// GET /barter/regions
func (h *Handler) GetRegions(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"regions": culture.Regions()})
}

// GET /barter/notifications/:recipientId
func (h *Handler) ListNotifications(c echo.Context) error {
	notifs, err := h.Notifier.ListForRecipient(c.Request().Context(),
		c.Param("recipientId"), int64(parseLimit(c, 50)))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load notifications"})
	}
	if notifs == nil {
		notifs = []notify.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": notifs})
}

func parseLimit(c echo.Context, def int) int {
	limit := def
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return limit
}
