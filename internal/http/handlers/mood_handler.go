// Mood HTTP handlers.
//
// This file exposes REST endpoints for mood state:
//   - POST   /mood          (record)
//   - GET    /mood          (current, ETag support)
//   - GET    /mood/trend    (trailing-window aggregate)
//   - GET    /mood/history  (paginated samples)
//
// It also hosts the shared handler wiring: the service contracts consumed by
// the HTTP layer, the Handlers aggregate, and the service-error translation
// used by every endpoint.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/services"
	"github.com/tbourn/go-watchwell-backend/internal/utils"
	"github.com/tbourn/go-watchwell-backend/internal/wellness"
)

//
// Service contracts (context-aware)
//

// MoodService defines mood recording and retrieval operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MoodService interface {
	// Record persists a mood sample and refreshes the live profile.
	Record(ctx context.Context, userID, mood, source string, confidence float64) (*domain.MoodSample, error)
	// Current returns the live mood profile.
	Current(ctx context.Context, userID string) (*domain.MoodProfile, error)
	// Trend aggregates samples over the trailing window.
	Trend(ctx context.Context, userID string, windowHours int) (*services.MoodTrend, error)
	// HistoryPage returns a page of samples and the total count.
	HistoryPage(ctx context.Context, userID string, page, pageSize int) ([]domain.MoodSample, int64, error)
}

// SessionService defines the watch-session lifecycle operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SessionService interface {
	// Start opens a watch session for the user and content.
	Start(ctx context.Context, userID, contentID, mood string) (*domain.WatchSession, error)
	// UpdateProgress advances an open session's absolute duration.
	UpdateProgress(ctx context.Context, userID, sessionID string, minutes int) (*services.ProgressResult, error)
	// End closes a session and folds it into the day's metrics.
	End(ctx context.Context, userID, sessionID string, satisfied bool) (*services.EndResult, error)
	// Open lists the user's currently open sessions.
	Open(ctx context.Context, userID string) ([]domain.WatchSession, error)
}

// WellnessService defines the dashboard assembly operation.
type WellnessService interface {
	// Dashboard builds the wellness view for the user's current day.
	Dashboard(ctx context.Context, userID string) (*wellness.Dashboard, error)
}

// RecommendationService defines the ensemble blend operation.
type RecommendationService interface {
	// Recommend blends candidate lists into a ranked, throttled set.
	Recommend(ctx context.Context, userID, mood string, n int, collab, content []services.Candidate) (*services.RecommendationSet, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for mood, sessions, wellness, and
// recommendations. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	moodSvc MoodService
	sessSvc SessionService
	wellSvc WellnessService
	recSvc  RecommendationService

	// IdempotencyTTL bounds how long a stored Idempotency-Key replay record
	// stays valid. Zero means the 24h default.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(moodSvc MoodService, sessSvc SessionService, wellSvc WellnessService, recSvc RecommendationService) *Handlers {
	return &Handlers{moodSvc: moodSvc, sessSvc: sessSvc, wellSvc: wellSvc, recSvc: recSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// failFromService translates service-layer sentinel errors into the HTTP
// status and stable code clients branch on. Unrecognized errors become 500s.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidMood),
		errors.Is(err, services.ErrInvalidConfidence),
		errors.Is(err, services.ErrInvalidSource),
		errors.Is(err, services.ErrInvalidWindow),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrInvalidLimit),
		errors.Is(err, services.ErrEmptyCandidates):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrMoodNotFound),
		errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrForbiddenSession):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrSessionClosed),
		errors.Is(err, services.ErrDurationRegression):
		fail(c, http.StatusConflict, ErrCodeInvalidState, err.Error())
	case errors.Is(err, services.ErrDuplicateSession):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// DTOs
//

// RecordMoodRequest is the JSON payload for recording a mood.
type RecordMoodRequest struct {
	// Mood is one of happy, sad, neutral.
	Mood string `json:"mood" binding:"required" example:"happy"`
	// Source is user_input (default) or inferred.
	Source string `json:"source" example:"user_input"`
	// Confidence applies to inferred samples only; user input is pinned.
	Confidence float64 `json:"confidence" example:"0.8"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// MoodHistoryResponse wraps a page of mood samples and pagination information.
type MoodHistoryResponse struct {
	Samples    []domain.MoodSample `json:"samples"`
	Pagination Pagination          `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// RecordMood godoc
// @ID          recordMood
// @Summary     Record the user's mood
// @Description Appends a mood sample to the user's history and refreshes the live profile.
// @Tags        Mood
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.RecordMoodRequest  true  "Mood payload"
//
// @Success     201  {object}  domain.MoodSample
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /mood [post]
func (h *Handlers) RecordMood(c *gin.Context) {
	var req RecordMoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.moodSvc.Record(c.Request.Context(), userID(c), req.Mood, req.Source, req.Confidence)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// CurrentMood godoc
// @ID          currentMood
// @Summary     Get the current mood
// @Description Returns the live mood profile. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Mood
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object} domain.MoodProfile
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "No mood recorded"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /mood [get]
func (h *Handlers) CurrentMood(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.moodSvc.(*services.MoodService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.MoodStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"mood:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	p, err := h.moodSvc.Current(ctx, uid)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// MoodTrend godoc
// @ID          moodTrend
// @Summary     Mood trend over a trailing window
// @Description Aggregates the user's mood samples over the last N hours (default 24).
// @Tags        Mood
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       hours      query   int     false "Window in hours"        minimum(1) default(24)
//
// @Success     200  {object} services.MoodTrend
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /mood/trend [get]
func (h *Handlers) MoodTrend(c *gin.Context) {
	hours := utils.AtoiDefault(c.Query("hours"), 24)

	trend, err := h.moodSvc.Trend(c.Request.Context(), userID(c), hours)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, trend)
}

// MoodHistory godoc
// @ID          moodHistory
// @Summary     List mood history (paginated)
// @Description Returns a page of the user's mood samples, newest first.
// @Tags        Mood
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.MoodHistoryResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /mood/history [get]
func (h *Handlers) MoodHistory(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.moodSvc.HistoryPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := MoodHistoryResponse{
		Samples: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
