// Watch-session HTTP handlers.
//
// This file exposes REST endpoints for the session lifecycle:
//   - POST   /sessions                (start)
//   - PUT    /sessions/{id}/progress  (heartbeat with break nudges)
//   - POST   /sessions/{id}/end       (close + fold into daily metrics)
//   - GET    /sessions/open           (list open sessions)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-watchwell-backend/internal/http/middleware"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/services"
)

// middlewareGetIdempotencyKey is a seam over middleware.GetIdempotencyKey so
// tests can inject keys without running the validator middleware.
var middlewareGetIdempotencyKey = middleware.GetIdempotencyKey

// defaultIdempotencyTTL applies when Handlers.IdempotencyTTL is unset.
const defaultIdempotencyTTL = 24 * time.Hour

//
// DTOs
//

// StartSessionRequest is the JSON payload for opening a watch session.
type StartSessionRequest struct {
	// ContentID identifies the content being watched.
	ContentID string `json:"content_id" binding:"required" example:"movie-42"`
	// Mood is the user's mood when the session starts.
	Mood string `json:"mood" binding:"required" example:"happy"`
}

// UpdateSessionRequest is the JSON payload for a progress heartbeat.
type UpdateSessionRequest struct {
	// DurationMinutes is the absolute watched time so far, not a delta.
	DurationMinutes *int `json:"duration_minutes" binding:"required" example:"30"`
}

// EndSessionRequest is the JSON payload for closing a session.
type EndSessionRequest struct {
	// UserSatisfied records whether the user enjoyed the content.
	UserSatisfied bool `json:"user_satisfied" example:"true"`
}

//
// Handlers
//

// StartSession godoc
// @ID          startSession
// @Summary     Start a watch session
// @Description Opens a session for the current user and content; the time period is derived from the server clock.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.StartSessionRequest  true  "Start payload"
//
// @Success     201  {object}  domain.WatchSession
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Session already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	contentID := strings.TrimSpace(req.ContentID)
	if contentID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}

	sess, err := h.sessSvc.Start(c.Request.Context(), userID(c), contentID, strings.ToLower(strings.TrimSpace(req.Mood)))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, sess)
}

// UpdateSession godoc
// @ID          updateSession
// @Summary     Report session progress
// @Description Advances the session's absolute duration; responds with break and live risk signals.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.UpdateSessionRequest  true  "Progress payload"
//
// @Success     200  {object}  services.ProgressResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Foreign session"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Closed or regressing"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/{id}/progress [put]
func (h *Handlers) UpdateSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DurationMinutes == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "duration_minutes required")
		return
	}

	res, err := h.sessSvc.UpdateProgress(c.Request.Context(), userID(c), sessionID, *req.DurationMinutes)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// EndSession godoc
// @ID          endSession
// @Summary     End a watch session
// @Description Closes the session exactly once, folds it into the day's metrics, and returns the rewritten scores.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Session ID (UUID)"      format(uuid)
// @Param       body       body    handlers.EndSessionRequest  false  "End payload"
//
// @Success     200  {object}  services.EndResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Foreign session"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already completed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/{id}/end [post]
func (h *Handlers) EndSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req EndSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	ctx := c.Request.Context()
	uid := userID(c)

	// Keyed retries of an already-closed session replay the prior result
	// instead of surfacing a conflict.
	idemKey, _ := middlewareGetIdempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.sessSvc.(*services.SessionService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, uid, sessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				prior, perr := svc.CompletedResult(ctx, uid, sessionID)
				if perr == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, rec.Status, prior)
					return
				}
			}
		}
	}

	res, err := h.sessSvc.End(ctx, uid, sessionID, req.UserSatisfied)
	if err != nil {
		failFromService(c, err)
		return
	}

	if idemKey != "" {
		if svc, okSvc := h.sessSvc.(*services.SessionService); okSvc && svc.DB != nil {
			ttl := h.IdempotencyTTL
			if ttl <= 0 {
				ttl = defaultIdempotencyTTL
			}
			// Best-effort: a failed record write must not fail the close.
			_, _ = repo.CreateIdempotency(ctx, svc.DB, uid, sessionID, idemKey, http.StatusOK, ttl)
		}
	}
	ok(c, http.StatusOK, res)
}

// OpenSessions godoc
// @ID          openSessions
// @Summary     List open sessions
// @Description Returns the user's currently open sessions, oldest first.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}   domain.WatchSession
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/open [get]
func (h *Handlers) OpenSessions(c *gin.Context) {
	items, err := h.sessSvc.Open(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}
