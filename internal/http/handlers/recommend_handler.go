// Recommendation HTTP handlers.
//
// This file exposes the ensemble endpoint:
//   - POST /recommendations
//
// The client supplies the upstream candidate lists (collaborative and
// content-based); the service blends them with mood affinity and time-of-day
// suitability and throttles the result by the day's addiction risk.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-watchwell-backend/internal/services"
)

// RecommendRequest is the JSON payload for the ensemble blend.
type RecommendRequest struct {
	// Mood the blend is computed for; defaults to neutral when empty.
	Mood string `json:"mood" example:"happy"`
	// Count is the number of recommendations requested (default 10).
	Count int `json:"count" example:"10"`
	// Collaborative is the candidate list from the collaborative recommender.
	Collaborative []services.Candidate `json:"collaborative"`
	// ContentBased is the candidate list from the content-based recommender.
	ContentBased []services.Candidate `json:"content_based"`
}

// Recommend godoc
// @ID          recommend
// @Summary     Blend recommendations
// @Description Merges collaborative and content-based candidates with mood and time-of-day signals into a ranked, risk-throttled set.
// @Tags        Recommendations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.RecommendRequest  true  "Candidate lists"
//
// @Success     200  {object}  services.RecommendationSet
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /recommendations [post]
func (h *Handlers) Recommend(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	mood := strings.ToLower(strings.TrimSpace(req.Mood))
	if mood == "" {
		mood = "neutral"
	}
	count := req.Count
	if count == 0 {
		count = 10
	}

	set, err := h.recSvc.Recommend(c.Request.Context(), userID(c), mood, count, req.Collaborative, req.ContentBased)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, set)
}
