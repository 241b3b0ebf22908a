// Wellness HTTP handlers.
//
// This file exposes the dashboard endpoint:
//   - GET /wellness/dashboard
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WellnessDashboard godoc
// @ID          wellnessDashboard
// @Summary     Wellness dashboard
// @Description Returns today's aggregates, risk/wellness scores, and the trailing seven-day trend.
// @Tags        Wellness
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  wellness.Dashboard
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wellness/dashboard [get]
func (h *Handlers) WellnessDashboard(c *gin.Context) {
	d, err := h.wellSvc.Dashboard(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, d)
}
