package handlers

import (
	"net/http"

	"dataglove/internal/refresh"

	"github.com/gin-gonic/gin"
)

// RefreshRateRequest selects the refresh cadence in updates per second.
type RefreshRateRequest struct {
	FPS int `json:"fps" binding:"required" example:"30"`
}

// @Summary      Refresh rate
// @Tags         display
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "fps, supported"
// @Router       /api/v1/refresh-rate [get]
// @Security     BearerAuth
func (h *Handler) getRefreshRate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fps": h.services.RefreshRate(), "supported": refresh.Rates})
}

// @Summary      Set refresh rate
// @Tags         display
// @Accept       json
// @Produce      json
// @Param        body  body  RefreshRateRequest  true  "One of 1, 5, 10, 30, 60"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/refresh-rate [put]
// @Security     BearerAuth
func (h *Handler) setRefreshRate(c *gin.Context) {
	var req RefreshRateRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetRefreshRate(c.Request.Context(), req.FPS); err != nil {
		h.respondError(c, "refresh_rate_rejected", err, "fps", req.FPS)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fps": h.services.RefreshRate(), "supported": refresh.Rates})
}
