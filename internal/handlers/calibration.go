package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Calibration state
// @Tags         calibration
// @Produce      json
// @Success      200  {object}  service.CalibrationView
// @Router       /api/v1/calibration [get]
// @Security     BearerAuth
func (h *Handler) getCalibration(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.CalibrationState())
}

// @Summary      Capture calibration minimum
// @Description  Uses the most recent raw angle frame; needs a connected angle source
// @Tags         calibration
// @Produce      json
// @Success      200  {object}  service.CalibrationView
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/calibration/min [post]
// @Security     BearerAuth
func (h *Handler) setCalibrationMin(c *gin.Context) {
	h.calibrate(c, "calibration_min_failed", h.services.SetCalibrationMin)
}

// @Summary      Capture calibration maximum
// @Tags         calibration
// @Produce      json
// @Success      200  {object}  service.CalibrationView
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/calibration/max [post]
// @Security     BearerAuth
func (h *Handler) setCalibrationMax(c *gin.Context) {
	h.calibrate(c, "calibration_max_failed", h.services.SetCalibrationMax)
}

// @Summary      Reset calibration
// @Tags         calibration
// @Produce      json
// @Success      200  {object}  service.CalibrationView
// @Router       /api/v1/calibration/reset [post]
// @Security     BearerAuth
func (h *Handler) resetCalibration(c *gin.Context) {
	h.calibrate(c, "calibration_reset_failed", h.services.ResetCalibration)
}

func (h *Handler) calibrate(c *gin.Context, logKey string, trigger func(context.Context) error) {
	if err := trigger(c.Request.Context()); err != nil {
		h.respondError(c, logKey, err)
		return
	}
	c.JSON(http.StatusOK, h.services.CalibrationState())
}
