package handlers

import (
	"net/http"

	"dataglove/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK           = "ok"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

// ConnectRequest names the ports to attach. Either may be omitted, not both.
type ConnectRequest struct {
	AngleSource    string `json:"angle_source" example:"/dev/ttyUSB0"`
	PressureSource string `json:"pressure_source" example:"sim:pressure"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     statusOK,
		"ws_clients": h.hub.Clients(),
	})
}

// @Summary      Current hand pose
// @Description  Consistent snapshot of joint angles and fingertip pressures
// @Tags         pose
// @Produce      json
// @Success      200  {object}  dataglove.HandPose
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/pose [get]
// @Security     BearerAuth
func (h *Handler) getPose(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.GetCurrentPose())
}

// @Summary      List sources
// @Tags         connection
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "sources"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sources [get]
// @Security     BearerAuth
func (h *Handler) listSources(c *gin.Context) {
	ids, err := h.services.ListSources()
	if err != nil {
		h.respondError(c, "sources_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": ids})
}

// @Summary      Connect glove
// @Tags         connection
// @Accept       json
// @Produce      json
// @Param        body  body  ConnectRequest  true  "Sources to attach"
// @Success      200   {object}  map[string]interface{}  "status, sources"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/connection [post]
// @Security     BearerAuth
func (h *Handler) connect(c *gin.Context) {
	var req ConnectRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	err := h.services.Connect(c.Request.Context(), service.ConnectParams{
		AngleSource:    req.AngleSource,
		PressureSource: req.PressureSource,
	})
	if err != nil {
		h.respondError(c, "glove_connect_failed", err, "angle_source", req.AngleSource, "pressure_source", req.PressureSource)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusConnected, "sources": h.services.Sources()})
}

// @Summary      Disconnect glove
// @Tags         connection
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/connection [delete]
// @Security     BearerAuth
func (h *Handler) disconnect(c *gin.Context) {
	if err := h.services.Disconnect(c.Request.Context()); err != nil {
		h.respondError(c, "glove_disconnect_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDisconnected, "sources": h.services.Sources()})
}

// @Summary      Source status
// @Tags         connection
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "sources"
// @Router       /api/v1/connection [get]
// @Security     BearerAuth
func (h *Handler) connectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.services.Sources()})
}
