package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"dataglove/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      Session journal
// @Description  Connection, source-loss, calibration and refresh-rate events. A date-only 'to' covers that whole day.
// @Tags         events
// @Produce      json
// @Param        from  query   string  false  "Start of range"  example(2026-10-01)
// @Param        to    query   string  false  "End of range, inclusive"  example(2026-10-31)
// @Param        type  query   string  false  "Event type"  Enums(CONNECT,DISCONNECT,SOURCE_LOST,CALIBRATION_MIN,CALIBRATION_MAX,CALIBRATION_RESET,REFRESH_RATE)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/events [get]
// @Security     BearerAuth
func (h *Handler) getEvents(c *gin.Context) {
	var (
		from, to  time.Time
		eventType = c.Query("type")
		err       error
	)
	if qs := c.Query("from"); qs != "" {
		if from, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		if to, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
	}

	events, err := h.services.EventLog.List(c.Request.Context(), service.LogFilter{
		From: from,
		To:   to,
		Type: eventType,
	})
	if err != nil {
		h.respondError(c, "events_list_failed", err, "from", from, "to", to, "type", eventType)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format %q", s)
}
