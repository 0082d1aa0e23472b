package handlers

import (
	"errors"
	"net/http"

	"dataglove/internal/refresh"
	"dataglove/internal/serialport"
	"dataglove/internal/service"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoSourceSelected),
		errors.Is(err, service.ErrDuplicateSource),
		errors.Is(err, service.ErrInvalidTimeRange),
		errors.Is(err, refresh.ErrUnsupportedRate):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyConnected),
		errors.Is(err, service.ErrOperatorExists),
		errors.Is(err, service.ErrNotConnected),
		errors.Is(err, service.ErrAngleSourceRequired),
		errors.Is(err, service.ErrNoRawFrame):
		return http.StatusConflict
	case errors.Is(err, serialport.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes {"error": ...}. Client-side problems are logged at
// info, the rest at error.
func (h *Handler) respondError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code := statusFor(err)
	fields := append([]interface{}{"err", err, "status", code}, kv...)
	if code >= http.StatusInternalServerError {
		h.log.Errorw(logKey, fields...)
	} else {
		h.log.Infow(logKey, fields...)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
