package handlers

import (
	"net/http"
	"strings"

	"dataglove/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	operatorCtxKey = "operatorId"
	bearerScheme   = "Bearer"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != bearerScheme {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// operatorIdMiddleware admits requests carrying a valid operator token. The operator id is
// stored on the gin context and on the request context, so journal entries record who
// triggered them.
func (h *Handler) operatorIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
		return
	}

	token, ok := bearerToken(header)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header format"})
		return
	}

	operatorID, err := h.services.ParseToken(token)
	if err != nil {
		h.log.Infow("auth_token_rejected", "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set(operatorCtxKey, operatorID)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), operatorID))
	c.Next()
}
