package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bidding-engine/services/bidding/helpers"
	"bidding-engine/utils"

	"github.com/gin-gonic/gin"
)

var errMissingUser = errors.New("missing " + helpers.UserIDHeader + " header")

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
		"user_id": c.GetString(helpers.UserIDKey),
	})
}

// RequireUser takes the caller's identity from the X-User-ID header set by
// the upstream auth layer and rejects requests without one.
func RequireUser(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(helpers.UserIDHeader))
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errMissingUser, "authentication required")
		c.Abort()
		return
	}
	c.Set(helpers.UserIDKey, userID)
	c.Next()
}
