package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	userIDHeader = "X-User-ID"
	userIDKey    = "userID"
)

// RequireUser reads the owner id set by the authenticating gateway.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			Error(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequestLogger logs one line per request through logrus.
func RequestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"user_id":  currentUserID(c),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("HTTP request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request served")
		}
	}
}
