// Package middleware contains the Gin middleware of the back-office REST API:
// identity and correlation ids, redacted access logs, panic recovery,
// Prometheus metrics, idempotent inserts, rate limiting and security headers.
//
// Recommended order: RequestID, Identity, RedactingLogger, Recovery. That
// way every log line and error envelope carries the request id and user.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// UserIDKey is the Gin context key holding the caller's user id.
	UserIDKey = "userID"
	// HeaderUserID carries the caller's user id. There is no authentication
	// layer; the value is trusted as-is and recorded in the audit trail.
	HeaderUserID = "X-User-ID"
	// AnonymousUser is used when no X-User-ID is sent.
	AnonymousUser = "anonimo"

	maxUserIDLen = 128
)

// RequestID reuses an incoming X-Request-ID or generates a UUID, echoes it on
// the response and stores it in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Identity stores the X-User-ID header (trimmed, capped at 128 bytes) under
// UserIDKey, falling back to AnonymousUser. A value already set upstream wins.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == AnonymousUser {
			uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
			if len(uid) > maxUserIDLen {
				uid = uid[:maxUserIDLen]
			}
			if uid == "" {
				uid = AnonymousUser
			}
			c.Set(UserIDKey, uid)
		}
		c.Next()
	}
}

// UserID returns the caller set by Identity, or AnonymousUser.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(UserIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousUser
}

// RequestIDFrom returns the correlation id set by RequestID.
func RequestIDFrom(c *gin.Context) string {
	rid, _ := c.Get(requestIDKey)
	if s := asString(rid); s != "" {
		return s
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// Recovery turns a panic into the standard JSON 500 envelope and logs the
// stack with the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := RequestIDFrom(c)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if c.Writer.Written() {
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				c.Header(requestIDHeader, rid)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": rid,
					"code":       "internal_error",
					"message":    "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by RedactingLogger,
// or the global logger when there is none.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to n bytes plus an ellipsis; n <= 0 disables it.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
