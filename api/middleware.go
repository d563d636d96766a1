package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nmapcluster/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an identifier that is echoed
// in the response and attached to all log lines written for the request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		ctx := logging.ContextAttrs(c.Request.Context(), slog.String("request_id", id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLoggingMiddleware writes one line per request. Health checks and
// swagger assets are logged at debug so pollers do not flood the log; the
// host route logs the address asked for. The request id arrives through the
// request context.
func RequestLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case route == "/health" || strings.HasPrefix(route, "/swagger/"):
			level = slog.LevelDebug
		}

		attrs := []slog.Attr{
			slog.String("client_ip", c.ClientIP()),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status_code", status),
			slog.Float64("latency_ms", float64(time.Since(start))/float64(time.Millisecond)),
		}
		if addr := c.Param("addr"); addr != "" {
			attrs = append(attrs, slog.String("host", addr))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		logger.LogAttrs(c.Request.Context(), level, "request completed", attrs...)
	}
}

// AuthMiddleware requires "Authorization: Bearer <key>" (scheme matched
// case-insensitively). Keys are compared as SHA-256 digests in constant time,
// so neither content nor length leaks through timing.
func AuthMiddleware(expectedKey string, logger *slog.Logger) gin.HandlerFunc {
	expected := sha256.Sum256([]byte(expectedKey))
	return func(c *gin.Context) {
		reason := ""
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		switch {
		case !found && scheme == "":
			reason = "missing authorization header"
		case !strings.EqualFold(scheme, "Bearer"):
			reason = "unsupported authorization scheme"
		default:
			provided := sha256.Sum256([]byte(strings.TrimSpace(token)))
			if subtle.ConstantTimeCompare(provided[:], expected[:]) != 1 {
				reason = "invalid api key"
			}
		}
		if reason != "" {
			logger.WarnContext(c.Request.Context(), "status API request rejected",
				"reason", reason, "client_ip", c.ClientIP(), "route", c.FullPath())
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}

// RateLimitMiddleware enforces a fixed-window per-IP rate limit backed by the
// same Redis that holds the queues.
func RateLimitMiddleware(client *redis.Client, prefix string, limit int64, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:ratelimit:%s", prefix, c.ClientIP())
		pipe := client.TxPipeline()
		counter := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.ErrorContext(ctx, "rate limiter redis error", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		if counter.Val() > limit {
			logger.WarnContext(ctx, "rate limit exceeded", "client_ip", c.ClientIP(), "count", counter.Val())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers to each response. Inventory
// data is never cached.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		headers.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'")
		c.Next()
	}
}
