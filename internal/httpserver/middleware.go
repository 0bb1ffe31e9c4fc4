package httpserver

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const claimsKey = "admin_claims"

// requestLogger writes one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: errorBody{
			Kind:    "internal",
			Message: "internal server error",
		}})
	})
}

// ipLimiters hands out one token bucket per client IP. Idle buckets are
// dropped on access once the sweep interval has passed.
type ipLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	entries   map[string]*ipEntry
	now       func() time.Time
}

type ipEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

func newIPLimiters(rps float64, burst int) *ipLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiters{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    30 * time.Minute,
		entries: make(map[string]*ipEntry),
		now:     time.Now,
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > 5*time.Minute {
		for k, e := range l.entries {
			if now.Sub(e.last) > l.idle {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}
	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.last = now
	return e.limiter.AllowN(now, 1)
}

func rateLimit(l *ipLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorBody{
				Kind:      "rate_limited",
				Message:   "too many requests",
				Retriable: true,
			}})
			return
		}
		c.Next()
	}
}

// adminOnly expects "Authorization: Bearer <token>".
func (h *handlers) adminOnly(c *gin.Context) {
	if h.deps.Admin == nil {
		h.writeError(c, errAdminNotConfigured)
		return
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		h.writeError(c, errMissingBearer)
		return
	}
	claims, err := h.deps.Admin.Verify(parts[1])
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}
