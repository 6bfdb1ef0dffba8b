// Package security hardens the HTTP surface: response headers, JSON-only
// bodies with a size cap, request deadlines and per-IP throttling.
package security

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxBodyBytes int64 `json:"max_body_bytes"`
	// RequestsPerMinute is the sustained per-IP rate. Zero disables throttling.
	RequestsPerMinute int           `json:"requests_per_minute"`
	Burst             int           `json:"burst"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	// LimiterIdleTTL evicts limiters of clients not seen for this long.
	LimiterIdleTTL time.Duration `json:"limiter_idle_ttl"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxBodyBytes:      1 << 20,
		RequestsPerMinute: 600,
		Burst:             50,
		RequestTimeout:    30 * time.Second,
		LimiterIdleTTL:    10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SecurityMiddleware provides request hardening middleware
type SecurityMiddleware struct {
	config     SecurityConfig
	ipLimiters map[string]*clientLimiter
	lastSweep  time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &SecurityMiddleware{
		config:     config,
		ipLimiters: make(map[string]*clientLimiter),
		now:        time.Now,
	}
}

// SecurityHeaders sets headers suitable for a JSON API.
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
	c.Next()
}

// ValidateContentType requires JSON bodies on requests that carry one and
// caps their size.
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		c.Next()
		return
	}

	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "application/json" {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "content type must be application/json",
		})
		return
	}

	if sm.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout bounds the request context.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	if sm.config.RequestTimeout <= 0 {
		c.Next()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))
	c.Next()
}

// RateLimitByIP throttles clients with a token bucket per IP.
func (sm *SecurityMiddleware) RateLimitByIP(c *gin.Context) {
	if sm.config.RequestsPerMinute <= 0 {
		c.Next()
		return
	}

	if !sm.limiterFor(c.ClientIP()).Allow() {
		c.Header("Retry-After", "60")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded for IP",
			"retry_after": "60",
		})
		return
	}
	c.Next()
}

func (sm *SecurityMiddleware) limiterFor(ip string) *rate.Limiter {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	if sm.config.LimiterIdleTTL > 0 && now.Sub(sm.lastSweep) > sm.config.LimiterIdleTTL {
		sm.evictIdle(now)
		sm.lastSweep = now
	}

	entry, ok := sm.ipLimiters[ip]
	if !ok {
		rps := rate.Limit(float64(sm.config.RequestsPerMinute) / 60.0)
		entry = &clientLimiter{limiter: rate.NewLimiter(rps, sm.config.Burst)}
		sm.ipLimiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (sm *SecurityMiddleware) evictIdle(now time.Time) {
	for ip, entry := range sm.ipLimiters {
		if now.Sub(entry.lastSeen) > sm.config.LimiterIdleTTL {
			delete(sm.ipLimiters, ip)
		}
	}
}

// TrackedClients is the number of clients with a live limiter.
func (sm *SecurityMiddleware) TrackedClients() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.ipLimiters)
}
