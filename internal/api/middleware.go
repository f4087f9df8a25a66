package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const sessionHeader = "X-Session-Token"

const (
	ctxSessionKey = "session"
	ctxAppKey     = "app"
)

// requestLogger logs each request at debug level with method, path,
// status and latency.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// rateLimiter applies a per-client-IP token bucket.
func (s *Server) rateLimiter() gin.HandlerFunc {
	limit := s.opts.RateLimit
	burst := s.opts.RateBurst
	if limit <= 0 {
		limit = 20
	}
	if burst <= 0 {
		burst = 30
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		limiter, ok := limiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(limit), burst)
			limiters[ip] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// withSession resolves the session token and binds the request to the
// service bundle of the session's restaurant namespace.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(sessionHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		sess := s.sessions.Get(token)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		app, err := s.AppFor(c.Request.Context(), sess.Prefix(s.opts.BasePrefix))
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to build namespace bundle")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}

		c.Set(ctxSessionKey, sess)
		c.Set(ctxAppKey, app)
		c.Next()
	}
}

func appFrom(c *gin.Context) *App {
	return c.MustGet(ctxAppKey).(*App)
}
