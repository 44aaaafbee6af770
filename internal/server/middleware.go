package server

import (
	"sync"
	"time"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/gin-gonic/gin"
)

const contextPrincipalKey = "principal"

func (s *Server) AuthRequired(roles ...authdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if len(roles) > 0 {
			allowed := false
			for _, role := range roles {
				if principal.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				AbortWithError(c, ErrForbidden)
				return
			}
		}

		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) (*authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*authdomain.Principal)
	return principal, ok
}

// rateLimiter is a fixed-window per-key counter used to slow down
// credential stuffing on the login endpoints.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateBucket),
	}
}

func (l *rateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[key]
	if !ok || now.After(bucket.resetAt) {
		l.buckets[key] = &rateBucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if bucket.count >= l.limit {
		return false
	}
	bucket.count++
	return true
}
