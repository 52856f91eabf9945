package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ksred/curio-api/internal/types"
	"github.com/ksred/curio-api/pkg/response"
)

const (
	principalKey = "principal"
	requestIDKey = "requestID"

	RequestIDHeader = "X-Request-ID"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex

	// Configure limits per endpoint type
	authLimit     = rate.Limit(10.0 / 60.0)   // 10 requests per minute
	orderLimit    = rate.Limit(100.0 / 60.0)  // 100 requests per minute
	bidLimit      = rate.Limit(300.0 / 60.0)  // 300 requests per minute
	adminLimit    = rate.Limit(1000.0 / 60.0) // 1000 requests per minute
	cleanupOnce   sync.Once
	visitorMaxAge = 3 * time.Minute
)

func limitFor(path string) (rate.Limit, int) {
	switch {
	case strings.HasPrefix(path, "/api/v1/auth"):
		return authLimit, 5
	case strings.HasPrefix(path, "/api/v1/orders"):
		return orderLimit, 20
	case strings.HasPrefix(path, "/api/v1/products"):
		return bidLimit, 20
	case strings.HasPrefix(path, "/api/v1/admin"):
		return adminLimit, 50
	default:
		return rate.Inf, 1 // No limit for other paths
	}
}

func getLimiter(path, clientKey string) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	key := clientKey + ":" + path
	v, exists := visitors[key]
	if !exists {
		limit, burst := limitFor(path)
		v = &visitor{limiter: rate.NewLimiter(limit, burst)}
		visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		mu.Lock()
		for key, v := range visitors {
			if time.Since(v.lastSeen) > visitorMaxAge {
				delete(visitors, key)
			}
		}
		mu.Unlock()
	}
}

// RateLimit throttles each caller per route. Callers are keyed by user once
// authenticated and by client IP before that.
func RateLimit() gin.HandlerFunc {
	cleanupOnce.Do(func() { go cleanupVisitors() })

	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		if p, ok := GetPrincipal(c); ok {
			clientKey = "user-" + strconv.FormatUint(uint64(p.UserID), 10)
		}

		limiter := getLimiter(c.FullPath(), clientKey)
		if !limiter.Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// TokenValidator turns a bearer token into the caller's identity
type TokenValidator interface {
	Authenticate(token string) (types.Principal, error)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// resulting principal on the context
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		principal, err := validator.Authenticate(bearerToken[1])
		if err != nil {
			log.Debug().Err(err).Str("request_id", GetRequestID(c)).Msg("token rejected")
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// RequireAdmin must run after JWTAuth
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication")
			c.Abort()
			return
		}
		if !p.IsAdmin() {
			response.Forbidden(c, types.ErrForbidden.Message)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger tags every request with an id and writes one access log line
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()

		event := log.Info()
		status := c.Writer.Status()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func SetPrincipal(c *gin.Context, p types.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the authenticated caller, if any
func GetPrincipal(c *gin.Context) (types.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return types.Principal{}, false
	}
	p, ok := v.(types.Principal)
	return p, ok
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// ParamID parses a positive numeric path parameter, answering 400 itself
// when it is malformed
func ParamID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
