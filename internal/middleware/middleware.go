package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	clients = make(map[string]*rateLimiter)
	mu      sync.Mutex
)

func RateLimit(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip rate limiting in development mode
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		ip := c.ClientIP()

		mu.Lock()
		defer mu.Unlock()

		if limiter, exists := clients[ip]; exists {
			limiter.lastSeen = time.Now()
			if !limiter.limiter.Allow() {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
				c.Abort()
				return
			}
		} else {
			clients[ip] = &rateLimiter{
				limiter:  rate.NewLimiter(rate.Every(time.Second/20), 20),
				lastSeen: time.Now(),
			}
		}

		cleanupOldClients()
		c.Next()
	}
}

// AuthRateLimit is the tighter limit in front of the login bootstrap and
// the token exchange.
func AuthRateLimit(cfg *config.Config) gin.HandlerFunc {
	authClients := make(map[string]*rateLimiter)
	var authMu sync.Mutex

	return func(c *gin.Context) {
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		ip := c.ClientIP()

		authMu.Lock()
		defer authMu.Unlock()

		if limiter, exists := authClients[ip]; exists {
			limiter.lastSeen = time.Now()
			if !limiter.limiter.Allow() {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Authentication rate limit exceeded"})
				c.Abort()
				return
			}
		} else {
			authClients[ip] = &rateLimiter{
				limiter:  rate.NewLimiter(rate.Every(time.Second*2), 10),
				lastSeen: time.Now(),
			}
		}

		for ip, client := range authClients {
			if time.Since(client.lastSeen) > 30*time.Minute {
				delete(authClients, ip)
			}
		}

		c.Next()
	}
}

func cleanupOldClients() {
	for ip, client := range clients {
		if time.Since(client.lastSeen) > 10*time.Minute {
			delete(clients, ip)
		}
	}
}

func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := false
		for _, allowedOrigin := range origins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SessionRequired guards every page except the entry page: no stored
// session means an immediate redirect to the login bootstrap. This is
// normal control flow, not an error.
func SessionRequired(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Read()
		if err != nil {
			logger.Error("Failed to read session store", "error", err)
		}
		if sess == nil {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		c.Set("session", sess)
		c.Next()
	}
}

// CurrentSession returns the session placed by SessionRequired.
func CurrentSession(c *gin.Context) *session.Session {
	value, exists := c.Get("session")
	if !exists {
		return nil
	}
	sess, ok := value.(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip security headers in development mode to allow browser automation tools
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		// The app runs inside the LINE in-app browser; framing by LINE must stay allowed.
		c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https://profile.line-scdn.net https://*.line-scdn.net; frame-ancestors 'self' https://liff.line.me")
		c.Next()
	}
}

func LogRequests() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s %s\n",
			param.TimeStamp.Format("2006/01/02 15:04:05"),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
			param.ClientIP,
		)
	})
}

func TrimSpaces() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "POST" || c.Request.Method == "PATCH" {
			if err := c.Request.ParseForm(); err == nil {
				for key, values := range c.Request.PostForm {
					for i, value := range values {
						c.Request.PostForm[key][i] = strings.TrimSpace(value)
					}
				}
			}
		}
		c.Next()
	}
}
