package routes

import (
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stakeledger/internal/metrics"
	"stakeledger/internal/middleware"
	"stakeledger/pkg/config"
)

// Options configures the authenticated route groups.
type Options struct {
	OperatorToken string
	Signature     middleware.SignatureConfig
	RateLimit     middleware.RateLimiterConfig
}

// OptionsFromEnv reads OPERATOR_TOKEN, SIGNATURE_MAX_AGE, RATE_LIMIT_RPS and
// RATE_LIMIT_BURST.
func OptionsFromEnv() Options {
	return Options{
		OperatorToken: os.Getenv("OPERATOR_TOKEN"),
		Signature: middleware.SignatureConfig{
			MaxAge: config.EnvDuration("SIGNATURE_MAX_AGE", 5*time.Minute),
		},
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: config.EnvFloat("RATE_LIMIT_RPS", 5),
			Burst:             config.EnvInt("RATE_LIMIT_BURST", 10),
		},
	}
}

// SetupRoutes initializes and returns the Gin router with all routes configured
func SetupRouter(opts Options) *gin.Engine {
	r := gin.Default()
	r.Use(metrics.Middleware())

	// Add health check endpoint
	r.Any("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Configure CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Get allowed origins from environment variable
		// Format: comma-separated list, e.g., "http://localhost:3000,http://localhost:3001"
		allowedOriginsStr := os.Getenv("ALLOWED_ORIGINS")
		var allowedOrigins []string

		if allowedOriginsStr != "" {
			// Split by comma and trim whitespace
			origins := strings.Split(allowedOriginsStr, ",")
			for _, o := range origins {
				trimmed := strings.TrimSpace(o)
				if trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		}

		// Check if the request origin is in the allowed list
		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		// 确保包含所有必要的请求头
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Signer, X-Signature, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

		r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Signed routes carry the caller's identity; the limiter then buckets by signer.
	signed := gin.HandlersChain{
		middleware.RequireSignature(opts.Signature),
		middleware.RateLimiterMiddleware(opts.RateLimit),
	}
	operator := gin.HandlersChain{middleware.RequireOperatorToken(opts.OperatorToken)}

	SetupPoolRoutes(r, signed)
	SetupEventRoutes(r)
	SetupTokenAccountRoutes(r, operator)

	return r
}
