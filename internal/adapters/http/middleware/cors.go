package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsConfig is the browser policy for the diary client. AllowOrigins is
// filled in by CORS.
func corsConfig() cors.Config {
	return cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Content-Type", "Authorization", "X-Request-ID", "X-Correlation-ID", "traceparent",
		},
		ExposeHeaders: []string{
			"X-Request-ID", "X-Correlation-ID", "X-Trace-ID", "Retry-After",
		},
		MaxAge: 10 * time.Minute,
	}
}

// CORS lets the diary client call the gateway from a browser. An empty
// allow-list admits any origin with "*". Preflight requests from an allowed
// origin end here with 204; any request from an origin that is not allowed
// is rejected with 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := corsConfig()

	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cors.New(cfg)
	}

	cfg.AllowOrigins = make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		cfg.AllowOrigins = append(cfg.AllowOrigins, strings.TrimRight(o, "/"))
	}

	return cors.New(cfg)
}
