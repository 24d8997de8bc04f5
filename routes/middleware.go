package routes

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"vidpress/logger"
	"vidpress/models"
	"vidpress/utils"

	"github.com/go-chi/httprate"
)

// CORS sets Cross-Origin Resource Sharing headers. "*" in allowedOrigins
// allows every origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case origin == "":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowAll || allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			// not allowed: no header, the browser blocks it

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per client IP with a sliding window.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		}),
	)
}

// AdminAuth requires a bearer token signed with secret that carries the
// bucket admin scope. With no secret, or when enabled is false, the routes
// behind it answer 404.
func AdminAuth(secret []byte, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 || !enabled {
				writeError(w, http.StatusNotFound, "Not found")
				return
			}

			authHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || token == authHeader {
				writeError(w, http.StatusUnauthorized, "authorization header required")
				return
			}

			claims, err := utils.VerifyAdminJWT(token, utils.VerifyConfig{
				SecretKey:     secret,
				RequiredScope: models.AdminScope,
			})
			if err != nil {
				logger.Warnf("Rejected admin token from %s: %v", r.RemoteAddr, err)
				writeError(w, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
				return
			}
			logger.Debugf("Admin request by %s: %s %s", claims.Subject, r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
