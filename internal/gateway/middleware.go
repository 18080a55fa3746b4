package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Silviu2326/Dentaflow-sub002/internal/iam"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/monitoring"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Configure appropriately for production
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs every request with its status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		s.logger.HTTPRequest(r.Method, r.URL.Path, clientIP(r),
			recorder.statusCode, duration.Milliseconds())
		monitoring.ObserveHTTPRequest(r.Method, r.URL.Path, recorder.statusCode, duration)
	})
}

// authMiddleware validates the bearer token and stores the claims in the
// request context under types.ClaimsContextKey
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized,
				"missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized,
				"invalid authorization header format"))
			return
		}

		claims, err := s.tokenValidator.ValidateJWT(parts[1])
		if err != nil {
			s.logger.WithError(err).Debug("Token validation failed")
			s.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized,
				"invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), types.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware throttles authenticated callers per user ID
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := r.Context().Value(types.ClaimsContextKey).(*types.UserClaims)
		if !ok {
			s.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized,
				"authentication required"))
			return
		}

		allowed, err := s.limiter.Allow(r.Context(), claims.UserID)
		if err != nil {
			// A broken limiter backend should not take the API down.
			s.logger.WithError(err).Warn("Rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			monitoring.RateLimitRejection()
			s.logger.Security("rate_limit_exceeded", claims.UserID, map[string]interface{}{
				"path": r.URL.Path,
			})
			s.writeError(w, types.NewRateLimitError(types.ErrCodeRateLimitExceeded,
				"too many requests, slow down"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireModule returns a middleware that enforces the module:action
// permission derived from the HTTP method. POST on an action sub-path
// (check-in, reschedule and the like) counts as an update of an existing
// resource rather than a creation.
func (s *Server) requireModule(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(types.ClaimsContextKey).(*types.UserClaims)
			if !ok {
				s.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized,
					"authentication required"))
				return
			}

			permission := module + ":" + actionForRequest(r)
			if !iam.HasPermission(claims.Role, claims.Permissions, permission) {
				s.logger.Security("permission_denied", claims.UserID, map[string]interface{}{
					"permission": permission,
					"role":       claims.Role,
				})
				s.writeError(w, types.NewAuthorizationError(types.ErrCodeForbidden,
					"insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requireRole returns a middleware that only admits the listed roles
func (s *Server) requireRole(roles ...types.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(types.ClaimsContextKey).(*types.UserClaims)
			if !ok {
				s.writeError(w, types.NewAuthenticationError(types.ErrCodeUnauthorized,
					"authentication required"))
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			s.logger.Security("role_denied", claims.UserID, map[string]interface{}{
				"role": claims.Role,
			})
			s.writeError(w, types.NewAuthorizationError(types.ErrCodeForbidden,
				"insufficient permissions"))
		})
	}
}

// actionSubPaths are POST endpoints that mutate an existing resource
var actionSubPaths = []string{
	"/checkin", "/reschedule", "/no-show", "/reminder", "/confirmation",
	"/mfa", "/mfa/verify", "/password/reset",
}

func actionForRequest(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		for _, suffix := range actionSubPaths {
			if strings.HasSuffix(r.URL.Path, suffix) {
				return "update"
			}
		}
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return r.RemoteAddr
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var clinicErr *types.ClinicError
	if !errors.As(err, &clinicErr) {
		clinicErr = types.NewInternalError(types.ErrCodeInternalError,
			"an unexpected error occurred", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(clinicErr.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"type":    clinicErr.Type,
			"code":    clinicErr.Code,
			"message": clinicErr.Message,
		},
	})
}

// responseRecorder captures the response status code for logging
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
