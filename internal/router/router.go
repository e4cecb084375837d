// Package router wires the HTTP surface: routes, CORS, request logging
// with per-request ids, and optional JWT validation.
package router

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/damiencorpataux/relrest/internal/auth"
	"github.com/damiencorpataux/relrest/internal/config"
	"github.com/damiencorpataux/relrest/internal/handler"
	"github.com/damiencorpataux/relrest/internal/logger"
)

// New builds the service mux. validator may be nil, in which case every
// caller is anonymous.
func New(cfg *config.Config, h *handler.Handler, validator *auth.JWTValidator) http.Handler {
	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		fn = withLogging(fn)
		if validator != nil {
			fn = withAuth(validator, fn)
		}
		return withCORS(cfg.CORS.AllowOrigin, cfg.CORS.AllowCredentials, fn)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/resource/", wrap(h.Resource))
	mux.HandleFunc("/decode/", wrap(h.Decode))
	mux.HandleFunc("/resource-index", wrap(h.ResourceIndex))
	return mux
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)

		fields := map[string]any{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		switch {
		case sw.status >= 500:
			logger.Error("response", fields)
		case sw.status >= 400:
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	}
}

// withAuth validates a bearer token when one is presented and stores
// its claims on the context. Requests without a token proceed as
// anonymous; the rights table decides what anonymous may do.
func withAuth(validator *auth.JWTValidator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}
		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.Warn("jwt_rejected", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
