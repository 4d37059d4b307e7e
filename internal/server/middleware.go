package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"billing/internal/admin"
	"billing/internal/logger"
)

type callerKey struct{}

// WithCaller stores the verified caller in ctx.
func WithCaller(ctx context.Context, c *admin.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller set by the authentication middleware.
func CallerFromContext(ctx context.Context) (*admin.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(*admin.Caller)
	return c, ok && c != nil
}

// requestLogger attaches a request scoped logger to the context and logs
// each request once it is served.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithRequestID(middleware.GetReqID(r.Context()))
		r = r.WithContext(log.WithContext(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// authenticate verifies the bearer ID token and stores the caller.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, admin.ErrUnauthenticated.Error(), nil)
			return
		}

		verified, err := s.tokens.VerifyIDToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			log := logger.WithContext(r.Context())
			log.Warn().Err(err).Msg("Rejected ID token")
			writeError(w, http.StatusUnauthorized, admin.ErrUnauthenticated.Error(), nil)
			return
		}

		caller := admin.CallerFromToken(verified)
		log := logger.WithContext(r.Context()).With().Str("user_id", caller.UID).Logger()
		ctx := log.WithContext(WithCaller(r.Context(), caller))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects callers without the admin claim.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, admin.ErrUnauthenticated.Error(), nil)
			return
		}
		if !caller.Admin {
			writeError(w, http.StatusForbidden, admin.ErrPermissionDenied.Error(), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
