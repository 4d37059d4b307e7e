// Package server exposes the dashboards, the assistant and user
// administration over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"billing/internal/admin"
	"billing/internal/assistant"
	"billing/internal/dataset"
	"billing/internal/identity"
	"billing/internal/logger"
	"billing/internal/metrics"
)

// UserAdmin is the user administration service.
type UserAdmin interface {
	ListUsers(ctx context.Context, caller *admin.Caller) ([]admin.UserRecord, error)
	CreateUser(ctx context.Context, caller *admin.Caller, req admin.CreateUserRequest) (string, error)
	UpdateUser(ctx context.Context, caller *admin.Caller, req admin.UpdateUserRequest) (string, error)
	DeleteUser(ctx context.Context, caller *admin.Caller, id string) (string, error)
	SendWelcomeEmail(ctx context.Context, caller *admin.Caller, id string) (string, error)
	SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error)
}

// TokenVerifier checks bearer ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*identity.Token, error)
}

// SnapshotLoader fetches the billing dataset.
type SnapshotLoader interface {
	Load(ctx context.Context) (*dataset.Snapshot, error)
}

// Assistant answers questions about the figures on screen.
type Assistant interface {
	Ask(ctx context.Context, question string, history []assistant.Message, dataContext string) (string, error)
	SummarizeComparison(ctx context.Context, location string, diff metrics.PeriodDiff) (string, error)
}

// Deps are the collaborators of the server.
type Deps struct {
	Admin     UserAdmin
	Tokens    TokenVerifier
	Dataset   SnapshotLoader
	Assistant Assistant // nil disables the assistant routes
	Rating    metrics.RatingConfig
	Location  *time.Location // zone of the sheet dates; nil means time.Local

	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	admin     UserAdmin
	tokens    TokenVerifier
	dataset   SnapshotLoader
	assistant Assistant
	rating    metrics.RatingConfig
	location  *time.Location
	origins   []string
	timeout   time.Duration
	log       zerolog.Logger
}

// New creates a server.
func New(deps Deps) *Server {
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	location := deps.Location
	if location == nil {
		location = time.Local
	}
	return &Server{
		admin:     deps.Admin,
		tokens:    deps.Tokens,
		dataset:   deps.Dataset,
		assistant: deps.Assistant,
		rating:    deps.Rating,
		location:  location,
		origins:   origins,
		timeout:   timeout,
		log:       logger.WithComponent("server"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/dashboards", s.handleListDashboards)
			r.Get("/dashboards/{dashboard}", s.handleDashboard)
			r.Get("/clients", s.handleListClients)
			r.Get("/clients/{code}", s.handleClient)
			r.Post("/assistant/ask", s.handleAsk)
			r.Post("/assistant/compare", s.handleCompare)

			r.Route("/users", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Put("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
				r.Post("/{id}/welcome", s.handleWelcome)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves on addr until ctx is canceled, then shuts down within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	const op = "Run"

	api := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- api.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("%s: server error: %w", op, err)

	case <-ctx.Done():
		s.log.Info().Msg("Shutdown started")
		defer s.log.Info().Msg("Shutdown complete")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := api.Shutdown(sctx); err != nil {
			_ = api.Close()
			return fmt.Errorf("%s: could not stop server gracefully: %w", op, err)
		}
	}
	return nil
}
