package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/server/middleware"
	"github.com/gosuda/vibetodo/internal/service"
	"github.com/gosuda/vibetodo/internal/transfer"
	"github.com/gosuda/vibetodo/web"
)

// Server is the HTTP server that wires the browser UI, the JSON API and
// their middleware around one task service.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	svc        *service.Service
	pages      *template.Template
	now        func() time.Time
}

// New creates a Server with all routes wired. ctx bounds background work
// started by the middleware, such as rate limiter cleanup.
func New(ctx context.Context, cfg *config.Config, svc *service.Service) (*Server, error) {
	pages, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("server.New: parsing templates: %w", err)
	}

	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Task-Count", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		svc:    svc,
		pages:  pages,
		now:    time.Now,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadTimeout:       cfg.Server.ReadTimeout.Duration,
			ReadHeaderTimeout: cfg.Server.ReadTimeout.Duration,
			WriteTimeout:      cfg.Server.WriteTimeout.Duration,
		},
	}

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Everything else sits behind the rate limiter and the access token.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
		r.Use(middleware.AccessToken(cfg.Server.AccessTokenHash))

		r.Route("/api/v1", func(r chi.Router) {
			apiConfig := huma.DefaultConfig("Vibe Todo API", transfer.Version)
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, svc)
		})

		registerUIRoutes(r, s)
	})

	if cfg.Server.AccessTokenHash == "" {
		log.Warn().Str("addr", cfg.Server.Addr).Msg("web access token not set; UI and API are unauthenticated")
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Str("backend", s.svc.Backend()).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
