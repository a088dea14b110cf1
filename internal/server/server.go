// Package server provides the HTTP server and routing for the tracker.
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

	"github.com/aristath/papertrail/internal/di"
	benchmarkhandlers "github.com/aristath/papertrail/internal/modules/benchmark/handlers"
	decisionshandlers "github.com/aristath/papertrail/internal/modules/decisions/handlers"
	evaluationhandlers "github.com/aristath/papertrail/internal/modules/evaluation/handlers"
	ledgerhandlers "github.com/aristath/papertrail/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/aristath/papertrail/internal/modules/portfolio/handlers"
	snapshotshandlers "github.com/aristath/papertrail/internal/modules/snapshots/handlers"
	"github.com/aristath/papertrail/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Container *di.Container // DI container with all services
	Jobs      *di.JobInstances
	Scheduler *scheduler.Scheduler
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	container      *di.Container
	port           int
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		c.Databases(),
		c.EventRepo,
		c.PositionRepo,
		c.RefreshService,
		c.BackupService,
	)
	if cfg.Jobs != nil {
		systemHandlers.SetJobs(cfg.Scheduler, cfg.Jobs.All()...)
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		container:      c,
		port:           cfg.Port,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 7 * time.Minute, // decision runs wait on the proposer
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/backups", s.systemHandlers.HandleListBackups)
			r.Post("/prices/refresh", s.systemHandlers.HandleRefreshPrices)
			r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
		})

		ledgerhandlers.NewHandler(c.LedgerStore, c.ReplayEngine, c.Clock, s.log).RegisterRoutes(r)
		snapshotshandlers.NewHandler(c.Materializer, c.Config.InceptionDate, c.Clock, s.log).RegisterRoutes(r)
		benchmarkhandlers.NewHandler(c.Aligner, s.log).RegisterRoutes(r)
		decisionshandlers.NewHandler(c.Executor, c.Clock, s.log).RegisterRoutes(r)
		evaluationhandlers.NewHandler(c.Evaluator, c.Clock, s.log).RegisterRoutes(r)
		portfoliohandlers.NewHandler(c.PortfolioService, c.Clock, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
