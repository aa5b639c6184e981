// Package server provides the HTTP API for computing and browsing fund returns.
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

	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/database"
	"github.com/aristath/navreturns/internal/events"
	"github.com/aristath/navreturns/internal/metrics"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/scheduler"
	"github.com/aristath/navreturns/internal/work/batch"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	Calculator *returns.Calculator
	Runner     *batch.Runner
	Results    *funds.Repository
	CacheRepo  *clientdata.Repository // Optional, reported in system status
	RefreshJob *scheduler.RefreshJob
	Hub        *events.Hub
	Metrics    *metrics.Registry
	Databases  []*database.DB // Reported in system status
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	port    int
	metrics *metrics.Registry

	// ctx outlives requests; batches triggered over HTTP run on it
	ctx    context.Context
	cancel context.CancelFunc

	returnsHandlers *ReturnsHandlers
	fundHandlers    *FundHandlers
	batchHandlers   *BatchHandlers
	systemHandlers  *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	log := cfg.Log.With().Str("component", "server").Logger()

	s := &Server{
		router:          chi.NewRouter(),
		log:             log,
		port:            cfg.Port,
		metrics:         cfg.Metrics,
		ctx:             ctx,
		cancel:          cancel,
		returnsHandlers: NewReturnsHandlers(cfg.Calculator, cfg.Runner, cfg.Results, log),
		fundHandlers:    NewFundHandlers(cfg.Results, log),
		batchHandlers:   NewBatchHandlers(ctx, cfg.Runner, cfg.RefreshJob, cfg.Results, cfg.Hub, log),
		systemHandlers:  NewSystemHandlers(cfg.Runner, cfg.CacheRepo, cfg.Results, cfg.Databases, log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the HTTP handler (tests, embedding)
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json", "text/csv", "text/plain"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// The progress stream is long-lived and stays outside the request timeout
		r.Get("/batch/stream", s.batchHandlers.HandleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/returns/compute", s.returnsHandlers.HandleCompute)

			r.Route("/funds", func(r chi.Router) {
				r.Get("/", s.fundHandlers.HandleList)
				r.Get("/{code}", s.fundHandlers.HandleGet)
				r.Get("/{code}/returns", s.returnsHandlers.HandleFundReturns)
			})
			r.Get("/summary", s.fundHandlers.HandleSummary)

			r.Post("/batch", s.batchHandlers.HandleTrigger)
			r.Get("/batch/latest", s.batchHandlers.HandleLatest)

			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels batches it started
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancel()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
