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

	"github.com/quantfolio/riskapi/internal/config"
	"github.com/quantfolio/riskapi/internal/dataload"
	"github.com/quantfolio/riskapi/internal/modules/optimization"
	"github.com/quantfolio/riskapi/internal/modules/risk"
	"github.com/quantfolio/riskapi/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Data      *dataload.Provider
	Store     *dataload.ReturnStore // may be nil when no cache path is configured
	Scheduler *scheduler.Scheduler
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	data           *dataload.Provider
	riskService    *risk.Service
	systemHandlers *SystemHandlers
	scheduler      *scheduler.Scheduler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	riskService := risk.NewService(cfg.Data, risk.ServiceOptions{
		RiskFreeRate:    cfg.Config.RiskFreeRate,
		EWMADecay:       cfg.Config.EWMADecay,
		MinPeriods:      cfg.Config.MinPeriods,
		MinObservations: cfg.Config.MinObservations,
		CVFolds:         cfg.Config.CVFolds,
	}, cfg.Log)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		data:           cfg.Data,
		riskService:    riskService,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Data, cfg.Store),
		scheduler:      cfg.Scheduler,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg.Log)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(log zerolog.Logger) {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// Analyzable universe summary, kept at the top level for client
	// compatibility
	s.router.Get("/assets", s.handleAssets)

	riskHandler := risk.NewHandler(s.riskService, log)

	optService := optimization.NewService(s.data, optimization.ServiceOptions{
		RiskFreeRate:   s.cfg.RiskFreeRate,
		FrontierPoints: s.cfg.FrontierPoints,
	}, log)
	optHandler := optimization.NewHandler(optService, log)

	dataHandlers := NewDataHandlers(log, s.data)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		riskHandler.RegisterRoutes(r)
		optHandler.RegisterRoutes(r)
		dataHandlers.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
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
