// Package http serves the Airtable and Google Sheets data as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"ipvops/internal/backend"
	"ipvops/internal/log"
	"ipvops/internal/middleware/ratelimit"
	"ipvops/internal/middleware/security"
	"ipvops/internal/middleware/trace"
)

// Config holds the process-level HTTP settings.
type Config struct {
	Addr               string
	CORSAllowedOrigins []string
	// RateLimitRPM is the per-client budget. Zero disables rate limiting.
	RateLimitRPM int
	// ReadyTimeout bounds the readiness checks as a whole.
	ReadyTimeout time.Duration
}

type Server struct {
	http.Server
	src          *backend.Sources
	logger       *log.Logger
	rateLimiter  *ratelimit.Limiter
	readyTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg Config, src *backend.Sources, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			// Month queries follow every page with retries, so writes get
			// a long deadline.
			WriteTimeout:   5 * time.Minute,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
			ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		src:          src,
		logger:       logger.WithComponent(log.ComponentHTTP),
		readyTimeout: cfg.ReadyTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{$}", s.handleWelcome)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.HandleFunc("GET /api/airtable/{$}", s.handleAirtableRecords)
	mux.HandleFunc("GET /api/airtable/all", s.handleAirtableAll)
	mux.HandleFunc("GET /api/airtable/tables", s.handleAirtableTables)
	mux.HandleFunc("POST /api/sheets/data", s.handleSheetsData)
	mux.HandleFunc("GET /api/sheets/range/{sheet_name}", s.handleSheetsRange)
	mux.HandleFunc("GET /api/audit", s.handleAudit)
	mux.Handle("GET /metrics", promhttp.Handler())

	detector := security.NewDetector()

	// Outermost first: CORS, security headers, detection, rate limit, tracing.
	// Tracing wraps the mux directly so it can read the matched pattern.
	var h http.Handler = trace.NewMiddleware(logger, detector.ExtractClientIP).Middleware(mux)
	if cfg.RateLimitRPM > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM})
		h = s.rateLimiter.Middleware(detector.ExtractClientIP, writeRateLimited)(h)
	}
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: true,
	}).Handler(h)

	s.Handler = h
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
