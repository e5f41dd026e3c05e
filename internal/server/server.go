// Package server wires handlers, middleware and routes into an HTTP server.
//
// WHY SEPARATE FROM main.go?
// main only reads configuration and builds the outside world (the Discord
// client, telemetry). Everything that decides how a request is handled sits
// here, so tests can build the exact production pipeline with a fake
// repository and drive it through httptest without opening a socket.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go creates:   config → discord.Client, telemetry.Telemetry
//	server.New builds: UserRepository → AvatarService → AvatarHandler
//
// This is the composition root: every dependency is wired in New and
// nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/avatar-redirect/internal/handler"
	"github.com/sakif/avatar-redirect/internal/middleware"
	"github.com/sakif/avatar-redirect/internal/repository"
	"github.com/sakif/avatar-redirect/internal/service"
	"github.com/sakif/avatar-redirect/internal/telemetry"
)

// Connection-level timeouts of the http.Server.
const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
)

// Config holds server configuration.
// Values come from internal/config; main converts them once at startup.
type Config struct {
	// Addr is the listen address, e.g. "0.0.0.0:8080".
	Addr string

	// RequestTimeout bounds each request and the shutdown drain.
	RequestTimeout time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
	TrustedProxies     []netip.Prefix
}

// Server is the HTTP server and its request pipeline.
type Server struct {
	handler http.Handler
	config  Config
	logger  *slog.Logger

	requestIDs middleware.RequestIDCounter
	limiter    *middleware.RateLimiter
}

// New builds the router and middleware chain.
//
// MIDDLEWARE ORDER MATTERS:
// A request passes the layers top to bottom and the response unwinds
// bottom to top:
//
//  1. Timeout: hard deadline, 408 when it fires (wraps the whole router)
//  2. Recoverer: a panicking handler becomes a 500
//  3. RequestID: decimal id from the shared counter
//  4. Logger: one line per request, after the response is known
//  5. Tracing: "http_request" span
//  6. RateLimit: per-client-IP token bucket
//  7. Compress: gzip, br, zstd
//  8. Metrics: counter and latency histogram keyed by route template
//
// ROUTES:
//
//	GET  /health   → liveness probe
//	GET  /metrics  → Prometheus exposition
//	*    /         → liveness probe, any method
//	GET  /*        → avatar redirect
func New(cfg Config, logger *slog.Logger, users repository.UserRepository, tel *telemetry.Telemetry) (*Server, error) {
	// === INSTRUMENTS ===
	// Created up front so a bad meter provider fails New instead of the
	// first request.
	metrics, err := middleware.NewMetrics(tel.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: logger,
		limiter: middleware.NewRateLimiter(
			cfg.RateLimitPerSecond,
			cfg.RateLimitBurst,
			middleware.IPExtractor{TrustedProxies: cfg.TrustedProxies},
		),
	}

	// === GLOBAL MIDDLEWARE ===
	// Every route, /health and /metrics included, goes through all of these.
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID(&s.requestIDs))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(tel.TracerProvider))
	r.Use(s.limiter.Handler)
	r.Use(middleware.Compress())
	r.Use(metrics.Handler)

	// === ROUTES ===
	// The handler never sees the repository, and the service never sees
	// HTTP.
	avatarService := service.NewAvatarService(users, logger)
	avatarHandler := handler.NewAvatarHandler(avatarService, logger)

	r.Get("/health", handler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", tel.MetricsHandler())
	r.Handle("/", http.HandlerFunc(handler.HandleHealth))
	// Static routes win over the catch-all in chi's tree, so "/" and
	// "/health" never reach the avatar handler.
	r.Get("/*", avatarHandler.HandleAvatar)

	// The timeout wraps the router itself rather than being installed with
	// Use: chi recycles its routing context once ServeHTTP returns, and a
	// timed out request returns while the chain is still running.
	s.handler = middleware.Timeout(cfg.RequestTimeout)(r)

	return s, nil
}

// Handler returns the complete request pipeline.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on Config.Addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
//
// GRACEFUL SHUTDOWN:
//  1. ctx is cancelled (SIGINT/SIGTERM via NotifyContext in main)
//  2. Stop accepting new connections
//  3. Wait up to the request timeout for in-flight requests; no request can
//     legitimately run longer than that
//
// A listener failure returns immediately with the error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// The write timeout must outlast the request timeout, or the connection
	// would be cut before a 408 could be written.
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: max(writeTimeout, s.config.RequestTimeout+time.Second),
		IdleTimeout:  idleTimeout,
	}

	// Serve in a goroutine so this one can wait on ctx and on errors.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
