// Package http serves the apartment deal API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"apthere/internal/aggregate"
	applog "apthere/internal/log"
	"apthere/internal/middleware/ratelimit"
	"apthere/internal/middleware/security"
	"apthere/internal/middleware/trace"
	"apthere/internal/services"
)

// DealFinder is the use-case port behind the API.
type DealFinder interface {
	FindDeals(ctx context.Context, req services.FindRequest) (aggregate.DealView, error)
	ListApartments(ctx context.Context, req services.ListRequest) (services.AptList, error)
}

// Pinger reports whether a dependency can serve traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes the HTTP layer.
type Config struct {
	Addr               string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
	TrustedProxies     []string
	RequestTimeout     time.Duration
}

type Server struct {
	http.Server
	deals   DealFinder
	ready   Pinger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	logger  *applog.Logger
	timeout time.Duration

	shutdownOnce sync.Once
}

const maxBodyBytes = 64 << 10

func NewServer(cfg Config, deals DealFinder, ready Pinger, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	clientIP, err := security.NewClientIP(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		deals:   deals,
		ready:   ready,
		limiter: limiter,
		tracer:  trace.NewMiddleware(logger, clientIP.Extract),
		logger:  logger.WithComponent(applog.ComponentHTTP),
		timeout: cfg.RequestTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/apt", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
			MaxAge:         300,
		}))
		r.Use(s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		}))

		r.Post("/find", s.handleFind)
		r.Post("/list", s.handleList)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.Handler = r
	return s, nil
}

// Shutdown drains connections and stops the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.limiter.Stop)

	m := s.tracer.GetMetrics()
	s.logger.InfoContext(ctx, "HTTP server shutting down",
		"total_requests", m.TotalRequests,
		"avg_response_time", m.AverageResponseTime,
		"rate_limited", s.limiter.GetMetrics().TotalHits)

	err := s.Server.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
