// Package server wires the ledger handlers into a chi router and runs the
// API and metrics listeners until the context is canceled.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/learnalabs/educaster/api/handlers"
	"github.com/learnalabs/educaster/api/metrics"
)

type Server struct {
	log        *slog.Logger
	cfg        Config
	httpSrv    *http.Server
	metricsSrv *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h, err := handlers.New(handlers.Config{
		Logger:      cfg.Logger,
		Engine:      cfg.Engine,
		AdminAPIKey: cfg.AdminAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handlers: %w", err)
	}

	s := &Server{log: cfg.Logger, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthzHandler)
	r.Get("/readyz", s.readyzHandler)
	r.Get("/version", h.Version(cfg.VersionInfo))

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Get("/campaigns", h.ListCampaigns)
		r.Get("/eligibility", h.CheckEligibility)
		r.Get("/profile", h.GetProfile)
		r.Get("/data", h.GetData)

		// Learner writes, rate limited per IP
		r.Group(func(r chi.Router) {
			r.Use(handlers.RateLimitMiddleware(handlers.WriteRateLimiter))
			r.Post("/passkeys", h.GenerateKey)
			r.Post("/claims", h.Claim)
			r.Post("/tips", h.SendTip)
			r.Post("/campaigns/setup", h.SetUpCampaign)
		})

		// Admin writes, API key required
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAPIKey)
			r.Post("/campaigns", h.RegisterCampaign)
			r.Post("/campaigns/adjust", h.AdjustCampaigns)
			r.Post("/points", h.RecordPoints)
			r.Post("/points/batch", h.RecordPointsBatch)
			r.Post("/bans", h.BanUsers)
			r.Post("/bans/remove", h.UnbanUsers)
			r.Post("/settlement", h.Settle)
			r.Post("/settlement/sweep", h.Sweep)
			r.Post("/admins", h.SetAdmins)
			r.Post("/params", h.SetParams)
		})
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		}
	}

	return s, nil
}

// Router exposes the HTTP handler for tests.
func (s *Server) Router() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is canceled, then shuts both listeners down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	serveErrCh := make(chan error, 2)

	g.Go(func() error {
		s.log.Info("server: http listening", "address", s.cfg.ListenAddr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
		return nil
	})

	if s.metricsSrv != nil {
		g.Go(func() error {
			s.log.Info("server: metrics listening", "address", s.cfg.MetricsAddr)
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErrCh <- fmt.Errorf("failed to listen and serve metrics: %w", err)
			}
			return nil
		})
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err())
	case err := <-serveErrCh:
		s.log.Error("server: http server error causing shutdown", "error", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server: http shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server: metrics shutdown failed", "error", err)
		}
	}

	_ = g.Wait()
	s.log.Info("server: shutdown complete")
	return runErr
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Ready() {
		s.log.Debug("readyz: store not ready")
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("store not ready\n")); err != nil {
			s.log.Error("failed to write readyz response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}
