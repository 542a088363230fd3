// Package web serves the workbench over HTTP: a JSON API per module and an
// HTML shell that drives it.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/workbench/internal/config"
	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/export"
	"github.com/JonMunkholm/workbench/internal/web/middleware"
)

// Server is the HTTP server of the workbench.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	// stop ends the rate limiter cleanup loops.
	stop context.CancelFunc
}

// NewServer creates a server for service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		stop:    cancel,
	}
	s.setupMiddleware()
	s.setupRoutes(ctx)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(s.sessions)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)
}

func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/", s.handleIndex)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))
		if s.cfg.Rate.Enabled {
			general := middleware.NewRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, time.Minute)
			r.Use(general.Handler(s.rateLimited))
		}

		r.Get("/modules", s.handleModules)
		r.Get("/audit", s.handleAuditLog)
		r.Get("/upload/status", s.handleUploadStatus)

		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				uploads := middleware.NewRateLimiter(ctx, s.cfg.Rate.UploadLimit, time.Minute)
				r.Use(uploads.Handler(s.rateLimited))
			}
			r.Post("/dataset", s.handleUpload)
		})
		r.Get("/dataset", s.handleDataset)
		r.Delete("/dataset", s.handleClear)

		r.Get("/overview", s.handleOverview)
		r.Get("/missing", s.handleMissingSummary)
		r.Post("/missing/drop-columns", s.handleDropColumns)
		r.Post("/missing/drop-rows", s.handleDropRows)
		r.Post("/missing/impute", s.handleImpute)
		r.Get("/univariate/{column}", s.handleUnivariate)
		r.Get("/bivariate", s.handleBivariate)
		r.Get("/correlation", s.handleCorrelation)
		r.Get("/outliers/{column}", s.handleInspectOutliers)
		r.Post("/outliers/{column}", s.handleTreatOutliers)
		r.Post("/preprocess", s.handlePreprocess)
		r.Post("/recipe", s.handleRecipe)
		r.Get("/export/{format}", s.handleExport)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, errRateLimited)
}

// writeJSON encodes v through export.SafeJSON, so NaN and infinities are
// written as the strings "NaN", "Infinity" and "-Infinity".
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(export.SafeJSON(v)); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
