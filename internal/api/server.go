// Package api provides the HTTP server for Sunflower.
// The mobile app, the companion device and background sample callbacks all
// drive the engagement session through it.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/app/engagement"
	"github.com/sunflower-app/sunflower/internal/health"
)

// Version is reported by /api/version.
const Version = "0.1.0"

// Server is the Sunflower HTTP API server.
type Server struct {
	engagement     *EngagementAPI
	health         *health.Checker // nil: /health always reports ok
	metricsEnabled bool
	corsOrigins    []string
	log            *zap.Logger
}

// NewServer creates a new API server around an engagement session.
func NewServer(session *engagement.Session, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engagement: NewEngagementAPI(session, log),
		log:        log.Named("api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth wires the health checker reported at /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetCORSOrigins restricts CORS to the given origins. Empty allows any.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// Engagement returns the engagement handlers (tests override the clock).
func (s *Server) Engagement() *EngagementAPI { return s.engagement }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	e := s.engagement
	r.Route("/api/engagement", func(r chi.Router) {
		r.Get("/state", e.HandleState)
		r.Post("/launch", e.HandleLaunch)
		r.Post("/active", e.HandleActive)
		r.Post("/review", e.HandleReview)
		r.Get("/streak", e.HandleStreak)
		r.Post("/picks", e.HandlePick)
		r.Get("/growth", e.HandleGrowth)
		r.Put("/goal", e.HandleGoal)
		r.Post("/entitlement/refresh", e.HandleRefreshEntitlement)
		r.Post("/samples/sun", e.HandleSunSample)
		r.Post("/samples/sleep", e.HandleSleepSample)
		r.Get("/notifications", e.HandleNotifications)
		r.Post("/notifications/{id}/shown", e.HandleNotificationShown)
		r.Post("/notifications/{id}/opened", e.HandleNotificationOpened)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// corsMiddleware adds CORS headers for the app's web views.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range s.corsOrigins {
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
