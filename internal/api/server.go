// Package api exposes price estimation and collection management over HTTP.
//
// Collection routes are scoped to the user named by the X-User-ID header,
// which an upstream auth proxy is expected to set.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/metrics"
	"github.com/rewired-gh/curio/internal/models"
	"github.com/rewired-gh/curio/internal/storage"
)

// UserHeader carries the authenticated user ID.
const UserHeader = "X-User-ID"

// Estimator produces a scored price distribution for an identity.
type Estimator interface {
	GetPriceEstimate(ctx context.Context, id models.Identity) models.PriceDistribution
}

// Store is the collection store used by the handlers.
type Store interface {
	Create(ctx context.Context, c *models.Collectible) error
	Get(ctx context.Context, userID, id string) (*models.Collectible, error)
	Update(ctx context.Context, c *models.Collectible) error
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, f storage.Filter) ([]*models.Collectible, error)
	SetPriceEstimate(ctx context.Context, userID, id string, est models.PriceEstimate) error
}

// Config holds HTTP surface settings.
type Config struct {
	// RequestsPerMinute is the per-IP limit; 0 disables limiting.
	RequestsPerMinute int
	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string
}

// Server wires handlers to their dependencies.
type Server struct {
	estimator Estimator
	store     Store
	cfg       Config
	now       func() time.Time
}

// New creates a Server.
func New(est Estimator, store Store, cfg Config) *Server {
	return &Server{estimator: est, store: store, cfg: cfg, now: time.Now}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
			ExposedHeaders: []string{"Location"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RequestsPerMinute, time.Minute))
		}

		r.Get("/estimate", s.estimate)

		r.Route("/collectibles", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", s.listCollectibles)
			r.Post("/", s.createCollectible)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCollectible)
				r.Put("/", s.updateCollectible)
				r.Delete("/", s.deleteCollectible)
				r.Post("/estimate", s.estimateCollectible)
			})
		})
	})

	return r
}

// instrument records request counts by route pattern and logs each request.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, route, status)
		logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, status, time.Since(start))
	})
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
