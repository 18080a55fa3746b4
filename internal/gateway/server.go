package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Silviu2326/Dentaflow-sub002/internal/iam"
	"github.com/Silviu2326/Dentaflow-sub002/internal/scheduling"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/database"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/monitoring"
)

// Server hosts the clinic HTTP API. All requests pass through CORS, security
// header and logging middleware; everything under /api/v1 except the auth
// endpoints additionally requires a valid bearer token and is rate limited
// per user.
type Server struct {
	config         *config.Config
	logger         *logger.Logger
	router         *mux.Router
	server         *http.Server
	db             *database.DB
	tokenValidator interfaces.TokenValidator
	limiter        RateLimiter
	startTime      time.Time
}

// NewServer wires the HTTP surface of the API
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	db *database.DB,
	tokenValidator interfaces.TokenValidator,
	iamHandler *iam.Handler,
	schedulingHandler *scheduling.Handler,
) *Server {
	s := &Server{
		config:         cfg,
		logger:         log,
		router:         mux.NewRouter(),
		db:             db,
		tokenValidator: tokenValidator,
		startTime:      time.Now(),
	}

	if cfg.RateLimit.Enabled {
		if cfg.Redis.Enabled {
			s.limiter = NewRedisLimiter(&cfg.Redis, &cfg.RateLimit)
			log.Info("Rate limiting backed by Redis")
		} else {
			limiter := NewBucketLimiter(&cfg.RateLimit)
			limiter.StartCleanup(context.Background(),
				time.Duration(cfg.RateLimit.CleanupMinutes)*time.Minute)
			s.limiter = limiter
		}
	}

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", monitoring.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	iamHandler.RegisterAuthRoutes(api)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)
	protected.Use(s.rateLimitMiddleware)

	agenda := protected.NewRoute().Subrouter()
	agenda.Use(s.requireModule("agenda"))
	schedulingHandler.RegisterRoutes(agenda)

	users := protected.NewRoute().Subrouter()
	users.Use(s.requireModule("users"))
	iamHandler.RegisterUserRoutes(users)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return s
}

// Router exposes the configured router, used by the HTTP tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start begins serving requests and blocks until the server stops
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports process and database health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	dbStatus := "ok"
	if s.db != nil {
		if err := s.db.Health(); err != nil {
			dbStatus = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}
