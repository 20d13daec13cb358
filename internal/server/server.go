package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wtb-catalog/internal/config"
	"wtb-catalog/internal/database"
	custommiddleware "wtb-catalog/internal/middleware"
	"wtb-catalog/internal/service"
	"wtb-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires the HTTP surface around the product catalog. db and
// redisClient are optional and only set when a component uses them.
func NewServer(cfg *config.Config, logger *zap.Logger, catalog service.ProductCatalog, db database.Service, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	checks := map[string]transport.HealthCheck{}
	if db != nil {
		checks["database"] = db.Health
	}
	if redisClient != nil {
		checks["redis"] = redisHealth(redisClient)
	}
	router.Method(http.MethodGet, "/health", transport.NewHealthHandler(catalog, checks))

	var lookupMiddleware []func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled && redisClient != nil {
		lookupMiddleware = append(lookupMiddleware, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "wtb:rate_limit",
		}, logger))
	}

	refreshMiddleware := []func(http.Handler) http.Handler{
		custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger),
		custommiddleware.RequireRole(cfg.JWT.RefreshRoles, logger),
	}

	transport.NewProductHandler(catalog, logger).RegisterRoutes(router, lookupMiddleware, refreshMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:     router,
			IdleTimeout: time.Minute,
			ReadTimeout: 10 * time.Second,
			// a manual refresh pages through the whole catalog
			WriteTimeout: 5 * time.Minute,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

func redisHealth(client *redis.Client) transport.HealthCheck {
	return func(ctx context.Context) map[string]string {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return map[string]string{"status": "down", "error": fmt.Sprintf("redis down: %v", err)}
		}
		return map[string]string{"status": "up"}
	}
}

// Close releases the connections the server was given
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	return nil
}
