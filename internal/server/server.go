package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/blobstore"
	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/token"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the external resources the server is built on. The server
// takes ownership of DB and Redis and closes them in Close.
type Dependencies struct {
	DB    *repository.DB
	Redis *redis.Client
	Store blobstore.Store
}

type Server struct {
	*http.Server
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      NewRouter(cfg, logger, deps),
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		logger: logger,
		deps:   deps,
	}
}

// NewRouter builds the HTTP handler with every route mounted under /api.
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(middleware.Compress(5, "application/json"))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := database.Health(r.Context(), deps.DB)
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   health["status"],
			"database": health,
		})
	})

	// Initialize repositories
	identityRepo := repository.NewIdentityRepository(deps.DB)
	categoryRepo := repository.NewCategoryRepository(deps.DB)
	productRepo := repository.NewProductRepository(deps.DB)

	// Initialize services
	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	identityService := service.NewIdentityService(identityRepo, tokens, cfg.Auth.SignupCode, logger)
	categoryService := service.NewCategoryService(categoryRepo)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, deps.Store, cfg.Upload.MaxBytes, logger)

	// Initialize handlers
	adminHandler := transport.NewAdminHandler(identityService, logger)
	categoryHandler := transport.NewCategoryHandler(categoryService, logger)
	productHandler := transport.NewProductHandler(catalogService, cfg.Upload.MaxBytes, logger)

	authMiddleware := custommiddleware.AuthMiddleware(identityService, logger)
	rateLimit := custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "ratelimit:auth",
	}, logger)

	router.Route("/api", func(r chi.Router) {
		adminHandler.RegisterRoutes(r, authMiddleware, rateLimit)
		categoryHandler.RegisterRoutes(r, authMiddleware)
		productHandler.RegisterRoutes(r, authMiddleware)
	})

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.deps.DB != nil {
		s.deps.DB.Close()
	}

	_ = s.logger.Sync()
	return nil
}

// PingRedis verifies the rate limiter backend is reachable. The server still
// runs without it; rate limiting then lets every request through.
func PingRedis(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
